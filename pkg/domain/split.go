package domain

import (
	"fmt"
	"math"
)

// ProbabilityError reports a split-spec probability outside [0,1]. Split
// specs are validated at construction, never at split time.
type ProbabilityError struct {
	P float64
}

func (e ProbabilityError) Error() string {
	return fmt.Sprintf("split probability %g outside [0,1]", e.P)
}

// Mutation describes the attribute and relation changes a split spec applies
// to the destination group. Set maps overwrite, delete sets remove by key
// (deletion never inspects values).
type Mutation struct {
	AttrSet map[string]any
	AttrDel []string
	RelSet  map[string]any
	RelDel  []string
}

// SplitSpec is one probability-weighted transform in a group split. The
// probability is validated on construction and immutable afterwards.
type SplitSpec struct {
	Mutation
	p float64
}

// NewSplitSpec validates p and builds a spec carrying the given mutation.
func NewSplitSpec(p float64, mut Mutation) (SplitSpec, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return SplitSpec{}, ProbabilityError{P: p}
	}
	return SplitSpec{Mutation: mut, p: p}, nil
}

// MustSplitSpec is NewSplitSpec for statically known probabilities; it panics
// on a probability outside [0,1].
func MustSplitSpec(p float64, mut Mutation) SplitSpec {
	s, err := NewSplitSpec(p, mut)
	if err != nil {
		panic(err)
	}
	return s
}

// P returns the spec's probability.
func (s SplitSpec) P() float64 { return s.p }

// CombineSpecs folds the outputs of several independently applied rules into
// one joint distribution via their Cartesian product. Each combination
// multiplies probabilities (rules are assumed independent; dependence belongs
// inside a single rule), merges set maps by successive overwrite in list
// order (later rule wins on key conflict) and unions delete sets. An empty
// input yields nil.
func CombineSpecs(perRule [][]SplitSpec) []SplitSpec {
	if len(perRule) == 0 {
		return nil
	}
	combined := []SplitSpec{{p: 1}}
	for _, specs := range perRule {
		next := make([]SplitSpec, 0, len(combined)*len(specs))
		for _, acc := range combined {
			for _, s := range specs {
				next = append(next, mergeSpecs(acc, s))
			}
		}
		combined = next
	}
	return combined
}

func mergeSpecs(a, b SplitSpec) SplitSpec {
	out := SplitSpec{p: a.p * b.p}
	out.AttrSet = mergeMaps(a.AttrSet, b.AttrSet)
	out.RelSet = mergeMaps(a.RelSet, b.RelSet)
	out.AttrDel = mergeKeys(a.AttrDel, b.AttrDel)
	out.RelDel = mergeKeys(a.RelDel, b.RelDel)
	return out
}

func mergeMaps(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeKeys(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lst := range [][]string{a, b} {
		for _, k := range lst {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Split partitions the group's mass across the ordered specs.
//
// The last spec's probability and mass are forced to the complement of the
// running sums of all prior specs, so emitted masses add up to the source
// mass exactly regardless of floating-point drift. Once the running
// probability reaches 1 the spec that reached it is complemented the same
// way, the remaining specs are unreachable and processing stops. Unless fractional mass is permitted, masses are rounded with a
// total-preserving largest-remainder scheme. Zero-mass destinations are
// dropped.
//
// Destinations are standalone groups carrying the source's name; whether a
// destination coincides with an already registered group is resolved later by
// content hash during mass transfer.
func (g *Group) Split(specs []SplitSpec, fractional bool) []*Group {
	if len(specs) == 0 {
		return nil
	}

	pSum := 0.0
	mSum := 0.0
	masses := make([]float64, len(specs))
	for i, s := range specs {
		var m float64
		if i == len(specs)-1 {
			// Complement the final spec so nothing is lost to rounding in
			// the earlier terms.
			m = g.m - mSum
			pSum = 1
		} else {
			pSum += s.p
			if pSum >= 1 {
				// The spec that reaches probability 1 takes the complement of
				// everything emitted so far; crediting it g.m*p would mint
				// mass out of nothing.
				m = g.m - mSum
			} else {
				m = g.m * s.p
			}
		}
		masses[i] = m
		mSum += m
		if pSum >= 1 {
			break
		}
	}

	if !fractional {
		masses = roundPreservingSum(masses)
	}

	out := make([]*Group, 0, len(specs))
	for i, s := range specs {
		m := masses[i]
		if m == 0 {
			continue
		}
		attr := applyMutation(g.attr, s.AttrSet, s.AttrDel)
		rel := applyMutation(g.rel, s.RelSet, s.RelDel)
		dst := NewGroup(g.name, m, nil, nil)
		dst.attr = attr
		dst.rel = rel
		out = append(out, dst)
	}
	return out
}

// applyMutation copies base, applies the set map and then removes the delete
// keys. Deletion is by key only.
func applyMutation(base, set map[string]any, del []string) map[string]any {
	out := make(map[string]any, len(base)+len(set))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range set {
		out[k] = v
	}
	for _, k := range del {
		delete(out, k)
	}
	return out
}

// roundPreservingSum rounds each value to an integer such that the sum of the
// rounded values equals the rounded exact sum (largest-remainder method:
// round down, then hand the leftover units to the largest fractional
// remainders, ties broken by input order). Naive per-value rounding would
// violate mass conservation.
func roundPreservingSum(values []float64) []float64 {
	floors := make([]float64, len(values))
	total := 0.0
	floorTotal := 0.0
	for i, v := range values {
		floors[i] = math.Floor(v)
		total += v
		floorTotal += floors[i]
	}
	leftover := int(math.Round(total - floorTotal))
	if leftover <= 0 {
		return floors
	}

	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(values))
	for i, v := range values {
		rems[i] = rem{idx: i, frac: v - floors[i]}
	}
	// Stable selection: larger remainder first, input order on ties.
	for u := 0; u < leftover; u++ {
		best := -1
		for i := range rems {
			if rems[i].frac < 0 {
				continue
			}
			if best == -1 || rems[i].frac > rems[best].frac {
				best = i
			}
		}
		if best == -1 {
			break
		}
		floors[rems[best].idx]++
		rems[best].frac = -1
	}
	return floors
}
