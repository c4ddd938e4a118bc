package domain

import (
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Predicate is an arbitrary read-only condition on a group, used by queries
// that cannot be expressed as attribute/relation subsets. Predicates are
// excluded from query identity: two queries carrying predicates are only the
// same query if they are the same object, so predicate-bearing queries do not
// participate in hash-keyed result caching.
type Predicate func(*Group) bool

// GroupQuery selects groups by attribute and relation content.
//
// A nil query matches every group. A partial match (Full=false) requires
// every query key to be present in the group with an equal value; a full
// match additionally requires the group to carry no extra keys. Predicates
// must all hold in either mode.
type GroupQuery struct {
	Attr       map[string]any
	Rel        map[string]any
	Predicates []Predicate
	Full       bool

	hash      Hash
	hashValid bool
}

// NewQuery builds a partial-match query over attribute and relation subsets.
// Relation values holding an Entity are normalized to the entity's hash so
// the query compares against registered groups directly.
func NewQuery(attr, rel map[string]any) *GroupQuery {
	return newQuery(attr, rel, nil, false)
}

// NewFullQuery builds an exact-match query: the group's maps must equal the
// query's maps with no extra keys.
func NewFullQuery(attr, rel map[string]any) *GroupQuery {
	return newQuery(attr, rel, nil, true)
}

// NewPredicateQuery builds a partial-match query that additionally requires
// all predicates to hold.
func NewPredicateQuery(attr, rel map[string]any, preds ...Predicate) *GroupQuery {
	return newQuery(attr, rel, preds, false)
}

func newQuery(attr, rel map[string]any, preds []Predicate, full bool) *GroupQuery {
	q := &GroupQuery{Full: full, Predicates: preds}
	q.Attr = make(map[string]any, len(attr))
	for k, v := range attr {
		q.Attr[k] = v
	}
	q.Rel = make(map[string]any, len(rel))
	for k, v := range rel {
		if e, ok := v.(Entity); ok {
			q.Rel[k] = e.ContentHash()
			continue
		}
		q.Rel[k] = v
	}
	return q
}

// HasPredicates reports whether the query carries custom predicates and is
// therefore ineligible for hash-keyed result caching.
func (q *GroupQuery) HasPredicates() bool { return q != nil && len(q.Predicates) > 0 }

// ContentHash digests the query's attribute subset, relation subset and
// full-match flag. Predicates are deliberately excluded.
func (q *GroupQuery) ContentHash() Hash {
	if q == nil {
		return 0
	}
	if !q.hashValid {
		d := xxhash.New()
		writeMap(d, q.Attr)
		writeMap(d, q.Rel)
		if q.Full {
			_, _ = d.WriteString("full")
		}
		q.hash = Hash(d.Sum64())
		q.hashValid = true
	}
	return q.hash
}

// Matches reports whether the group satisfies the query. An absent (nil)
// query always matches. The group is not mutated.
func (q *GroupQuery) Matches(g *Group) bool {
	if q == nil {
		return true
	}
	if q.Full {
		if len(q.Attr) != len(g.attr) || len(q.Rel) != len(g.rel) {
			return false
		}
	}
	for k, want := range q.Attr {
		got, ok := g.attr[k]
		if !ok || !valueEqual(want, got) {
			return false
		}
	}
	for k, want := range q.Rel {
		got, ok := g.rel[k]
		if !ok || !valueEqual(want, got) {
			return false
		}
	}
	for _, pred := range q.Predicates {
		if !pred(g) {
			return false
		}
	}
	return true
}

// valueEqual compares attribute/relation values the same way HashContent
// identifies them: numeric kinds compare by value, entities compare by
// content hash, everything else by deep equality.
func valueEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	if ah, aok := asEntityHash(a); aok {
		bh, bok := asEntityHash(b)
		return bok && ah == bh
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func asEntityHash(v any) (Hash, bool) {
	switch t := v.(type) {
	case Hash:
		return t, true
	case Entity:
		return t.ContentHash(), true
	default:
		return 0, false
	}
}
