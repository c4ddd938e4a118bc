// Package core implements the population engine: the hash-keyed registry of
// groups, sites and resources, rule application with Cartesian combination,
// total-preserving mass transfer and the per-iteration lifecycle bookkeeping.
package core

import (
	"fmt"

	"pramcore/pkg/domain"
)

const defaultHistoryDepth = 8

// SplitResult pairs a source group with the destination groups its split
// produced. Results are computed for the whole population before any of them
// is applied.
type SplitResult struct {
	Src  *domain.Group
	Dsts []*domain.Group
}

// Population is the registry one simulation operates on. Groups are keyed by
// content hash so structurally identical groups always merge; sites and
// resources are registered once and referenced from group relations by hash.
//
// A population is single-threaded by design: one simulation owns it and no
// method is safe for concurrent use.
type Population struct {
	groups    map[domain.Hash]*domain.Group
	sites     map[domain.Hash]*domain.Site
	resources map[domain.Hash]*domain.Resource

	// vita queues externally created inflow groups until the next
	// post-iteration fold.
	vita []*domain.Group

	massIn   float64
	massOut  float64
	massFlow float64

	fractional bool
	observer   domain.UsageObserver

	histDepth int
	hist      []map[domain.Hash]float64

	sitesDirty bool
	qryGroups  map[domain.Hash][]*domain.Group
	qryMass    map[domain.Hash]float64
}

var _ domain.PopulationView = (*Population)(nil)

// NewPopulation constructs an empty population.
func NewPopulation() *Population {
	return &Population{
		groups:    make(map[domain.Hash]*domain.Group),
		sites:     make(map[domain.Hash]*domain.Site),
		resources: make(map[domain.Hash]*domain.Resource),
		histDepth: defaultHistoryDepth,
	}
}

// SetFractionalMass controls whether splits may emit fractional masses. The
// default rounds with a total-preserving scheme.
func (p *Population) SetFractionalMass(on bool) { p.fractional = on }

// FractionalMass reports whether fractional masses are permitted.
func (p *Population) FractionalMass() bool { return p.fractional }

// SetHistoryDepth bounds the number of archived per-group mass vectors.
func (p *Population) SetHistoryDepth(n int) {
	if n < 0 {
		n = 0
	}
	p.histDepth = n
	if len(p.hist) > n {
		p.hist = p.hist[len(p.hist)-n:]
	}
}

// SetUsageObserver installs (or with nil removes) the attribute/relation
// usage observer. Query caching is suspended while an observer is active so
// every evaluation is seen.
func (p *Population) SetUsageObserver(obs domain.UsageObserver) {
	p.observer = obs
	p.qryGroups = nil
	p.qryMass = nil
}

// AddSite registers a site, returning the canonical instance for its hash.
func (p *Population) AddSite(s *domain.Site) *domain.Site {
	h := s.ContentHash()
	if existing, ok := p.sites[h]; ok {
		return existing
	}
	p.sites[h] = s
	return s
}

// AddResource registers a resource, returning the canonical instance.
func (p *Population) AddResource(r *domain.Resource) *domain.Resource {
	h := r.ContentHash()
	if existing, ok := p.resources[h]; ok {
		return existing
	}
	p.resources[h] = r
	return r
}

// AddGroup registers a group. Entity-valued relations are resolved to
// registered hashes (registering sites and resources encountered on the way),
// the group is frozen and merged by content hash: if a structurally identical
// group already exists the masses add and the existing group is returned.
func (p *Population) AddGroup(g *domain.Group) *domain.Group {
	p.resolveRels(g)
	h := g.ContentHash()
	if existing, ok := p.groups[h]; ok {
		existing.AddMass(g.Mass())
		p.invalidate()
		return existing
	}
	g.Freeze()
	p.groups[h] = g
	p.invalidate()
	return g
}

// AddVitaGroup queues an inflow group. It is folded into the population at
// the next post-iteration, crediting its mass to mass-in.
func (p *Population) AddVitaGroup(g *domain.Group) {
	p.resolveRels(g)
	p.vita = append(p.vita, g)
}

// resolveRels replaces entity relation values with their content hashes,
// registering sites and resources it encounters.
func (p *Population) resolveRels(g *domain.Group) {
	for name, v := range g.Rels() {
		switch e := v.(type) {
		case *domain.Site:
			s := p.AddSite(e)
			_ = g.SetRel(name, s.ContentHash(), true)
		case *domain.Resource:
			r := p.AddResource(e)
			_ = g.SetRel(name, r.ContentHash(), true)
		case domain.Entity:
			_ = g.SetRel(name, e.ContentHash(), true)
		}
	}
}

// Group returns the registered group for a content hash.
func (p *Population) Group(h domain.Hash) (*domain.Group, bool) {
	g, ok := p.groups[h]
	return g, ok
}

// Site returns the registered site for a content hash, with its group links
// synchronized.
func (p *Population) Site(h domain.Hash) (*domain.Site, bool) {
	p.syncSites()
	s, ok := p.sites[h]
	return s, ok
}

// Sites returns all registered sites with their group links synchronized.
func (p *Population) Sites() []*domain.Site {
	p.syncSites()
	out := make([]*domain.Site, 0, len(p.sites))
	for _, s := range p.sites {
		out = append(out, s)
	}
	return out
}

// FindResource returns the registered resource for a content hash.
func (p *Population) FindResource(h domain.Hash) (*domain.Resource, bool) {
	r, ok := p.resources[h]
	return r, ok
}

// Mass returns the total mass across all registered groups.
func (p *Population) Mass() float64 {
	m := 0.0
	for _, g := range p.groups {
		m += g.Mass()
	}
	return m
}

// MassIn returns the cumulative mass credited by vita folds.
func (p *Population) MassIn() float64 { return p.massIn }

// MassOut returns the cumulative mass debited by void purges.
func (p *Population) MassOut() float64 { return p.massOut }

// MassFlow returns the mass moved by the most recent transfer.
func (p *Population) MassFlow() float64 { return p.massFlow }

// GroupCount returns the number of registered groups, optionally counting
// only those carrying mass.
func (p *Population) GroupCount(nonEmptyOnly bool) int {
	if !nonEmptyOnly {
		return len(p.groups)
	}
	n := 0
	for _, g := range p.groups {
		if g.Mass() > 0 {
			n++
		}
	}
	return n
}

// SiteCount returns the number of registered sites.
func (p *Population) SiteCount() int { return len(p.sites) }

// GroupMasses returns the current per-group mass vector keyed by content
// hash.
func (p *Population) GroupMasses() map[domain.Hash]float64 {
	out := make(map[domain.Hash]float64, len(p.groups))
	for h, g := range p.groups {
		out[h] = g.Mass()
	}
	return out
}

// Groups returns the registered groups matching the query. A nil query
// matches everything. Predicate-free query results are cached until the next
// structural change; caching is suspended while a usage observer is active.
func (p *Population) Groups(q *domain.GroupQuery) []*domain.Group {
	p.observeQuery(q)
	if q == nil {
		out := make([]*domain.Group, 0, len(p.groups))
		for _, g := range p.groups {
			out = append(out, g)
		}
		return out
	}
	cacheable := !q.HasPredicates() && p.observer == nil
	if cacheable {
		if cached, ok := p.qryGroups[q.ContentHash()]; ok {
			return cached
		}
	}
	matched := make([]*domain.Group, 0, len(p.groups))
	for _, g := range p.groups {
		if q.Matches(g) {
			matched = append(matched, g)
		}
	}
	if cacheable {
		if p.qryGroups == nil {
			p.qryGroups = make(map[domain.Hash][]*domain.Group)
		}
		p.qryGroups[q.ContentHash()] = matched
	}
	return matched
}

// GroupsMass returns the total mass of groups matching the query, memoized
// for predicate-free queries.
func (p *Population) GroupsMass(q *domain.GroupQuery) float64 {
	if q == nil {
		return p.Mass()
	}
	cacheable := !q.HasPredicates() && p.observer == nil
	if cacheable {
		if m, ok := p.qryMass[q.ContentHash()]; ok {
			return m
		}
	}
	m := 0.0
	for _, g := range p.Groups(q) {
		m += g.Mass()
	}
	if cacheable {
		if p.qryMass == nil {
			p.qryMass = make(map[domain.Hash]float64)
		}
		p.qryMass[q.ContentHash()] = m
	}
	return m
}

// GroupsMassProp returns the matching mass as a proportion of total mass, or
// 0 for an empty population.
func (p *Population) GroupsMassProp(q *domain.GroupQuery) float64 {
	total := p.Mass()
	if total <= 0 {
		return 0
	}
	return p.GroupsMass(q) / total
}

// GroupsMassDelta returns the change in matching mass relative to the
// archived state back transfers ago. Groups purged since then are not
// counted. Reaching past the archive returns HistoryDepthError.
func (p *Population) GroupsMassDelta(q *domain.GroupQuery, back int) (float64, error) {
	if back < 1 {
		back = 1
	}
	if back >= len(p.hist) {
		archived := len(p.hist) - 1
		if archived < 0 {
			archived = 0
		}
		return 0, HistoryDepthError{Requested: back, Archived: archived}
	}
	past := p.hist[len(p.hist)-1-back]
	delta := 0.0
	for _, g := range p.Groups(q) {
		delta += g.Mass() - past[g.ContentHash()]
	}
	return delta, nil
}

// ApplyRules evaluates every applicable rule against every non-empty group,
// combines the per-rule spec lists into a joint distribution, splits, and
// transfers the result. All splits are computed against the pre-transfer
// state before any of them is applied.
func (p *Population) ApplyRules(rules []domain.Rule, iter, t int) error {
	var results []SplitResult
	for _, g := range p.groupList() {
		if g.Mass() == 0 {
			continue
		}
		var perRule [][]domain.SplitSpec
		for _, r := range rules {
			if !r.IsApplicable(g, iter, t) {
				continue
			}
			specs, err := r.Apply(p, g, iter, t)
			if err != nil {
				return fmt.Errorf("apply rule %q: %w", r.Name(), err)
			}
			if len(specs) == 0 {
				continue
			}
			perRule = append(perRule, specs)
		}
		if len(perRule) == 0 {
			continue
		}
		dsts := g.Split(domain.CombineSpecs(perRule), p.fractional)
		results = append(results, SplitResult{Src: g, Dsts: dsts})
	}
	p.TransferMass(results)
	return nil
}

// ApplyRuleSetup runs the one-shot setup hook of every rule that declares
// one. Each hook is a sequential pass over all groups, transferred before the
// next rule's pass; setup output is never combined.
func (p *Population) ApplyRuleSetup(rules []domain.Rule) error {
	for _, r := range rules {
		rs, ok := r.(domain.RuleWithSetup)
		if !ok {
			continue
		}
		err := p.applyPass(fmt.Sprintf("setup rule %q", r.Name()), func(g *domain.Group) ([]domain.SplitSpec, error) {
			return rs.Setup(p, g)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyRuleCleanup runs the one-shot cleanup hooks after the last iteration,
// with the same sequential pass semantics as setup.
func (p *Population) ApplyRuleCleanup(rules []domain.Rule) error {
	for _, r := range rules {
		rc, ok := r.(domain.RuleWithCleanup)
		if !ok {
			continue
		}
		err := p.applyPass(fmt.Sprintf("cleanup rule %q", r.Name()), func(g *domain.Group) ([]domain.SplitSpec, error) {
			return rc.Cleanup(p, g)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyGroupSetup runs the simulation-setup initializer as one sequential
// pass over all groups.
func (p *Population) ApplyGroupSetup(fn domain.GroupSetupFunc) error {
	if fn == nil {
		return nil
	}
	return p.applyPass("group setup", func(g *domain.Group) ([]domain.SplitSpec, error) {
		return fn(p, g)
	})
}

func (p *Population) applyPass(name string, produce func(*domain.Group) ([]domain.SplitSpec, error)) error {
	var results []SplitResult
	for _, g := range p.groupList() {
		if g.Mass() == 0 {
			continue
		}
		specs, err := produce(g)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if len(specs) == 0 {
			continue
		}
		results = append(results, SplitResult{Src: g, Dsts: g.Split(specs, p.fractional)})
	}
	p.TransferMass(results)
	return nil
}

// TransferMass applies computed split results. Every source is zeroed before
// any destination delta lands, so a group that appears as both source and
// destination nets correctly. Destinations merge into registered groups by
// content hash or register as new frozen groups. The per-group mass vector is
// archived afterwards and site links and query caches are invalidated.
func (p *Population) TransferMass(results []SplitResult) {
	if len(results) == 0 {
		p.massFlow = 0
		p.archiveMasses()
		return
	}
	moved := 0.0
	for _, r := range results {
		moved += r.Src.Mass()
		r.Src.SetMass(0)
	}
	for _, r := range results {
		for _, dst := range r.Dsts {
			p.resolveRels(dst)
			h := dst.ContentHash()
			if existing, ok := p.groups[h]; ok {
				existing.AddMass(dst.Mass())
				continue
			}
			dst.Freeze()
			p.groups[h] = dst
		}
	}
	p.massFlow = moved
	p.archiveMasses()
	p.invalidate()
}

// PostIteration purges void groups, debiting their mass from the population,
// then folds queued vita groups in, crediting theirs. It returns the mass
// that left and entered.
func (p *Population) PostIteration() (out, in float64) {
	for h, g := range p.groups {
		if g.IsVoid() {
			out += g.Mass()
			delete(p.groups, h)
		}
	}
	for _, g := range p.vita {
		in += g.Mass()
		h := g.ContentHash()
		if existing, ok := p.groups[h]; ok {
			existing.AddMass(g.Mass())
			continue
		}
		g.Freeze()
		p.groups[h] = g
	}
	p.vita = nil
	p.massOut += out
	p.massIn += in
	if out != 0 || in != 0 {
		p.invalidate()
	}
	return out, in
}

// Compact drops zero-mass groups from the registry. Compacting twice in a
// row is a no-op the second time.
func (p *Population) Compact() int {
	removed := 0
	for h, g := range p.groups {
		if g.Mass() == 0 {
			delete(p.groups, h)
			removed++
		}
	}
	if removed > 0 {
		p.invalidate()
	}
	return removed
}

func (p *Population) groupList() []*domain.Group {
	out := make([]*domain.Group, 0, len(p.groups))
	for _, g := range p.groups {
		out = append(out, g)
	}
	return out
}

func (p *Population) observeQuery(q *domain.GroupQuery) {
	if p.observer == nil || q == nil {
		return
	}
	for k := range q.Attr {
		p.observer.ObserveAttr(k)
	}
	for k := range q.Rel {
		p.observer.ObserveRel(k)
	}
}

func (p *Population) archiveMasses() {
	if p.histDepth <= 0 {
		return
	}
	snap := make(map[domain.Hash]float64, len(p.groups))
	for h, g := range p.groups {
		snap[h] = g.Mass()
	}
	p.hist = append(p.hist, snap)
	if len(p.hist) > p.histDepth {
		p.hist = p.hist[len(p.hist)-p.histDepth:]
	}
}

func (p *Population) invalidate() {
	p.qryGroups = nil
	p.qryMass = nil
	p.sitesDirty = true
}

// syncSites rebuilds the per-site group links. A group is located at a site
// only when the site's hash sits under the site's own relation name; the same
// site referenced under any other relation (a workplace recorded as "work-at"
// while the group is home) does not count toward residency. Links are rebuilt
// lazily on first site access after a structural change.
func (p *Population) syncSites() {
	if !p.sitesDirty {
		return
	}
	for _, s := range p.sites {
		s.ResetGroupLinks()
	}
	for _, g := range p.groups {
		for name, v := range g.Rels() {
			h, ok := v.(domain.Hash)
			if !ok {
				continue
			}
			if s, ok := p.sites[h]; ok && s.RelName() == name {
				s.AddGroupLink(g)
			}
		}
	}
	p.sitesDirty = false
}
