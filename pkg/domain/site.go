package domain

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Resource is a capacity-bounded entity shared by agents (a hospital bed
// pool, a bus). Identity is the name alone. The allocation vocabulary follows
// concurrent computing: a resource accommodates agents and is released when
// they are done with it.
type Resource struct {
	name        string
	capacity    int
	capacityMax int
}

// NewResource constructs a resource with zero current occupancy.
func NewResource(name string, capacityMax int) *Resource {
	return &Resource{name: name, capacityMax: capacityMax}
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Capacity returns the number of agents currently accommodated.
func (r *Resource) Capacity() int { return r.capacity }

// CapacityLeft returns the remaining headroom.
func (r *Resource) CapacityLeft() int { return r.capacityMax - r.capacity }

// CapacityMax returns the maximum concurrent occupancy.
func (r *Resource) CapacityMax() int { return r.capacityMax }

// CanAccommodateAll reports whether all n agents would fit.
func (r *Resource) CanAccommodateAll(n int) bool { return r.capacity+n <= r.capacityMax }

// CanAccommodateAny reports whether at least one of n agents would fit. The
// count does not change the answer; it is accepted so callers can hand over
// the same n they pass to CanAccommodateAll.
func (r *Resource) CanAccommodateAny(n int) bool { return r.capacity < r.capacityMax }

// AllocateAll admits all n agents or none. It returns true only when every
// agent was admitted; on false the occupancy is unchanged.
func (r *Resource) AllocateAll(n int) bool {
	if r.capacity+n > r.capacityMax {
		return false
	}
	r.capacity += n
	return true
}

// AllocateAny admits as many of the n agents as fit and returns the number
// that could not be accommodated.
func (r *Resource) AllocateAny(n int) int {
	admitted := min(n, r.CapacityLeft())
	r.capacity += admitted
	return n - admitted
}

// Release frees n occupancy slots. Releasing always succeeds and clamps at
// zero.
func (r *Resource) Release(n int) {
	r.capacity = max(0, r.capacity-n)
}

// ContentHash digests the resource's identity (its name).
func (r *Resource) ContentHash() Hash {
	d := xxhash.New()
	_, _ = d.WriteString("resource:")
	_, _ = d.WriteString(r.name)
	return Hash(d.Sum64())
}

func (r *Resource) String() string {
	return fmt.Sprintf("Resource(name=%q cap=%d/%d)", r.name, r.capacity, r.capacityMax)
}

// Site is a physical location (a school, a workplace) groups can reside at.
// It extends Resource with attributes, a configurable relation name, and a
// back-reference index of the groups currently located there. Aggregate
// queries over that index are memoized and invalidated whenever membership
// changes.
type Site struct {
	Resource
	relName string
	attr    map[string]any

	groups []*Group
	m      float64

	hash      Hash
	hashValid bool
	qryGroups map[Hash][]*Group
	qryMass   map[Hash]float64
}

// NewSite constructs a site with the default "@" relation name and unit
// capacity.
func NewSite(name string, attr map[string]any) *Site {
	return NewSiteCustom(name, attr, RelAt, 1)
}

// NewSiteCustom constructs a site recording groups under relName and with the
// given maximum capacity.
func NewSiteCustom(name string, attr map[string]any, relName string, capacityMax int) *Site {
	s := &Site{
		Resource: Resource{name: name, capacityMax: capacityMax},
		relName:  relName,
	}
	s.attr = make(map[string]any, len(attr))
	for k, v := range attr {
		s.attr[k] = v
	}
	return s
}

// RelName returns the relation name under which groups record this site.
func (s *Site) RelName() string { return s.relName }

// Attr returns the named site attribute.
func (s *Site) Attr(name string) (any, bool) {
	v, ok := s.attr[name]
	return v, ok
}

// Attrs exposes the site's attribute map; treat as read-only.
func (s *Site) Attrs() map[string]any { return s.attr }

// ContentHash digests the site identity: name, relation name and attributes.
func (s *Site) ContentHash() Hash {
	if !s.hashValid {
		d := xxhash.New()
		_, _ = d.WriteString("site:")
		_, _ = d.WriteString(s.name)
		_, _ = d.WriteString("/")
		_, _ = d.WriteString(s.relName)
		writeMap(d, s.attr)
		s.hash = Hash(d.Sum64())
		s.hashValid = true
	}
	return s.hash
}

// AddGroupLink records a group as currently located at the site and
// invalidates the memoized aggregates.
func (s *Site) AddGroupLink(g *Group) {
	s.groups = append(s.groups, g)
	s.m += g.Mass()
	s.qryGroups = nil
	s.qryMass = nil
}

// ResetGroupLinks clears the membership index and all memoized aggregates.
// The population calls this before relinking groups after every mass
// transfer so the index is never stale.
func (s *Site) ResetGroupLinks() {
	s.groups = nil
	s.m = 0
	s.qryGroups = nil
	s.qryMass = nil
}

// Mass returns the aggregate mass of all groups currently at the site.
func (s *Site) Mass() float64 { return s.m }

// Groups returns the groups currently at the site that match the query.
// Predicate-free query results are memoized until membership changes.
func (s *Site) Groups(q *GroupQuery, nonEmptyOnly bool) []*Group {
	matched := s.matchGroups(q)
	if !nonEmptyOnly {
		return matched
	}
	out := make([]*Group, 0, len(matched))
	for _, g := range matched {
		if g.Mass() > 0 {
			out = append(out, g)
		}
	}
	return out
}

func (s *Site) matchGroups(q *GroupQuery) []*Group {
	if q == nil {
		return s.groups
	}
	cacheable := !q.HasPredicates()
	if cacheable {
		if cached, ok := s.qryGroups[q.ContentHash()]; ok {
			return cached
		}
	}
	matched := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		if q.Matches(g) {
			matched = append(matched, g)
		}
	}
	if cacheable {
		if s.qryGroups == nil {
			s.qryGroups = make(map[Hash][]*Group)
		}
		s.qryGroups[q.ContentHash()] = matched
	}
	return matched
}

// GroupsMass returns the mass of matching groups currently at the site,
// memoized for predicate-free queries.
func (s *Site) GroupsMass(q *GroupQuery) float64 {
	if q == nil {
		return s.m
	}
	cacheable := !q.HasPredicates()
	if cacheable {
		if m, ok := s.qryMass[q.ContentHash()]; ok {
			return m
		}
	}
	m := 0.0
	for _, g := range s.matchGroups(q) {
		m += g.Mass()
	}
	if cacheable {
		if s.qryMass == nil {
			s.qryMass = make(map[Hash]float64)
		}
		s.qryMass[q.ContentHash()] = m
	}
	return m
}

// GroupsMassProp returns the matching mass as a proportion of the site's
// total mass, or 0 for an empty site.
func (s *Site) GroupsMassProp(q *GroupQuery) float64 {
	if s.m <= 0 {
		return 0
	}
	return s.GroupsMass(q) / s.m
}

// GroupsMassAndProp returns both the matching mass and its proportion.
func (s *Site) GroupsMassAndProp(q *GroupQuery) (float64, float64) {
	m := s.GroupsMass(q)
	if s.m <= 0 {
		return m, 0
	}
	return m, m / s.m
}

func (s *Site) String() string {
	return fmt.Sprintf("Site(name=%q hash=%s m=%g)", s.name, s.ContentHash(), s.m)
}
