// Package domain defines the population-model primitives: mass-carrying
// groups, their content-hash identity, query matching, split specifications
// and the capacity-bounded sites and resources groups relate to.
package domain

import "fmt"

// RelAt is the relation name under which a group records the site it is
// currently located at.
const RelAt = "@"

// VoidAttr marks a group for removal at the end of the current iteration.
// Any group carrying this attribute set to true is purged by post-iteration
// cleanup, with its mass debited from the population.
const VoidAttr = "__void__"

// Void is the attribute set a rule assigns to route mass out of the
// simulation.
var Void = map[string]any{VoidAttr: true}

// FrozenError reports a direct attribute or relation mutation attempted on a
// group that has been registered with a population.
type FrozenError struct {
	Kind string // "attribute" or "relation"
	Key  string
}

func (e FrozenError) Error() string {
	return fmt.Sprintf("group is frozen: cannot set %s %q without force", e.Kind, e.Key)
}

// Group is the atomic mass-carrying unit of a population. Agents inside one
// group are functionally identical: identity is defined by the attribute and
// relation maps alone, never by name or mass. At most one group with a given
// (attributes, relations) pair exists in a population; duplicates merge
// masses on registration.
//
// A group starts standalone and mutable. Once registered with a population
// it freezes: direct attribute/relation writes return FrozenError unless
// forced, and all further change flows through split specs.
type Group struct {
	name   string
	m      float64
	attr   map[string]any
	rel    map[string]any
	frozen bool

	hash      Hash
	hashValid bool
}

// NewGroup constructs a standalone group. The name is a label only and never
// participates in identity. Nil maps are allowed.
func NewGroup(name string, m float64, attr, rel map[string]any) *Group {
	g := &Group{name: name, m: m}
	g.attr = make(map[string]any, len(attr))
	for k, v := range attr {
		g.attr[k] = v
	}
	g.rel = make(map[string]any, len(rel))
	for k, v := range rel {
		g.rel[k] = v
	}
	return g
}

// Name returns the group's non-identifying label.
func (g *Group) Name() string { return g.name }

// Mass returns the population mass the group currently represents.
func (g *Group) Mass() float64 { return g.m }

// SetMass replaces the group's mass. Mass is not part of identity and is not
// protected by freezing; the transfer engine adjusts it directly.
func (g *Group) SetMass(m float64) { g.m = m }

// AddMass adds delta to the group's mass.
func (g *Group) AddMass(delta float64) { g.m += delta }

// Attr returns the value of the named attribute.
func (g *Group) Attr(name string) (any, bool) {
	v, ok := g.attr[name]
	return v, ok
}

// Attrs exposes the group's attribute map. Callers must treat it as
// read-only; use SetAttr for mutation.
func (g *Group) Attrs() map[string]any { return g.attr }

// Rel returns the value of the named relation.
func (g *Group) Rel(name string) (any, bool) {
	v, ok := g.rel[name]
	return v, ok
}

// Rels exposes the group's relation map. Callers must treat it as read-only.
func (g *Group) Rels() map[string]any { return g.rel }

// SetAttr writes an attribute. On a frozen group it returns FrozenError
// unless force is set. Any successful write invalidates the cached hash.
func (g *Group) SetAttr(name string, value any, force bool) error {
	if g.frozen && !force {
		return FrozenError{Kind: "attribute", Key: name}
	}
	g.attr[name] = value
	g.hashValid = false
	return nil
}

// SetRel writes a relation. Same freeze semantics as SetAttr.
func (g *Group) SetRel(name string, value any, force bool) error {
	if g.frozen && !force {
		return FrozenError{Kind: "relation", Key: name}
	}
	g.rel[name] = value
	g.hashValid = false
	return nil
}

// Freeze marks the group registered. Subsequent SetAttr/SetRel calls without
// force fail with FrozenError.
func (g *Group) Freeze() { g.frozen = true }

// Frozen reports whether the group has been registered with a population.
func (g *Group) Frozen() bool { return g.frozen }

// ContentHash returns the digest of (attributes, relations), computing it on
// first access and caching until the next structural mutation.
func (g *Group) ContentHash() Hash {
	if !g.hashValid {
		g.hash = HashContent(g.attr, g.rel)
		g.hashValid = true
	}
	return g.hash
}

// Equal reports whether two groups carry identical attribute and relation
// content. Name and mass are irrelevant.
func (g *Group) Equal(other *Group) bool {
	if other == nil {
		return false
	}
	return g.ContentHash() == other.ContentHash()
}

// IsVoid reports whether the group is flagged for removal at iteration end.
func (g *Group) IsVoid() bool {
	v, ok := g.attr[VoidAttr]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// SiteAt returns the hash of the site the group is currently located at, if
// its "@" relation has been resolved to a registered site.
func (g *Group) SiteAt() (Hash, bool) {
	v, ok := g.rel[RelAt]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case Hash:
		return t, true
	case Entity:
		return t.ContentHash(), true
	default:
		return 0, false
	}
}

// Copy returns a standalone deep copy of the group. The copy is unfrozen.
func (g *Group) Copy() *Group {
	return NewGroup(g.name, g.m, g.attr, g.rel)
}

func (g *Group) String() string {
	return fmt.Sprintf("Group(name=%q m=%g hash=%s)", g.name, g.m, g.ContentHash())
}
