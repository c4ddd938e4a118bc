package rules

import (
	"pramcore/pkg/domain"
)

// GoToRule relocates a proportion of a group from one site relation to
// another: with probability P the group's location is rewritten to the site
// its relTo relation references. With an empty relFrom any located group is
// eligible; otherwise only groups currently at their relFrom site move.
type GoToRule struct {
	Window
	name string

	P       float64
	relFrom string
	relTo   string
}

var _ domain.Rule = (*GoToRule)(nil)

// NewGoToRule constructs a relocation rule moving mass to the relTo site.
func NewGoToRule(p float64, relFrom, relTo string, w Window) *GoToRule {
	return &GoToRule{Window: w, name: "goto-" + relTo, P: p, relFrom: relFrom, relTo: relTo}
}

// Name returns the rule name.
func (r *GoToRule) Name() string { return r.name }

// IsApplicable admits groups inside the window that reference a destination
// site and, when relFrom is set, are currently located at their relFrom site.
func (r *GoToRule) IsApplicable(g *domain.Group, iter, t int) bool {
	if !r.Contains(iter, t) {
		return false
	}
	to, ok := g.Rel(r.relTo)
	if !ok {
		return false
	}
	at, ok := g.SiteAt()
	if !ok {
		return false
	}
	if toHash, ok := to.(domain.Hash); ok && toHash == at {
		// Already there.
		return false
	}
	if r.relFrom == "" {
		return true
	}
	from, ok := g.Rel(r.relFrom)
	if !ok {
		return false
	}
	fromHash, ok := from.(domain.Hash)
	return ok && fromHash == at
}

// Apply moves probability P of the group's mass to the destination site.
func (r *GoToRule) Apply(_ domain.PopulationView, g *domain.Group, _, _ int) ([]domain.SplitSpec, error) {
	to, _ := g.Rel(r.relTo)

	move, err := domain.NewSplitSpec(r.P, domain.Mutation{RelSet: map[string]any{domain.RelAt: to}})
	if err != nil {
		return nil, err
	}
	stay, err := domain.NewSplitSpec(1-r.P, domain.Mutation{})
	if err != nil {
		return nil, err
	}
	return []domain.SplitSpec{move, stay}, nil
}
