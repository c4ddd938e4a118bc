package rules

import (
	"pramcore/pkg/domain"
)

// SIR state values carried in the tracked attribute.
const (
	StateSusceptible = "s"
	StateInfectious  = "i"
	StateRecovered   = "r"
)

// SIRRule implements discrete-time susceptible/infectious/recovered
// transitions on one attribute. Susceptible mass becomes infectious at a rate
// of Beta scaled by the infectious proportion around the group: at the
// group's site when it is located at one, across the whole population
// otherwise. Infectious mass recovers at Gamma.
type SIRRule struct {
	Window
	name  string
	attr  string
	beta  float64
	gamma float64
}

var _ domain.Rule = (*SIRRule)(nil)

// NewSIRRule constructs an SIR rule over the given attribute (conventionally
// "flu") with infection rate beta and recovery rate gamma.
func NewSIRRule(attr string, beta, gamma float64, w Window) *SIRRule {
	return &SIRRule{Window: w, name: "sir-" + attr, attr: attr, beta: beta, gamma: gamma}
}

// Name returns the rule name.
func (r *SIRRule) Name() string { return r.name }

// IsApplicable admits groups inside the window that carry the tracked
// attribute.
func (r *SIRRule) IsApplicable(g *domain.Group, iter, t int) bool {
	if !r.Contains(iter, t) {
		return false
	}
	_, ok := g.Attr(r.attr)
	return ok
}

// Apply returns the transition distribution for the group's current state.
func (r *SIRRule) Apply(view domain.PopulationView, g *domain.Group, iter, t int) ([]domain.SplitSpec, error) {
	state, _ := g.Attr(r.attr)
	switch state {
	case StateSusceptible:
		p := r.beta * r.infectiousProp(view, g)
		if p > 1 {
			p = 1
		}
		infect, err := domain.NewSplitSpec(p, domain.Mutation{AttrSet: map[string]any{r.attr: StateInfectious}})
		if err != nil {
			return nil, err
		}
		stay, err := domain.NewSplitSpec(1-p, domain.Mutation{})
		if err != nil {
			return nil, err
		}
		return []domain.SplitSpec{infect, stay}, nil
	case StateInfectious:
		recover, err := domain.NewSplitSpec(r.gamma, domain.Mutation{AttrSet: map[string]any{r.attr: StateRecovered}})
		if err != nil {
			return nil, err
		}
		stay, err := domain.NewSplitSpec(1-r.gamma, domain.Mutation{})
		if err != nil {
			return nil, err
		}
		return []domain.SplitSpec{recover, stay}, nil
	default:
		// Recovered mass makes no claim.
		return nil, nil
	}
}

// infectiousProp measures the infectious mass proportion in the group's
// surroundings.
func (r *SIRRule) infectiousProp(view domain.PopulationView, g *domain.Group) float64 {
	q := domain.NewQuery(map[string]any{r.attr: StateInfectious}, nil)
	if h, ok := g.SiteAt(); ok {
		if site, found := view.Site(h); found {
			return site.GroupsMassProp(q)
		}
	}
	return view.GroupsMassProp(q)
}
