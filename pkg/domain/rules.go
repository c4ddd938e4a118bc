package domain

// PopulationView provides read-only access to population-wide aggregates for
// rules and probes. Rules must never mutate groups directly; all change flows
// through the split specs they return.
type PopulationView interface {
	Groups(q *GroupQuery) []*Group
	GroupsMass(q *GroupQuery) float64
	GroupsMassProp(q *GroupQuery) float64
	Mass() float64
	GroupCount(nonEmptyOnly bool) int
	SiteCount() int
	Site(h Hash) (*Site, bool)
	FindResource(h Hash) (*Resource, bool)
}

// Rule produces probability-weighted split specs for a group at a given
// iteration and time. Implementations must be pure functions of their
// arguments. Returning a nil spec list makes no claim for the group and must
// not perturb other rules' normalization.
type Rule interface {
	Name() string
	IsApplicable(g *Group, iter, t int) bool
	Apply(view PopulationView, g *Group, iter, t int) ([]SplitSpec, error)
}

// RuleWithSetup is an optional one-shot hook run for every group before the
// first iteration. Applicability filtering is bypassed.
type RuleWithSetup interface {
	Rule
	Setup(view PopulationView, g *Group) ([]SplitSpec, error)
}

// RuleWithCleanup is an optional one-shot hook run for every group after the
// last iteration. Applicability filtering is bypassed.
type RuleWithCleanup interface {
	Rule
	Cleanup(view PopulationView, g *Group) ([]SplitSpec, error)
}

// GroupSetupFunc is the single simulation-setup initializer: it returns a
// full spec list per group and is never combined against rule output.
type GroupSetupFunc func(view PopulationView, g *Group) ([]SplitSpec, error)

// Probe observes the population once per iteration, after mass transfer. The
// view is read-only. The initial pre-run capture is delivered with iter == -1.
type Probe interface {
	Name() string
	Run(view PopulationView, iter, t int) error
}

// UsageObserver, when installed on a population, is notified of every
// attribute and relation key conditioned on during query evaluation. It backs
// post-run reporting of group content no rule ever looked at.
type UsageObserver interface {
	ObserveAttr(name string)
	ObserveRel(name string)
}
