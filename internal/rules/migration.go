package rules

import (
	"pramcore/pkg/domain"
)

// MigrationRule models death among the migrating population. The probability
// of death is proportional to the harshness of the environment and to the
// share of the population already migrating; survivors accumulate migration
// duration.
type MigrationRule struct {
	Window
	name string

	// EnvHarshness ranges over [0=benign, 1=harsh].
	EnvHarshness float64

	EnvHarshnessDeathMult float64
	MigrationDeathMult    float64
}

var _ domain.Rule = (*MigrationRule)(nil)

// NewMigrationRule constructs a migration rule with the original multiplier
// defaults.
func NewMigrationRule(envHarshness float64, w Window) *MigrationRule {
	return &MigrationRule{
		Window:                w,
		name:                  "migration",
		EnvHarshness:          envHarshness,
		EnvHarshnessDeathMult: 0.001,
		MigrationDeathMult:    0.05,
	}
}

// Name returns the rule name.
func (r *MigrationRule) Name() string { return r.name }

// IsApplicable admits migrating groups inside the window.
func (r *MigrationRule) IsApplicable(g *domain.Group, iter, t int) bool {
	if !r.Contains(iter, t) {
		return false
	}
	v, ok := g.Attr(AttrIsMigrating)
	return ok && v == true
}

// Apply splits the group into dying and surviving mass, the survivors one
// step further into their migration.
func (r *MigrationRule) Apply(view domain.PopulationView, g *domain.Group, _, _ int) ([]domain.SplitSpec, error) {
	migratingPct := 0.0
	if total := view.Mass(); total > 0 {
		q := domain.NewQuery(map[string]any{AttrIsMigrating: true}, nil)
		migratingPct = view.GroupsMass(q) / total * 100
	}

	pDeath := r.EnvHarshness*r.EnvHarshnessDeathMult + migratingPct*r.MigrationDeathMult
	if pDeath > 1 {
		pDeath = 1
	}

	die, err := domain.NewSplitSpec(pDeath, domain.Mutation{AttrSet: domain.Void})
	if err != nil {
		return nil, err
	}
	survive, err := domain.NewSplitSpec(1-pDeath, domain.Mutation{
		AttrSet: map[string]any{AttrMigrationDur: attrInt(g, AttrMigrationDur) + 1},
	})
	if err != nil {
		return nil, err
	}
	return []domain.SplitSpec{die, survive}, nil
}

// attrInt reads a numeric attribute as an int, defaulting to 0.
func attrInt(g *domain.Group, name string) int {
	v, ok := g.Attr(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
