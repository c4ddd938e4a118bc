package rules

import (
	"pramcore/pkg/domain"
)

// Attribute names shared by the conflict/migration rule pair.
const (
	AttrIsMigrating  = "is-migrating"
	AttrMigrationDur = "migration-dur"
)

// ConflictRule models conflict causing death and migration. The probability
// of death scales with the conflict's severity and scale; the probability of
// migration scales with the scale only. A proportion of every non-migrating
// group dies or starts migrating at every step.
type ConflictRule struct {
	Window
	name string

	// Severity ranges over [0=benign, 1=lethal], Scale over [0=contained,
	// 1=wide-spread].
	Severity float64
	Scale    float64

	SeverityDeathMult  float64
	ScaleMigrationMult float64
}

var _ domain.Rule = (*ConflictRule)(nil)

// NewConflictRule constructs a conflict rule with the original multiplier
// defaults.
func NewConflictRule(severity, scale float64, w Window) *ConflictRule {
	return &ConflictRule{
		Window:             w,
		name:               "conflict",
		Severity:           severity,
		Scale:              scale,
		SeverityDeathMult:  0.0001,
		ScaleMigrationMult: 0.01,
	}
}

// Name returns the rule name.
func (r *ConflictRule) Name() string { return r.name }

// IsApplicable admits non-migrating groups inside the window.
func (r *ConflictRule) IsApplicable(g *domain.Group, iter, t int) bool {
	if !r.Contains(iter, t) {
		return false
	}
	v, ok := g.Attr(AttrIsMigrating)
	return ok && v == false
}

// Apply splits the group into dying, newly migrating and staying mass.
func (r *ConflictRule) Apply(_ domain.PopulationView, _ *domain.Group, _, _ int) ([]domain.SplitSpec, error) {
	pDeath := r.Scale * r.Severity * r.SeverityDeathMult
	pMigration := r.Scale * r.ScaleMigrationMult

	die, err := domain.NewSplitSpec(pDeath, domain.Mutation{AttrSet: domain.Void})
	if err != nil {
		return nil, err
	}
	migrate, err := domain.NewSplitSpec(pMigration, domain.Mutation{
		AttrSet: map[string]any{AttrIsMigrating: true, AttrMigrationDur: 0},
	})
	if err != nil {
		return nil, err
	}
	stay, err := domain.NewSplitSpec(1-pDeath-pMigration, domain.Mutation{})
	if err != nil {
		return nil, err
	}
	return []domain.SplitSpec{die, migrate, stay}, nil
}
