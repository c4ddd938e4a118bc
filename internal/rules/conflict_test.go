package rules

import (
	"math"
	"testing"

	"pramcore/internal/core"
	"pramcore/pkg/domain"
)

func TestConflictRuleApplicability(t *testing.T) {
	r := NewConflictRule(1, 0.5, Always())

	settled := domain.NewGroup("g", 10, map[string]any{AttrIsMigrating: false}, nil)
	migrating := domain.NewGroup("g", 10, map[string]any{AttrIsMigrating: true}, nil)
	unmarked := domain.NewGroup("g", 10, nil, nil)

	if !r.IsApplicable(settled, 0, 0) {
		t.Fatalf("settled groups must be applicable")
	}
	if r.IsApplicable(migrating, 0, 0) {
		t.Fatalf("migrating groups must not be applicable")
	}
	if r.IsApplicable(unmarked, 0, 0) {
		t.Fatalf("groups without the migration marker must not be applicable")
	}
}

func TestConflictRuleSplitDistribution(t *testing.T) {
	r := NewConflictRule(1, 0.5, Always())
	g := domain.NewGroup("g", 1000, map[string]any{AttrIsMigrating: false}, nil)

	specs, err := r.Apply(core.NewPopulation(), g, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected die/migrate/stay triple, got %d specs", len(specs))
	}

	wantDeath := 0.5 * 1 * 0.0001
	wantMigration := 0.5 * 0.01
	if math.Abs(specs[0].P()-wantDeath) > 1e-12 {
		t.Fatalf("death probability = %g, want %g", specs[0].P(), wantDeath)
	}
	if v := specs[0].AttrSet[domain.VoidAttr]; v != true {
		t.Fatalf("dying mass must be routed to the void, got %v", specs[0].AttrSet)
	}
	if math.Abs(specs[1].P()-wantMigration) > 1e-12 {
		t.Fatalf("migration probability = %g, want %g", specs[1].P(), wantMigration)
	}
	if specs[1].AttrSet[AttrIsMigrating] != true || specs[1].AttrSet[AttrMigrationDur] != 0 {
		t.Fatalf("migrate spec must start the migration clock, got %v", specs[1].AttrSet)
	}
	if math.Abs(specs[2].P()-(1-wantDeath-wantMigration)) > 1e-12 {
		t.Fatalf("stay probability = %g", specs[2].P())
	}
}
