package rules

import (
	"math"
	"testing"

	"pramcore/internal/core"
	"pramcore/pkg/domain"
)

func TestMigrationRuleDeathScalesWithMigratingShare(t *testing.T) {
	pop := core.NewPopulation()
	pop.SetFractionalMass(true)
	m := pop.AddGroup(domain.NewGroup("m", 100, map[string]any{AttrIsMigrating: true, AttrMigrationDur: 2}, nil))
	pop.AddGroup(domain.NewGroup("s", 900, map[string]any{AttrIsMigrating: false}, nil))

	r := NewMigrationRule(0.8, Always())
	specs, err := r.Apply(pop, m, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected die/survive pair, got %d specs", len(specs))
	}

	// 10% of the population is migrating: 0.8*0.001 + 10*0.05.
	wantDeath := 0.8*0.001 + 10*0.05
	if math.Abs(specs[0].P()-wantDeath) > 1e-12 {
		t.Fatalf("death probability = %g, want %g", specs[0].P(), wantDeath)
	}
	if v := specs[0].AttrSet[domain.VoidAttr]; v != true {
		t.Fatalf("dying mass must be routed to the void, got %v", specs[0].AttrSet)
	}
	if specs[1].AttrSet[AttrMigrationDur] != 3 {
		t.Fatalf("survivors must accumulate migration duration, got %v", specs[1].AttrSet[AttrMigrationDur])
	}
}

func TestMigrationRuleDeathProbabilityCapped(t *testing.T) {
	pop := core.NewPopulation()
	m := pop.AddGroup(domain.NewGroup("m", 1000, map[string]any{AttrIsMigrating: true}, nil))

	// Everyone is migrating; the linear formula overshoots and must cap at 1.
	r := NewMigrationRule(1, Always())
	specs, err := r.Apply(pop, m, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if specs[0].P() != 1 {
		t.Fatalf("death probability must cap at 1, got %g", specs[0].P())
	}
}

func TestMigrationRuleApplicability(t *testing.T) {
	r := NewMigrationRule(0.5, Always())

	migrating := domain.NewGroup("g", 10, map[string]any{AttrIsMigrating: true}, nil)
	settled := domain.NewGroup("g", 10, map[string]any{AttrIsMigrating: false}, nil)

	if !r.IsApplicable(migrating, 0, 0) {
		t.Fatalf("migrating groups must be applicable")
	}
	if r.IsApplicable(settled, 0, 0) {
		t.Fatalf("settled groups must not be applicable")
	}
}

func TestAttrIntCoercions(t *testing.T) {
	cases := []struct {
		val  any
		want int
	}{
		{3, 3},
		{int64(4), 4},
		{5.0, 5},
		{"seven", 0},
		{nil, 0},
	}
	for _, tc := range cases {
		g := domain.NewGroup("g", 1, map[string]any{AttrMigrationDur: tc.val}, nil)
		if got := attrInt(g, AttrMigrationDur); got != tc.want {
			t.Fatalf("attrInt(%v) = %d, want %d", tc.val, got, tc.want)
		}
	}
	if got := attrInt(domain.NewGroup("g", 1, nil, nil), AttrMigrationDur); got != 0 {
		t.Fatalf("missing attribute must read as 0, got %d", got)
	}
}
