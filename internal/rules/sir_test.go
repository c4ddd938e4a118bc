package rules

import (
	"math"
	"testing"

	"pramcore/internal/core"
	"pramcore/pkg/domain"
)

func TestSIRRuleApplicability(t *testing.T) {
	r := NewSIRRule("flu", 0.1, 0.05, IterRange(0, 10))

	with := domain.NewGroup("g", 10, map[string]any{"flu": StateSusceptible}, nil)
	without := domain.NewGroup("g", 10, map[string]any{"age": 30}, nil)

	if !r.IsApplicable(with, 5, 0) {
		t.Fatalf("group carrying the tracked attribute must be applicable")
	}
	if r.IsApplicable(without, 5, 0) {
		t.Fatalf("group without the tracked attribute must not be applicable")
	}
	if r.IsApplicable(with, 11, 0) {
		t.Fatalf("window must gate applicability")
	}
}

func TestSIRRuleSusceptibleUsesSiteProportion(t *testing.T) {
	pop := core.NewPopulation()
	pop.SetFractionalMass(true)
	home := domain.NewSite("home", nil)
	away := domain.NewSite("away", nil)

	s := pop.AddGroup(domain.NewGroup("s", 90, map[string]any{"flu": StateSusceptible}, map[string]any{domain.RelAt: home}))
	pop.AddGroup(domain.NewGroup("i", 10, map[string]any{"flu": StateInfectious}, map[string]any{domain.RelAt: home}))
	pop.AddGroup(domain.NewGroup("i-away", 100, map[string]any{"flu": StateInfectious}, map[string]any{domain.RelAt: away}))

	r := NewSIRRule("flu", 0.5, 0.05, Always())
	specs, err := r.Apply(pop, s, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected infect/stay pair, got %d specs", len(specs))
	}

	// At home the infectious share is 10/100, not the population-wide
	// 110/200.
	want := 0.5 * 0.1
	if math.Abs(specs[0].P()-want) > 1e-12 {
		t.Fatalf("infection probability = %g, want %g", specs[0].P(), want)
	}
	if got := specs[0].AttrSet["flu"]; got != StateInfectious {
		t.Fatalf("infect spec must write the infectious state, got %v", got)
	}
}

func TestSIRRuleSusceptibleFallsBackToPopulation(t *testing.T) {
	pop := core.NewPopulation()
	pop.SetFractionalMass(true)

	s := pop.AddGroup(domain.NewGroup("s", 150, map[string]any{"flu": StateSusceptible}, nil))
	pop.AddGroup(domain.NewGroup("i", 50, map[string]any{"flu": StateInfectious}, nil))

	r := NewSIRRule("flu", 0.4, 0.05, Always())
	specs, err := r.Apply(pop, s, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := 0.4 * 0.25
	if math.Abs(specs[0].P()-want) > 1e-12 {
		t.Fatalf("infection probability = %g, want %g", specs[0].P(), want)
	}
}

func TestSIRRuleInfectiousRecovers(t *testing.T) {
	pop := core.NewPopulation()
	i := pop.AddGroup(domain.NewGroup("i", 100, map[string]any{"flu": StateInfectious}, nil))

	r := NewSIRRule("flu", 0.1, 0.05, Always())
	specs, err := r.Apply(pop, i, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected recover/stay pair, got %d specs", len(specs))
	}
	if specs[0].P() != 0.05 || specs[0].AttrSet["flu"] != StateRecovered {
		t.Fatalf("recover spec wrong: p=%g mut=%v", specs[0].P(), specs[0].AttrSet)
	}
	if specs[1].P() != 0.95 {
		t.Fatalf("stay probability = %g, want 0.95", specs[1].P())
	}
}

func TestSIRRuleRecoveredMakesNoClaim(t *testing.T) {
	pop := core.NewPopulation()
	rec := pop.AddGroup(domain.NewGroup("r", 100, map[string]any{"flu": StateRecovered}, nil))

	r := NewSIRRule("flu", 0.1, 0.05, Always())
	specs, err := r.Apply(pop, rec, 0, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if specs != nil {
		t.Fatalf("recovered mass must make no claim, got %d specs", len(specs))
	}
}
