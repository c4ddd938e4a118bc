// Command pramsim runs a small SIR flu simulation and prints the recorded
// mass trajectory. It doubles as a smoke test for the engine, the rule
// library and the trajectory stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"pramcore/internal/core"
	"pramcore/internal/rules"
	"pramcore/internal/sim"
	"pramcore/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("pramsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		iterations = fs.Int("n", 48, "number of iterations to run")
		mass       = fs.Float64("mass", 1000, "initial susceptible mass")
		beta       = fs.Float64("beta", 0.10, "infection rate")
		gamma      = fs.Float64("gamma", 0.05, "recovery rate")
		fractional = fs.Bool("fractional", false, "allow fractional group masses")
		verbose    = fs.Bool("v", false, "log per-iteration population info")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	traj, err := core.OpenTrajectoryStore()
	if err != nil {
		fmt.Fprintf(stderr, "open trajectory store: %v\n", err)
		return 1
	}
	defer func() { _ = traj.Close() }()

	opts := []sim.Option{
		sim.WithTrajectoryStore(traj),
		sim.WithPragmas(sim.Pragmas{
			FractionalMass:   *fractional,
			ProbeCaptureInit: true,
		}),
	}
	if *verbose {
		opts = append(opts, sim.WithLogger(core.NewJSONLogger(stderr)))
	}

	s := sim.New(sim.NewHourTimer(8), opts...)

	probe := sim.NewMassProbe("flu",
		sim.NamedQuery{Name: "susceptible", Query: domain.NewQuery(map[string]any{"flu": rules.StateSusceptible}, nil)},
		sim.NamedQuery{Name: "infectious", Query: domain.NewQuery(map[string]any{"flu": rules.StateInfectious}, nil)},
		sim.NamedQuery{Name: "recovered", Query: domain.NewQuery(map[string]any{"flu": rules.StateRecovered}, nil)},
	)
	s.AddProbe(probe)

	if err := s.AddRule(rules.NewSIRRule("flu", *beta, *gamma, rules.Always())); err != nil {
		fmt.Fprintf(stderr, "add rule: %v\n", err)
		return 1
	}
	if err := s.AddGroup(domain.NewGroup("population", *mass-1, map[string]any{"flu": rules.StateSusceptible}, nil)); err != nil {
		fmt.Fprintf(stderr, "add group: %v\n", err)
		return 1
	}
	if err := s.AddGroup(domain.NewGroup("patient zero", 1, map[string]any{"flu": rules.StateInfectious}, nil)); err != nil {
		fmt.Fprintf(stderr, "add group: %v\n", err)
		return 1
	}

	ctx := context.Background()
	if err := s.Run(ctx, *iterations); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "iter\tsusceptible\tinfectious\trecovered")
	for _, sample := range probe.Series() {
		fmt.Fprintf(stdout, "%d\t%.1f\t%.1f\t%.1f\n",
			sample.Iter,
			sample.Values["susceptible"],
			sample.Values["infectious"],
			sample.Values["recovered"],
		)
	}
	fmt.Fprintf(stdout, "final mass: %.1f\n", s.Population().Mass())
	return 0
}
