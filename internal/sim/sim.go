package sim

import (
	"context"
	"fmt"
	"time"

	"pramcore/internal/core"
	"pramcore/pkg/domain"
)

// Pragmas toggle simulation-wide behaviors. Zero values give the defaults
// except ProbeCaptureInit, which New enables.
type Pragmas struct {
	// FractionalMass permits splits to emit fractional masses instead of
	// rounding with the total-preserving scheme.
	FractionalMass bool
	// Autocompact drops zero-mass groups after every iteration.
	Autocompact bool
	// AutostopN stops the run after this many consecutive iterations below
	// the autostop thresholds. Zero disables autostop.
	AutostopN int
	// AutostopP is a mass-flow threshold as a proportion of total mass.
	AutostopP float64
	// AutostopT is an absolute mass-flow threshold.
	AutostopT float64
	// LiveInfo logs per-iteration population info through the configured
	// logger.
	LiveInfo bool
	// ProbeCaptureInit delivers one probe capture of the initial state, with
	// iteration -1, before the first iteration runs.
	ProbeCaptureInit bool
}

// Simulation owns a population, the rules that evolve it and the probes that
// observe it. Rules must all be added before the first group; the population
// freezes its construction order so every group sees the full rule set.
type Simulation struct {
	pop   *core.Population
	timer *Timer

	rules  []domain.Rule
	probes []domain.Probe

	groupSetup domain.GroupSetupFunc
	pragmas    Pragmas

	logger  core.Logger
	metrics core.MetricsRecorder
	tracer  core.Tracer
	traj    domain.TrajectoryStore

	usage *UsageTracker

	ranSetup   bool
	ranCleanup bool
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger installs a logger; the default discards everything.
func WithLogger(l core.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m core.MetricsRecorder) Option {
	return func(s *Simulation) { s.metrics = m }
}

// WithTracer installs a tracer around per-iteration work.
func WithTracer(t core.Tracer) Option {
	return func(s *Simulation) { s.tracer = t }
}

// WithTrajectoryStore records an iteration state after every mass transfer.
func WithTrajectoryStore(ts domain.TrajectoryStore) Option {
	return func(s *Simulation) { s.traj = ts }
}

// WithPragmas replaces the default pragmas.
func WithPragmas(p Pragmas) Option {
	return func(s *Simulation) { s.pragmas = p }
}

// WithGroupSetup installs the one-shot per-group initializer run before the
// first iteration.
func WithGroupSetup(fn domain.GroupSetupFunc) Option {
	return func(s *Simulation) { s.groupSetup = fn }
}

// WithUsageAnalysis installs a usage tracker on the population for the whole
// run; UsageReport reads it back afterwards.
func WithUsageAnalysis() Option {
	return func(s *Simulation) { s.usage = NewUsageTracker() }
}

// New constructs a simulation driven by the given timer.
func New(timer *Timer, opts ...Option) *Simulation {
	if timer == nil {
		timer = NewHourTimer(0)
	}
	s := &Simulation{
		pop:     core.NewPopulation(),
		timer:   timer,
		pragmas: Pragmas{ProbeCaptureInit: true},
		logger:  core.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pop.SetFractionalMass(s.pragmas.FractionalMass)
	if s.usage != nil {
		s.pop.SetUsageObserver(s.usage)
	}
	return s
}

// Population exposes the underlying population for registration helpers and
// tests.
func (s *Simulation) Population() *core.Population { return s.pop }

// Timer exposes the simulation clock.
func (s *Simulation) Timer() *Timer { return s.timer }

// Pragmas returns the active pragma set.
func (s *Simulation) Pragmas() Pragmas { return s.pragmas }

// AddRule registers a rule. All rules must be added before the first group so
// that setup hooks and applicability cover every group ever registered.
func (s *Simulation) AddRule(r domain.Rule) error {
	if s.pop.GroupCount(false) > 0 {
		return core.ConstructionError{Op: "add rule", Reason: "groups already registered; rules must be added first"}
	}
	s.rules = append(s.rules, r)
	return nil
}

// AddProbe registers a probe. Probes run read-only after every mass transfer.
func (s *Simulation) AddProbe(p domain.Probe) {
	s.probes = append(s.probes, p)
}

// AddGroup registers a group with the population. At least one rule must
// exist first.
func (s *Simulation) AddGroup(g *domain.Group) error {
	if len(s.rules) == 0 {
		return core.ConstructionError{Op: "add group", Reason: "no rules registered; add rules before groups"}
	}
	s.pop.AddGroup(g)
	return nil
}

// AddSite registers a site.
func (s *Simulation) AddSite(site *domain.Site) *domain.Site {
	return s.pop.AddSite(site)
}

// AddResource registers a resource.
func (s *Simulation) AddResource(r *domain.Resource) *domain.Resource {
	return s.pop.AddResource(r)
}

// AddVitaGroup queues an inflow group folded in at the next post-iteration.
func (s *Simulation) AddVitaGroup(g *domain.Group) {
	s.pop.AddVitaGroup(g)
}

// UsageReport returns the post-run dynamic analysis: group content no rule
// conditioned on. It is only meaningful after a run with usage analysis
// enabled.
func (s *Simulation) UsageReport() (UsageReport, bool) {
	if s.usage == nil {
		return UsageReport{}, false
	}
	return s.usage.Report(s.pop.Groups(nil)), true
}

// Run advances the simulation n iterations. The first call performs the
// one-shot rule setup and group setup; the final iteration of the simulation
// is followed by the one-shot rule cleanup. Run may be called repeatedly to
// continue the same simulation.
func (s *Simulation) Run(ctx context.Context, n int) error {
	if err := s.setupOnce(); err != nil {
		return err
	}

	streak := 0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.iterate(ctx); err != nil {
			return err
		}
		s.timer.Step()

		if s.stopNow(&streak) {
			s.logger.Info("autostop", "iter", s.timer.Iter(), "mass_flow", s.pop.MassFlow())
			break
		}
	}

	return s.cleanupOnce()
}

func (s *Simulation) setupOnce() error {
	if s.ranSetup {
		return nil
	}
	if err := s.pop.ApplyRuleSetup(s.rules); err != nil {
		return err
	}
	if err := s.pop.ApplyGroupSetup(s.groupSetup); err != nil {
		return err
	}
	s.ranSetup = true
	if s.pragmas.ProbeCaptureInit {
		if err := s.runProbes(-1, s.timer.T()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) cleanupOnce() error {
	if s.ranCleanup {
		return nil
	}
	if err := s.pop.ApplyRuleCleanup(s.rules); err != nil {
		return err
	}
	s.ranCleanup = true
	return nil
}

func (s *Simulation) iterate(ctx context.Context) (err error) {
	iter, t := s.timer.Iter(), s.timer.T()
	started := time.Now()
	if s.tracer != nil {
		var span core.TraceSpan
		ctx, span = s.tracer.Start(ctx, "iteration")
		defer func() { span.End(err) }()
	}
	if s.metrics != nil {
		defer func() {
			s.metrics.Observe(ctx, "iteration", err == nil, time.Since(started))
		}()
	}

	if err = s.pop.ApplyRules(s.rules, iter, t); err != nil {
		return err
	}
	if err = s.recordState(ctx, iter, t); err != nil {
		return err
	}
	if err = s.runProbes(iter, t); err != nil {
		return err
	}
	out, in := s.pop.PostIteration()
	if s.pragmas.Autocompact {
		s.pop.Compact()
	}

	if s.metrics != nil {
		s.metrics.SetGauge("mass", s.pop.Mass())
		s.metrics.SetGauge("groups", float64(s.pop.GroupCount(true)))
		s.metrics.SetGauge("mass_flow", s.pop.MassFlow())
	}
	if s.pragmas.LiveInfo {
		s.logger.Info("iteration",
			"iter", iter,
			"t", t,
			"mass", s.pop.Mass(),
			"groups", s.pop.GroupCount(true),
			"mass_flow", s.pop.MassFlow(),
			"mass_out", out,
			"mass_in", in,
		)
	}
	return nil
}

func (s *Simulation) recordState(ctx context.Context, iter, t int) error {
	if s.traj == nil {
		return nil
	}
	st := domain.IterationState{
		Iter:        iter,
		T:           t,
		Mass:        s.pop.Mass(),
		MassIn:      s.pop.MassIn(),
		MassOut:     s.pop.MassOut(),
		MassFlow:    s.pop.MassFlow(),
		GroupMasses: s.pop.GroupMasses(),
		RecordedAt:  time.Now().UTC(),
	}
	if err := s.traj.AppendState(ctx, st); err != nil {
		return fmt.Errorf("record trajectory: %w", err)
	}
	return nil
}

func (s *Simulation) runProbes(iter, t int) error {
	for _, p := range s.probes {
		if err := p.Run(s.pop, iter, t); err != nil {
			return fmt.Errorf("probe %q: %w", p.Name(), err)
		}
	}
	return nil
}

// stopNow applies the autostop pragma: the run ends after AutostopN
// consecutive iterations whose mass flow is below the proportional or
// absolute threshold.
func (s *Simulation) stopNow(streak *int) bool {
	if s.pragmas.AutostopN <= 0 {
		return false
	}
	below := false
	flow := s.pop.MassFlow()
	if s.pragmas.AutostopP > 0 {
		total := s.pop.Mass()
		if total <= 0 || flow/total < s.pragmas.AutostopP {
			below = true
		}
	}
	if s.pragmas.AutostopT > 0 && flow < s.pragmas.AutostopT {
		below = true
	}
	if !below {
		*streak = 0
		return false
	}
	*streak++
	return *streak >= s.pragmas.AutostopN
}
