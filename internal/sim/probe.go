package sim

import (
	"pramcore/pkg/domain"
)

// NamedQuery labels one query tracked by a mass probe; the label becomes the
// series column name.
type NamedQuery struct {
	Name  string
	Query *domain.GroupQuery
}

// MassSample is one probe observation: the matching mass per named query at a
// given iteration. The initial pre-run capture carries Iter == -1.
type MassSample struct {
	Iter   int
	T      int
	Values map[string]float64
}

// MassProbe records the population mass matching each of its queries once per
// iteration, after mass transfer.
type MassProbe struct {
	name    string
	queries []NamedQuery
	series  []MassSample
}

var _ domain.Probe = (*MassProbe)(nil)

// NewMassProbe constructs a probe tracking the given named queries.
func NewMassProbe(name string, queries ...NamedQuery) *MassProbe {
	return &MassProbe{name: name, queries: queries}
}

// Name returns the probe name.
func (p *MassProbe) Name() string { return p.name }

// Run samples every named query against the population.
func (p *MassProbe) Run(view domain.PopulationView, iter, t int) error {
	values := make(map[string]float64, len(p.queries))
	for _, q := range p.queries {
		values[q.Name] = view.GroupsMass(q.Query)
	}
	p.series = append(p.series, MassSample{Iter: iter, T: t, Values: values})
	return nil
}

// Series returns the recorded samples in capture order.
func (p *MassProbe) Series() []MassSample {
	out := make([]MassSample, len(p.series))
	copy(out, p.series)
	return out
}

// Columns returns the query labels in declaration order.
func (p *MassProbe) Columns() []string {
	out := make([]string, len(p.queries))
	for i, q := range p.queries {
		out[i] = q.Name
	}
	return out
}
