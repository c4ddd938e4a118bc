package domain

import (
	"context"
	"time"
)

// IterationState is the per-iteration trajectory record appended after each
// mass transfer: aggregate totals plus the per-group mass vector keyed by
// content hash. It is an aggregate record, not a whole-population snapshot
// format.
type IterationState struct {
	Iter        int              `json:"iter"`
	T           int              `json:"t"`
	Mass        float64          `json:"mass"`
	MassIn      float64          `json:"mass_in"`
	MassOut     float64          `json:"mass_out"`
	MassFlow    float64          `json:"mass_flow"`
	GroupMasses map[Hash]float64 `json:"group_masses"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

// TrajectoryStore persists the sequence of iteration states for one
// simulation run.
type TrajectoryStore interface {
	AppendState(ctx context.Context, st IterationState) error
	States(ctx context.Context) ([]IterationState, error)
	Close() error
}
