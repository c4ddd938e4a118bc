package core

import "fmt"

// ConstructionError reports an invalid simulation construction sequence, such
// as adding a rule after groups have been registered. The failed call leaves
// the simulation unchanged.
type ConstructionError struct {
	Op     string
	Reason string
}

func (e ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// HistoryDepthError reports a mass-delta request reaching further back than
// the archived history.
type HistoryDepthError struct {
	Requested int
	Archived  int
}

func (e HistoryDepthError) Error() string {
	return fmt.Sprintf("history depth exceeded: requested %d iterations back, %d archived", e.Requested, e.Archived)
}
