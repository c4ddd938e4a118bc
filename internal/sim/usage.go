package sim

import (
	"sort"

	"pramcore/pkg/domain"
)

// UsageTracker records which attribute and relation names rule queries
// condition on. Installed on a population it suspends query caching so every
// evaluation is seen.
type UsageTracker struct {
	attrs map[string]struct{}
	rels  map[string]struct{}
}

var _ domain.UsageObserver = (*UsageTracker)(nil)

// NewUsageTracker constructs an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		attrs: make(map[string]struct{}),
		rels:  make(map[string]struct{}),
	}
}

// ObserveAttr records a conditioned-on attribute name.
func (u *UsageTracker) ObserveAttr(name string) { u.attrs[name] = struct{}{} }

// ObserveRel records a conditioned-on relation name.
func (u *UsageTracker) ObserveRel(name string) { u.rels[name] = struct{}{} }

// UsageReport lists group content no rule ever conditioned on during a
// monitored run. It flags model state that is carried but never read.
type UsageReport struct {
	UnusedAttrs []string
	UnusedRels  []string
}

// Report compares the tracked usage against the attribute and relation names
// present on the given groups.
func (u *UsageTracker) Report(groups []*domain.Group) UsageReport {
	seenAttrs := make(map[string]struct{})
	seenRels := make(map[string]struct{})
	for _, g := range groups {
		for k := range g.Attrs() {
			if k == domain.VoidAttr {
				continue
			}
			seenAttrs[k] = struct{}{}
		}
		for k := range g.Rels() {
			seenRels[k] = struct{}{}
		}
	}

	var rep UsageReport
	for k := range seenAttrs {
		if _, ok := u.attrs[k]; !ok {
			rep.UnusedAttrs = append(rep.UnusedAttrs, k)
		}
	}
	for k := range seenRels {
		if _, ok := u.rels[k]; !ok {
			rep.UnusedRels = append(rep.UnusedRels, k)
		}
	}
	sort.Strings(rep.UnusedAttrs)
	sort.Strings(rep.UnusedRels)
	return rep
}
