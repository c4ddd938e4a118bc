// Package rules provides a library of ready-made population rules: epidemic
// state transitions, conflict-driven death and migration, and probabilistic
// site relocation.
package rules

// Window bounds a rule's applicability by an iteration interval and a clock
// interval, both inclusive. A negative upper bound leaves that side open.
type Window struct {
	IterMin, IterMax int
	TMin, TMax       int
}

// Always returns a window that never restricts applicability.
func Always() Window {
	return Window{IterMax: -1, TMax: -1}
}

// IterRange bounds applicability to iterations [min, max], leaving the clock
// unrestricted.
func IterRange(min, max int) Window {
	return Window{IterMin: min, IterMax: max, TMax: -1}
}

// TimeRange bounds applicability to clock values [min, max], leaving the
// iteration unrestricted.
func TimeRange(min, max int) Window {
	return Window{TMin: min, TMax: max, IterMax: -1}
}

// Contains reports whether the window admits the given iteration and time.
func (w Window) Contains(iter, t int) bool {
	if iter < w.IterMin || (w.IterMax >= 0 && iter > w.IterMax) {
		return false
	}
	if t < w.TMin || (w.TMax >= 0 && t > w.TMax) {
		return false
	}
	return true
}
