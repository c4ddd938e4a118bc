// Package sim drives a population through iterations: discrete time, rule
// scheduling, probes, pragmas and trajectory recording.
package sim

// Milliseconds per step for the common timer units.
const (
	MSMinute int64 = 60 * 1000
	MSHour   int64 = 60 * MSMinute
	MSDay    int64 = 24 * MSHour
	MSWeek   int64 = 7 * MSDay
)

// Timer tracks discrete simulation time: a monotone iteration counter plus a
// wrap-around clock t in [tmin, tmax) advanced by one per iteration. The unit
// fixes how many milliseconds one step represents, so runs with different
// units remain comparable.
type Timer struct {
	unitMS     int64
	iter       int
	t          int
	t0         int
	tmin, tmax int
}

// NewTimer constructs a timer starting at t0 on a [tmin, tmax) clock.
func NewTimer(unitMS int64, t0, tmin, tmax int) *Timer {
	if tmax <= tmin {
		tmax = tmin + 1
	}
	if t0 < tmin || t0 >= tmax {
		t0 = tmin
	}
	return &Timer{unitMS: unitMS, t: t0, t0: t0, tmin: tmin, tmax: tmax}
}

// NewHourTimer constructs an hour-of-day timer starting at t0.
func NewHourTimer(t0 int) *Timer { return NewTimer(MSHour, t0, 0, 24) }

// NewDayTimer constructs a day-of-year timer starting at t0.
func NewDayTimer(t0 int) *Timer { return NewTimer(MSDay, t0, 0, 365) }

// NewWeekTimer constructs a week-of-year timer starting at t0.
func NewWeekTimer(t0 int) *Timer { return NewTimer(MSWeek, t0, 0, 52) }

// Iter returns the number of completed steps.
func (tm *Timer) Iter() int { return tm.iter }

// T returns the current clock value.
func (tm *Timer) T() int { return tm.t }

// UnitMS returns the milliseconds one step represents.
func (tm *Timer) UnitMS() int64 { return tm.unitMS }

// ElapsedMS returns the total simulated time in milliseconds.
func (tm *Timer) ElapsedMS() int64 { return int64(tm.iter) * tm.unitMS }

// Step advances the timer by one unit, wrapping the clock at tmax.
func (tm *Timer) Step() {
	tm.iter++
	tm.t++
	if tm.t >= tm.tmax {
		tm.t = tm.tmin + (tm.t-tm.tmax)%(tm.tmax-tm.tmin)
	}
}

// Reset rewinds the timer to its starting state.
func (tm *Timer) Reset() {
	tm.iter = 0
	tm.t = tm.t0
}
