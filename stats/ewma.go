package stats

import "math"

// TickInterval is the quantum at which every EWMA in the engine advances,
// driven by the periodic driver's 5-second tick (spec §4.3/§4.7).
const TickInterval = 5.0 // seconds

// Standard StatsD/metrics window sizes, in seconds.
const (
	OneMinuteWindow     = 60.0
	FiveMinuteWindow    = 300.0
	FifteenMinuteWindow = 900.0
)

// EWMA is an exponentially weighted moving average over a fixed window,
// advanced by a fixed tick interval. Marks accumulate as "uncounted" until
// the next Tick folds them into the rate.
type EWMA struct {
	interval float64
	alpha    float64

	uncounted float64
	rate      float64
	started   bool
}

// NewEWMA constructs an EWMA for the given tick interval and averaging
// window, both in seconds. alpha = 1 - exp(-interval/window).
func NewEWMA(interval, window float64) *EWMA {
	return &EWMA{
		interval: interval,
		alpha:    1 - math.Exp(-interval/window),
	}
}

// NewEWMA1 constructs the standard 1-minute EWMA.
func NewEWMA1() *EWMA { return NewEWMA(TickInterval, OneMinuteWindow) }

// NewEWMA5 constructs the standard 5-minute EWMA.
func NewEWMA5() *EWMA { return NewEWMA(TickInterval, FiveMinuteWindow) }

// NewEWMA15 constructs the standard 15-minute EWMA.
func NewEWMA15() *EWMA { return NewEWMA(TickInterval, FifteenMinuteWindow) }

// Update adds n to the pending, not-yet-ticked mark count.
func (e *EWMA) Update(n float64) {
	e.uncounted += n
}

// Tick folds the pending marks into the rate and resets the pending
// count. Before the first tick, Rate reads 0 (spec §8 "Before the first
// tick, all window rates read as 0"); internally this is tracked with a
// started flag rather than literally storing -1, since the public Rate
// accessor already clamps to 0 in that state.
func (e *EWMA) Tick() {
	instantRate := e.uncounted / e.interval
	if e.started {
		e.rate += e.alpha * (instantRate - e.rate)
	} else {
		e.rate = instantRate
		e.started = true
	}
	e.uncounted = 0
}

// Rate returns the current per-second rate, 0 before the first Tick.
func (e *EWMA) Rate() float64 {
	if !e.started {
		return 0
	}
	return e.rate
}
