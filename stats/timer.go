package stats

// Timer composes a Histogram (for duration distribution) with a Meter
// (for call throughput). Negative durations are silently ignored (spec
// §4.5).
type Timer struct {
	Histogram *Histogram
	Meter     *Meter
}

// NewTimer constructs a timer whose histogram uses the standard
// reservoir size and decay constant.
func NewTimer(clock Clock) *Timer {
	return &Timer{
		Histogram: NewHistogram(DefaultReservoirSize, DefaultAlpha, clock),
		Meter:     NewMeter(clock),
	}
}

// Update records a duration. Negative durations are dropped without
// affecting the histogram or meter.
func (t *Timer) Update(d float64) {
	if d < 0 {
		return
	}
	t.Histogram.Update(d)
	t.Meter.Mark(1)
}

// Tick advances the meter's EWMAs.
func (t *Timer) Tick() {
	t.Meter.Tick()
}

// Report renders the full per-duration statistics block (min, max, mean,
// stddev, median, 75/95/98/99/99.9 percentiles) under prefix. This is the
// general-purpose timer reporter described in spec §4.5; the message
// processor's own flush format (mean/upper/upper_P/lower/count, spec
// §4.6) is computed directly from Histogram.SortedValues() instead of
// calling this method — the two are different StatsD output shapes built
// from the same underlying accumulator.
func (t *Timer) Report(prefix string, ts int64) []Sample {
	p := t.Histogram.Percentiles(0.5, 0.75, 0.95, 0.98, 0.99, 0.999)
	return []Sample{
		{Name: prefix + ".min", Value: t.Histogram.Min(), Timestamp: ts},
		{Name: prefix + ".max", Value: t.Histogram.Max(), Timestamp: ts},
		{Name: prefix + ".mean", Value: t.Histogram.Mean(), Timestamp: ts},
		{Name: prefix + ".stddev", Value: t.Histogram.StdDev(), Timestamp: ts},
		{Name: prefix + ".median", Value: p[0], Timestamp: ts},
		{Name: prefix + ".75percentile", Value: p[1], Timestamp: ts},
		{Name: prefix + ".95percentile", Value: p[2], Timestamp: ts},
		{Name: prefix + ".98percentile", Value: p[3], Timestamp: ts},
		{Name: prefix + ".99percentile", Value: p[4], Timestamp: ts},
		{Name: prefix + ".999percentile", Value: p[5], Timestamp: ts},
	}
}
