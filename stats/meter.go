package stats

// Meter counts marks and derives a mean rate plus three EWMA rates (1, 5,
// and 15 minute windows). It never resets: a meter accumulator lives for
// the process lifetime of its key (spec §3).
type Meter struct {
	clock Clock

	count     float64
	startTime float64

	m1  *EWMA
	m5  *EWMA
	m15 *EWMA
}

// NewMeter constructs a meter, capturing the start time from clock once.
func NewMeter(clock Clock) *Meter {
	return &Meter{
		clock:     clock,
		startTime: clock(),
		m1:        NewEWMA1(),
		m5:        NewEWMA5(),
		m15:       NewEWMA15(),
	}
}

// Mark records n occurrences (default 1 at the call sites that don't
// carry an explicit value).
func (m *Meter) Mark(n float64) {
	m.count += n
	m.m1.Update(n)
	m.m5.Update(n)
	m.m15.Update(n)
}

// Tick advances all three EWMAs by one tick interval.
func (m *Meter) Tick() {
	m.m1.Tick()
	m.m5.Tick()
	m.m15.Tick()
}

// Count returns the total marks recorded.
func (m *Meter) Count() float64 { return m.count }

// MeanRate returns count / elapsed seconds since construction, 0 if no
// time has elapsed.
func (m *Meter) MeanRate() float64 {
	now := m.clock()
	elapsed := now - m.startTime
	if elapsed <= 0 {
		return 0
	}
	return m.count / elapsed
}

// OneMinuteRate, FiveMinuteRate, FifteenMinuteRate return the current
// EWMA rate for each window, 0 before the first tick.
func (m *Meter) OneMinuteRate() float64     { return m.m1.Rate() }
func (m *Meter) FiveMinuteRate() float64    { return m.m5.Rate() }
func (m *Meter) FifteenMinuteRate() float64 { return m.m15.Rate() }

// Report renders the meter's fixed 5-line Graphite block under the given
// dotted prefix (e.g. "stats.meter.<key>" or "<msg-prefix>.meters.<key>").
func (m *Meter) Report(prefix string, ts int64) []Sample {
	return []Sample{
		{Name: prefix + ".count", Value: m.count, Timestamp: ts},
		{Name: prefix + ".mean_rate", Value: m.MeanRate(), Timestamp: ts},
		{Name: prefix + ".1minute_rate", Value: m.OneMinuteRate(), Timestamp: ts},
		{Name: prefix + ".5minute_rate", Value: m.FiveMinuteRate(), Timestamp: ts},
		{Name: prefix + ".15minute_rate", Value: m.FifteenMinuteRate(), Timestamp: ts},
	}
}
