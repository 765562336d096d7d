package processor

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bicycleday/gostatsd/stats"
)

// Namespace selects between the legacy Graphite layout and the
// configurable one (spec §4.6 "Namespaces").
type Namespace int

const (
	// LegacyNamespace uses "stats.", "stats_counts.", "stats.timers.",
	// "stats.gauge.", and an internal prefix of "statsd.".
	LegacyNamespace Namespace = iota
	// ConfigurableNamespace uses "<msg_prefix>.", "<msg_prefix>.counters.",
	// ".timers.", ".gauges.", and a configured internal prefix.
	ConfigurableNamespace
)

// Config carries every processor-level option named in spec §6.
type Config struct {
	Namespace             Namespace
	MessagePrefix         string // non-legacy namespace root, e.g. "stats"
	InternalMetricsPrefix string // self-metric root, e.g. "statsd."
	DeleteIdleCounters    bool
	LightweightMode       bool
	PercentThreshold      int // timer trimmed-mean percentile, default 90
	FlushIntervalMillis   int64
	DeltaGauges           bool // SPEC_FULL.md §9 open question 1, default false
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Namespace:             LegacyNamespace,
		MessagePrefix:         "stats",
		InternalMetricsPrefix: "statsd.",
		PercentThreshold:      90,
		FlushIntervalMillis:   10000,
	}
}

func (c Config) prefixes() (statsPfx, statsCounts, timers, gauges, internal string) {
	if c.Namespace == LegacyNamespace {
		return "stats.", "stats_counts.", "stats.timers.", "stats.gauge.", "statsd."
	}
	p := c.MessagePrefix
	return p + ".", p + ".counters.", p + ".timers.", p + ".gauges.", c.InternalMetricsPrefix
}

// Processor holds the four accumulator maps and the plugin map for one
// server instance, and computes parse -> route -> flush per spec §4.6.
// All exported methods are intended to run on a single logical thread of
// control (spec §5); Processor itself does not add locking beyond what's
// needed to let Ingest be called from a network-reading goroutine while
// Flush/Tick run on the driver's goroutine (see mu).
type Processor struct {
	cfg      Config
	clock    stats.Clock
	registry *Registry
	onFail   func(raw string, err error)

	mu sync.Mutex

	counters map[string]float64
	gauges   map[string]float64
	meters   map[string]*stats.Meter
	timers   map[string]*stats.Timer
	plugins  map[string]Metric
	// pluginTypeOf remembers which factory built each plugin key, so a
	// later message for the same key with a different (surprising) type
	// token doesn't silently reuse the wrong plugin instance.
	pluginTypeOf map[string]string

	byType         map[string]int64
	processTimings map[string]float64
}

// New constructs a Processor. clock is consulted for every
// time-dependent operation (accumulator start times, flush timestamps);
// registry may be nil for an engine with no plugin types configured.
func New(cfg Config, clock stats.Clock, registry *Registry) *Processor {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Processor{
		cfg:            cfg,
		clock:          clock,
		registry:       registry,
		counters:       make(map[string]float64),
		gauges:         make(map[string]float64),
		meters:         make(map[string]*stats.Meter),
		timers:         make(map[string]*stats.Timer),
		plugins:        make(map[string]Metric),
		pluginTypeOf:   make(map[string]string),
		byType:         make(map[string]int64),
		processTimings: make(map[string]float64),
	}
}

// OnFail registers a callback invoked for every malformed or rejected
// ingest message, typically wired to a debug-level logger (spec §7).
func (p *Processor) OnFail(fn func(raw string, err error)) {
	p.onFail = fn
}

// Ingest parses and routes one raw datagram payload (without its
// trailing newline). Malformed or unrecognized-type messages are
// reported via OnFail and otherwise dropped, per spec §6/§7.
func (p *Processor) Ingest(raw string) {
	start := p.clock()

	msg, err := parse(raw)
	if err != nil {
		p.fail(raw, err)
		return
	}

	var routeErr error
	switch MetricType(msg.typ) {
	case TypeCounter:
		routeErr = p.routeCounter(msg)
	case TypeTimer:
		routeErr = p.routeTimer(msg)
	case TypeGauge:
		routeErr = p.routeGauge(msg)
	case TypeMeter:
		routeErr = p.routeMeter(msg)
	default:
		if factory, ok := p.registry.Lookup(msg.typ); ok {
			routeErr = p.routePlugin(factory, msg)
		} else {
			p.fail(raw, errUnknownType(msg.typ))
			return
		}
	}
	if routeErr != nil {
		p.fail(raw, routeErr)
		return
	}

	p.mu.Lock()
	p.byType[msg.typ]++
	p.processTimings[msg.typ] += p.clock() - start
	p.mu.Unlock()
}

func (p *Processor) fail(raw string, err error) {
	if p.onFail != nil {
		p.onFail(raw, err)
	}
}

func (p *Processor) routeCounter(msg message) error {
	value, err := strconv.ParseFloat(msg.fields[0], 64)
	if err != nil {
		return err
	}
	rate, err := extractRate(msg.fields)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.counters[msg.key] += value * (1 / rate)
	p.mu.Unlock()
	return nil
}

func (p *Processor) routeTimer(msg message) error {
	value, err := strconv.ParseFloat(msg.fields[0], 64)
	if err != nil {
		return err
	}
	p.mu.Lock()
	t, ok := p.timers[msg.key]
	if !ok {
		t = stats.NewTimer(p.clock)
		p.timers[msg.key] = t
	}
	t.Update(value)
	p.mu.Unlock()
	return nil
}

func (p *Processor) routeGauge(msg message) error {
	raw := msg.fields[0]
	delta := false
	sign := 1.0
	if p.cfg.DeltaGauges && len(raw) > 0 && (raw[0] == '+' || raw[0] == '-') {
		delta = true
		if raw[0] == '-' {
			sign = -1
		}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if delta {
		p.gauges[msg.key] += sign * absFloat(value)
	} else {
		p.gauges[msg.key] = value
	}
	p.mu.Unlock()
	return nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (p *Processor) routeMeter(msg message) error {
	value, err := strconv.ParseFloat(msg.fields[0], 64)
	if err != nil {
		return err
	}
	p.mu.Lock()
	m, ok := p.meters[msg.key]
	if !ok {
		m = stats.NewMeter(p.clock)
		p.meters[msg.key] = m
	}
	m.Mark(value)
	p.mu.Unlock()
	return nil
}

// pluginMessagePrefix mirrors the grounded source's
// get_message_prefix(kind), which is always "stats.<kind>" independent of
// the namespace/legacy configuration.
func pluginMessagePrefix(typ string) string {
	return "stats." + typ
}

func (p *Processor) routePlugin(factory Factory, msg message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	metric, ok := p.plugins[msg.key]
	if ok && p.pluginTypeOf[msg.key] != msg.typ {
		return fmt.Errorf("key %q already holds a %q plugin metric, not %q", msg.key, p.pluginTypeOf[msg.key], msg.typ)
	}
	if !ok {
		metric = factory.Build(pluginMessagePrefix(msg.typ), msg.key, p.clock)
		p.plugins[msg.key] = metric
		p.pluginTypeOf[msg.key] = msg.typ
	}
	return metric.Process(msg.fields)
}

// Snapshot is a point-in-time, non-destructive read of the engine's
// internal operational counters, for a pull-based metrics exporter
// (e.g. internalstats) to expose alongside the Graphite-bound
// flush.*/receive.* self metrics. IngestCountByType and
// IngestSecondsByType reset on every Flush, same as the values Flush
// itself renders; TimerReservoirOccupancy also drops to 0 for every timer
// key at each Flush, since Flush clears each timer's reservoir.
type Snapshot struct {
	IngestCountByType       map[string]int64
	IngestSecondsByType     map[string]float64
	TimerReservoirOccupancy map[string]int
	CounterKeys             int
	GaugeKeys               int
	MeterKeys               int
	TimerKeys               int
	PluginKeys              int
}

// Snapshot returns the current Snapshot. Safe to call concurrently with
// Ingest/Tick/Flush.
func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	byType := make(map[string]int64, len(p.byType))
	for k, v := range p.byType {
		byType[k] = v
	}
	seconds := make(map[string]float64, len(p.processTimings))
	for k, v := range p.processTimings {
		seconds[k] = v
	}
	occupancy := make(map[string]int, len(p.timers))
	for key, t := range p.timers {
		occupancy[key] = t.Histogram.ReservoirSize()
	}

	return Snapshot{
		IngestCountByType:       byType,
		IngestSecondsByType:     seconds,
		TimerReservoirOccupancy: occupancy,
		CounterKeys:             len(p.counters),
		GaugeKeys:               len(p.gauges),
		MeterKeys:               len(p.meters),
		TimerKeys:               len(p.timers),
		PluginKeys:              len(p.plugins),
	}
}

// Tick advances every meter's and every timer's EWMA state. Driven by the
// periodic driver's 5-second cadence (spec §4.7).
func (p *Processor) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.meters {
		m.Tick()
	}
	for _, t := range p.timers {
		t.Tick()
	}
}

// Flush renders every accumulator's current state into a batch of
// samples, in the fixed category order counters -> timers -> gauges ->
// meters -> plugins -> summary (spec §4.6/§5), and resets per-flush
// state. now is typically time.Now, truncated to the second once at the
// start of the flush so every sample in the batch shares one timestamp.
func (p *Processor) Flush(now time.Time) []stats.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := now.Unix()
	intervalSeconds := float64(p.cfg.FlushIntervalMillis) / 1000.0
	statsPfx, countPfx, timerPfx, gaugePfx, internalPfx := p.cfg.prefixes()

	var out []stats.Sample
	perMetric := map[string][2]float64{} // category -> (event count, duration seconds)

	start := p.clock()
	counterSamples, counterEvents := p.flushCounters(statsPfx, countPfx, intervalSeconds, ts)
	out = append(out, counterSamples...)
	perMetric["counter"] = [2]float64{float64(counterEvents), p.clock() - start}

	start = p.clock()
	timerSamples, timerEvents := p.flushTimers(timerPfx, ts)
	out = append(out, timerSamples...)
	perMetric["timer"] = [2]float64{float64(timerEvents), p.clock() - start}

	start = p.clock()
	gaugeSamples, gaugeEvents := p.flushGauges(gaugePfx, ts)
	out = append(out, gaugeSamples...)
	perMetric["gauge"] = [2]float64{float64(gaugeEvents), p.clock() - start}

	start = p.clock()
	meterSamples, meterEvents := p.flushMeters(ts)
	out = append(out, meterSamples...)
	perMetric["meter"] = [2]float64{float64(meterEvents), p.clock() - start}

	start = p.clock()
	pluginSamples, pluginEvents := p.flushPlugins(intervalSeconds, ts)
	out = append(out, pluginSamples...)
	perMetric["plugin"] = [2]float64{float64(pluginEvents), p.clock() - start}

	numStats := counterEvents + timerEvents + gaugeEvents + meterEvents + pluginEvents
	out = append(out, p.flushSummary(internalPfx, numStats, perMetric, ts)...)

	return out
}

func (p *Processor) flushCounters(statsPfx, countPfx string, intervalSeconds float64, ts int64) ([]stats.Sample, int) {
	var out []stats.Sample
	events := 0
	for key, count := range p.counters {
		events++
		value := count / intervalSeconds
		if p.cfg.Namespace == LegacyNamespace {
			if !p.cfg.LightweightMode {
				out = append(out, stats.Sample{Name: statsPfx + key, Value: value, Timestamp: ts})
			}
			out = append(out, stats.Sample{Name: countPfx + key, Value: count, Timestamp: ts})
		} else {
			if !p.cfg.LightweightMode {
				out = append(out, stats.Sample{Name: countPfx + key + ".rate", Value: value, Timestamp: ts})
			}
			out = append(out, stats.Sample{Name: countPfx + key + ".count", Value: count, Timestamp: ts})
		}
		if p.cfg.DeleteIdleCounters {
			delete(p.counters, key)
		} else {
			p.counters[key] = 0
		}
	}
	return out, events
}

func (p *Processor) flushTimers(timerPfx string, ts int64) ([]stats.Sample, int) {
	var out []stats.Sample
	events := 0
	type pending struct {
		key     string
		samples []stats.Sample
	}
	var batches []pending
	for key, timer := range p.timers {
		events++
		sorted := timer.Histogram.SortedValues()
		n := len(sorted)
		if n == 0 {
			timer.Histogram.Clear()
			continue
		}
		lower := sorted[0]
		upper := sorted[n-1]
		count := n
		mean := lower
		thresholdUpper := upper
		if n > 1 {
			percent := float64(p.cfg.PercentThreshold)
			idx := n - int(roundHalfAwayFromZero((100-percent)/100*float64(n)))
			if idx < 1 {
				idx = 1
			}
			if idx > n {
				idx = n
			}
			trimmed := sorted[:idx]
			sum := 0.0
			for _, v := range trimmed {
				sum += v
			}
			mean = sum / float64(idx)
			thresholdUpper = trimmed[len(trimmed)-1]
		}

		prefix := timerPfx + key
		items := map[string]float64{
			".mean":  mean,
			".upper": upper,
			".upper_" + strconv.Itoa(p.cfg.PercentThreshold): thresholdUpper,
			".lower": lower,
		}
		if !p.cfg.LightweightMode {
			items[".count"] = float64(count)
		}
		names := make([]string, 0, len(items))
		for suffix := range items {
			names = append(names, prefix+suffix)
		}
		sort.Strings(names)
		samples := make([]stats.Sample, 0, len(names))
		for _, name := range names {
			suffix := name[len(prefix):]
			samples = append(samples, stats.Sample{Name: name, Value: items[suffix], Timestamp: ts})
		}
		batches = append(batches, pending{key: key, samples: samples})
		timer.Histogram.Clear()
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].key < batches[j].key })
	for _, b := range batches {
		out = append(out, b.samples...)
	}
	return out, events
}

func (p *Processor) flushGauges(gaugePfx string, ts int64) ([]stats.Sample, int) {
	var out []stats.Sample
	events := 0
	for key, value := range p.gauges {
		events++
		out = append(out, stats.Sample{Name: gaugePfx + key + ".value", Value: value, Timestamp: ts})
	}
	return out, events
}

// meterPrefix is hardcoded to "stats.meter." regardless of namespace
// mode, matching the grounded source's MeterMetricReporter construction
// (which never consults legacy_namespace/message_prefix for meters).
const meterPrefix = "stats.meter."

func (p *Processor) flushMeters(ts int64) ([]stats.Sample, int) {
	var out []stats.Sample
	events := 0
	for key, meter := range p.meters {
		events++
		out = append(out, meter.Report(meterPrefix+key, ts)...)
	}
	return out, events
}

func (p *Processor) flushPlugins(intervalSeconds float64, ts int64) ([]stats.Sample, int) {
	var out []stats.Sample
	events := 0
	for _, metric := range p.plugins {
		events++
		out = append(out, metric.Flush(intervalSeconds, ts)...)
	}
	return out, events
}

func (p *Processor) flushSummary(internalPfx string, numStats int, perMetric map[string][2]float64, ts int64) []stats.Sample {
	out := []stats.Sample{{Name: internalPfx + "numStats", Value: float64(numStats), Timestamp: ts}}

	names := make([]string, 0, len(perMetric))
	for name := range perMetric {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ev := perMetric[name]
		out = append(out,
			stats.Sample{Name: internalPfx + "flush." + name + ".count", Value: ev[0], Timestamp: ts},
			stats.Sample{Name: internalPfx + "flush." + name + ".duration", Value: ev[1] * 1000, Timestamp: ts},
		)
	}

	types := make([]string, 0, len(p.byType))
	for typ := range p.byType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		out = append(out,
			stats.Sample{Name: internalPfx + "receive." + typ + ".count", Value: float64(p.byType[typ]), Timestamp: ts},
			stats.Sample{Name: internalPfx + "receive." + typ + ".duration", Value: p.processTimings[typ] * 1000, Timestamp: ts},
		)
	}
	p.byType = make(map[string]int64)
	p.processTimings = make(map[string]float64)

	return out
}

// roundHalfAwayFromZero is the round() used by the trimmed-mean idx
// formula: exact halves round away from zero (2.5 -> 3), where
// round-half-to-even would give 2. The worked timer examples round 0.8
// and 10, which give the same idx under either rule.
func roundHalfAwayFromZero(v float64) float64 {
	if v < 0 {
		return -roundHalfAwayFromZero(-v)
	}
	i := float64(int64(v))
	frac := v - i
	if frac >= 0.5 {
		return i + 1
	}
	return i
}
