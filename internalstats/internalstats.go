// Package internalstats exposes the engine's own operational counters
// over a Prometheus /metrics endpoint, as a pull-based complement to the
// statsd.* self-metrics block the processor pushes to Graphite on every
// flush. It does not replace that push path; it reads the same
// processor.Snapshot data from the opposite direction.
package internalstats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bicycleday/gostatsd/processor"
)

// Exporter registers a Prometheus collector backed by a processor's
// Snapshot and serves it over HTTP.
type Exporter struct {
	registry *prometheus.Registry
	proc     *processor.Processor
}

// New constructs an Exporter for proc.
func New(proc *processor.Processor) *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry(), proc: proc}
	e.registry.MustRegister(snapshotCollector{proc: proc})
	return e
}

// Handler returns the http.Handler to mount at "/metrics".
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

var (
	ingestCountDesc = prometheus.NewDesc(
		"gostatsd_ingest_total", "Messages ingested since the last flush, by wire type.",
		[]string{"type"}, nil)
	ingestSecondsDesc = prometheus.NewDesc(
		"gostatsd_ingest_seconds_total", "Cumulative ingest processing time since the last flush, by wire type.",
		[]string{"type"}, nil)
	reservoirOccupancyDesc = prometheus.NewDesc(
		"gostatsd_timer_reservoir_occupancy", "Current number of samples retained in a timer's reservoir.",
		[]string{"key"}, nil)
	trackedKeysDesc = prometheus.NewDesc(
		"gostatsd_tracked_keys", "Number of distinct keys currently tracked, by accumulator category.",
		[]string{"category"}, nil)
)

// snapshotCollector adapts a processor.Snapshot to prometheus.Collector
// without retaining any state between scrapes.
type snapshotCollector struct {
	proc *processor.Processor
}

func (c snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- ingestCountDesc
	ch <- ingestSecondsDesc
	ch <- reservoirOccupancyDesc
	ch <- trackedKeysDesc
}

func (c snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.proc.Snapshot()

	for typ, count := range snap.IngestCountByType {
		ch <- prometheus.MustNewConstMetric(ingestCountDesc, prometheus.CounterValue, float64(count), typ)
	}
	for typ, seconds := range snap.IngestSecondsByType {
		ch <- prometheus.MustNewConstMetric(ingestSecondsDesc, prometheus.CounterValue, seconds, typ)
	}
	for key, occupancy := range snap.TimerReservoirOccupancy {
		ch <- prometheus.MustNewConstMetric(reservoirOccupancyDesc, prometheus.GaugeValue, float64(occupancy), key)
	}

	categories := map[string]int{
		"counter": snap.CounterKeys,
		"gauge":   snap.GaugeKeys,
		"meter":   snap.MeterKeys,
		"timer":   snap.TimerKeys,
		"plugin":  snap.PluginKeys,
	}
	for category, n := range categories {
		ch <- prometheus.MustNewConstMetric(trackedKeysDesc, prometheus.GaugeValue, float64(n), category)
	}
}
