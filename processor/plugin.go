package processor

import "github.com/bicycleday/gostatsd/stats"

// Metric is the capability interface a plugin accumulator exposes to the
// processor: process ingests one parsed datagram's fields, Flush renders
// the plugin's Graphite samples and is expected to reset any per-flush
// state the plugin owns (spec §9 "Plugin surface").
type Metric interface {
	Process(fields []string) error
	Flush(intervalSeconds float64, timestamp int64) []stats.Sample
}

// Factory builds a new plugin Metric for a given key the first time that
// key is seen for the factory's registered type token. Resolved once per
// key, not once per message (spec §9).
type Factory interface {
	// MetricType is the wire-format token (e.g. "h", "s") this factory
	// handles.
	MetricType() string
	// Build constructs a Metric for key, rendering under the given
	// message-path prefix.
	Build(prefix, key string, clock stats.Clock) Metric
}

// Registry resolves wire-type tokens to plugin factories. Populated once
// at process start.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds f under its own MetricType token. A later call for the
// same token replaces the earlier one.
func (r *Registry) Register(f Factory) {
	r.factories[f.MetricType()] = f
}

// Lookup returns the factory for typ, if any.
func (r *Registry) Lookup(typ string) (Factory, bool) {
	f, ok := r.factories[typ]
	return f, ok
}
