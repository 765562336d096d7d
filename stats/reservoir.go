// Package stats implements the statistical primitives used to aggregate
// StatsD-style measurements into Graphite samples: an exponentially
// decaying reservoir, a histogram reporter built on top of it, EWMA rate
// tracking, and the meter and timer reporters that compose them.
package stats

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// DefaultReservoirSize and DefaultAlpha match the values the timer
// reporter uses for its percentile estimates (spec: R=1028, alpha=0.015).
const (
	DefaultReservoirSize = 1028
	DefaultAlpha         = 0.015
)

const rescaleInterval = 3600 // seconds

// reservoirItem is one (priority, value) pair kept by the reservoir.
type reservoirItem struct {
	priority float64
	value    float64
}

// Reservoir is a priority-weighted sample of up to size real values that
// biases retention toward recently observed values. It is safe for
// concurrent use, though the engine's single-writer discipline means the
// locking is mostly a defensive no-op in the expected deployment.
type Reservoir struct {
	mu    sync.Mutex
	size  int
	alpha float64

	clock Clock

	startTime     float64
	nextScaleTime float64

	count int64
	items []reservoirItem // kept sorted ascending by priority
}

// Clock returns the current time as a float64 number of seconds, the way
// every clock-consuming component in this engine is parameterized (clock
// injection, so tests can substitute a deterministic clock). time.Now().Unix()
// truncates to the second, so callers that need sub-second resolution
// should supply a finer-grained implementation.
type Clock func() float64

// NewReservoir constructs a reservoir with the given capacity and decay
// constant, capturing the startup time from clock once.
func NewReservoir(size int, alpha float64, clock Clock) *Reservoir {
	now := clock()
	return &Reservoir{
		size:          size,
		alpha:         alpha,
		clock:         clock,
		startTime:     now,
		nextScaleTime: now + rescaleInterval,
		items:         make([]reservoirItem, 0, size),
	}
}

// Update draws a weight-biased priority for value and inserts it,
// evicting the lowest-priority entry once the reservoir is full.
func (r *Reservoir) Update(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	priority := r.newPriority(now)
	r.count++

	if len(r.items) < r.size {
		r.insert(reservoirItem{priority: priority, value: value})
	} else if priority > r.items[0].priority {
		r.items = r.items[1:]
		r.insert(reservoirItem{priority: priority, value: value})
	}

	if now >= r.nextScaleTime {
		r.rescale(now)
	}
}

func (r *Reservoir) newPriority(now float64) float64 {
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	return math.Exp(r.alpha*(now-r.startTime)) / u
}

// insert keeps r.items sorted ascending by priority.
func (r *Reservoir) insert(item reservoirItem) {
	idx := sort.Search(len(r.items), func(i int) bool {
		return r.items[i].priority >= item.priority
	})
	r.items = append(r.items, reservoirItem{})
	copy(r.items[idx+1:], r.items[idx:])
	r.items[idx] = item
}

// rescale prevents priority overflow over long-running processes by
// re-basing every stored priority to a fresh start time once per hour of
// wall time.
func (r *Reservoir) rescale(now float64) {
	oldStart := r.startTime
	r.startTime = now
	r.nextScaleTime = now + rescaleInterval
	factor := math.Exp(-r.alpha * (now - oldStart))
	rescaled := make([]reservoirItem, len(r.items))
	for i, it := range r.items {
		rescaled[i] = reservoirItem{priority: it.priority * factor, value: it.value}
	}
	sort.Slice(rescaled, func(i, j int) bool { return rescaled[i].priority < rescaled[j].priority })
	r.items = rescaled
}

// Count returns the total number of updates ever observed, independent of
// how many are currently retained.
func (r *Reservoir) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Size returns the number of values currently retained.
func (r *Reservoir) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Values returns a snapshot copy of the retained values, order
// unspecified except that callers who need order (e.g. for percentiles)
// must sort it themselves.
func (r *Reservoir) Values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	values := make([]float64, len(r.items))
	for i, it := range r.items {
		values[i] = it.value
	}
	return values
}

// Clear empties the reservoir without resetting count or start time.
func (r *Reservoir) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
}
