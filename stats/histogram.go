package stats

import (
	"math"
	"sort"
)

// Histogram wraps a Reservoir and keeps exact running scalars (min, max,
// count, sum, and Welford's M2 for variance) the way an exponentially
// decaying sample cannot recover once values fall out of it.
type Histogram struct {
	reservoir *Reservoir

	count int64
	min   float64
	max   float64
	sum   float64
	mean  float64 // Welford running mean
	m2    float64
}

// NewHistogram constructs a histogram backed by a reservoir of the given
// size and decay constant.
func NewHistogram(size int, alpha float64, clock Clock) *Histogram {
	return &Histogram{reservoir: NewReservoir(size, alpha, clock)}
}

// Update records v: forwarded to the reservoir, and folded into the exact
// running scalars via Welford's algorithm.
func (h *Histogram) Update(v float64) {
	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v

	delta := v - h.mean
	h.mean += delta / float64(h.count)
	h.m2 += delta * (v - h.mean)

	h.reservoir.Update(v)
}

// Clear zeroes every scalar and empties the reservoir.
func (h *Histogram) Clear() {
	h.count = 0
	h.min = 0
	h.max = 0
	h.sum = 0
	h.mean = 0
	h.m2 = 0
	h.reservoir.Clear()
}

// Count returns the exact number of updates since the last Clear.
func (h *Histogram) Count() int64 { return h.count }

// Min returns the exact minimum value seen since the last Clear, 0 if none.
func (h *Histogram) Min() float64 { return h.min }

// Max returns the exact maximum value seen since the last Clear, 0 if none.
func (h *Histogram) Max() float64 { return h.max }

// Sum returns the exact running sum since the last Clear.
func (h *Histogram) Sum() float64 { return h.sum }

// Mean returns sum/count, 0 if count is 0.
func (h *Histogram) Mean() float64 {
	if h.count == 0 {
		return 0
	}
	return h.mean
}

// StdDev returns the sample standard deviation, 0 if count <= 1.
func (h *Histogram) StdDev() float64 {
	if h.count <= 1 {
		return 0
	}
	return math.Sqrt(h.m2 / float64(h.count-1))
}

// ReservoirSize returns the number of samples currently retained in the
// underlying reservoir (<= its configured capacity).
func (h *Histogram) ReservoirSize() int { return h.reservoir.Size() }

// Values returns a snapshot of the retained reservoir sample, unsorted.
func (h *Histogram) Values() []float64 {
	return h.reservoir.Values()
}

// SortedValues returns a sorted copy of the retained reservoir sample.
func (h *Histogram) SortedValues() []float64 {
	values := h.reservoir.Values()
	sort.Float64s(values)
	return values
}

// Percentiles computes, for each p in ps (0..1), the value at index
// round(p*n) (1-indexed) of the sorted retained sample, or 0 if n is 0 or
// the computed index is less than 1.
func (h *Histogram) Percentiles(ps ...float64) []float64 {
	sorted := h.SortedValues()
	n := len(sorted)
	out := make([]float64, len(ps))
	for i, p := range ps {
		if n == 0 {
			out[i] = 0
			continue
		}
		idx := int(math.Round(p * float64(n)))
		if idx < 1 {
			out[i] = 0
			continue
		}
		if idx > n {
			idx = n
		}
		out[i] = sorted[idx-1]
	}
	return out
}
