package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t float64) Clock {
	return func() float64 { return t }
}

func TestReservoirSizeBound(t *testing.T) {
	clock := float64(0)
	r := NewReservoir(DefaultReservoirSize, DefaultAlpha, func() float64 { return clock })

	for i := 0; i < 5000; i++ {
		r.Update(float64(i))
		clock += 0.01
	}

	assert.LessOrEqual(t, r.Size(), DefaultReservoirSize)
	assert.LessOrEqual(t, int64(r.Size()), r.Count())
	assert.Equal(t, int64(5000), r.Count())
}

func TestReservoirRescaleKeepsFinitePriorities(t *testing.T) {
	clock := float64(0)
	r := NewReservoir(200, DefaultAlpha, func() float64 { return clock })

	// Simulate a 2-hour window with 2000 updates.
	step := (2 * 3600.0) / 2000.0
	for i := 0; i < 2000; i++ {
		r.Update(float64(i % 100))
		clock += step
	}

	require.NotEmpty(t, r.items)
	for _, it := range r.items {
		assert.False(t, isInfOrNaN(it.priority), "priority should be finite and nonzero: %v", it.priority)
		assert.NotZero(t, it.priority)
	}
}

func TestReservoirMonotonicPercentilesAfterRescale(t *testing.T) {
	clock := float64(0)
	h := NewHistogram(500, DefaultAlpha, func() float64 { return clock })

	step := (2 * 3600.0) / 3000.0
	for i := 0; i < 3000; i++ {
		h.Update(float64(i % 1000))
		clock += step
	}

	p := h.Percentiles(0.5, 0.75, 0.95, 0.99)
	assert.LessOrEqual(t, p[0], p[1])
	assert.LessOrEqual(t, p[1], p[2])
	assert.LessOrEqual(t, p[2], p[3])
}

func isInfOrNaN(f float64) bool {
	return f != f || f > 1e300 || f < -1e300
}
