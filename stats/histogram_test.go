package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogramScalars(t *testing.T) {
	h := NewHistogram(DefaultReservoirSize, DefaultAlpha, fixedClock(0))
	for _, v := range []float64{1, 2, 3, 4, 5} {
		h.Update(v)
	}
	assert.Equal(t, int64(5), h.Count())
	assert.Equal(t, 1.0, h.Min())
	assert.Equal(t, 5.0, h.Max())
	assert.Equal(t, 3.0, h.Mean())
	assert.InDelta(t, 1.5811, h.StdDev(), 0.001)
}

func TestHistogramEmpty(t *testing.T) {
	h := NewHistogram(DefaultReservoirSize, DefaultAlpha, fixedClock(0))
	assert.Equal(t, 0.0, h.Mean())
	assert.Equal(t, 0.0, h.StdDev())
	for _, p := range h.Percentiles(0.5, 0.9) {
		assert.Equal(t, 0.0, p)
	}
}

func TestHistogramClear(t *testing.T) {
	h := NewHistogram(DefaultReservoirSize, DefaultAlpha, fixedClock(0))
	h.Update(10)
	h.Update(20)
	h.Clear()
	assert.Equal(t, int64(0), h.Count())
	assert.Equal(t, 0, len(h.Values()))
	assert.Equal(t, 0.0, h.Mean())
}

func TestHistogramPercentiles(t *testing.T) {
	h := NewHistogram(DefaultReservoirSize, DefaultAlpha, fixedClock(0))
	for i := 0; i < 100; i++ {
		h.Update(float64(i))
	}
	p := h.Percentiles(0.5, 0.9, 0.99)
	assert.Equal(t, 49.0, p[0])
	assert.Equal(t, 89.0, p[1])
	assert.Equal(t, 98.0, p[2])
}
