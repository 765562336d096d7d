package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimerIgnoresNegativeDurations(t *testing.T) {
	tm := NewTimer(fixedClock(0))
	tm.Update(-1)
	assert.Equal(t, int64(0), tm.Histogram.Count())
	assert.Equal(t, 0.0, tm.Meter.Count())
}

func TestTimerUpdateMarksMeter(t *testing.T) {
	tm := NewTimer(fixedClock(0))
	tm.Update(5)
	tm.Update(10)
	assert.Equal(t, int64(2), tm.Histogram.Count())
	assert.Equal(t, 2.0, tm.Meter.Count())
}

func TestTimerReportShape(t *testing.T) {
	tm := NewTimer(fixedClock(0))
	for i := 0; i < 10; i++ {
		tm.Update(float64(i))
	}
	samples := tm.Report("stats.timers.orders", 1000)
	assert.Len(t, samples, 10)
	assert.Equal(t, "stats.timers.orders.min", samples[0].Name)
	assert.Equal(t, 0.0, samples[0].Value)
	assert.Equal(t, "stats.timers.orders.max", samples[1].Name)
	assert.Equal(t, 9.0, samples[1].Value)
}
