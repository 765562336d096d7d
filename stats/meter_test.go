package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeterMeanRate(t *testing.T) {
	now := 0.0
	clock := func() float64 { return now }
	m := NewMeter(clock)

	for i := 0; i < 10; i++ {
		m.Mark(1)
	}
	now = 5.0
	assert.InEpsilon(t, 2.0, m.MeanRate(), 1e-9)
}

func TestMeterMeanRateZeroElapsed(t *testing.T) {
	m := NewMeter(fixedClock(100))
	m.Mark(1)
	assert.Equal(t, 0.0, m.MeanRate())
}

func TestMeterRatesZeroBeforeTick(t *testing.T) {
	m := NewMeter(fixedClock(0))
	m.Mark(1)
	assert.Equal(t, 0.0, m.OneMinuteRate())
	assert.Equal(t, 0.0, m.FiveMinuteRate())
	assert.Equal(t, 0.0, m.FifteenMinuteRate())
}

func TestMeterReportShape(t *testing.T) {
	m := NewMeter(fixedClock(0))
	m.Mark(3)
	m.Tick()
	samples := m.Report("stats.meter.svc", 1000)
	assert.Len(t, samples, 5)
	names := []string{"count", "mean_rate", "1minute_rate", "5minute_rate", "15minute_rate"}
	for i, n := range names {
		assert.Equal(t, "stats.meter.svc."+n, samples[i].Name)
		assert.Equal(t, int64(1000), samples[i].Timestamp)
	}
}
