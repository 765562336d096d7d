package statcollector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bicycleday/gostatsd/processor"
)

func TestCollectorIngestsGaugesFromSources(t *testing.T) {
	cfg := processor.DefaultConfig()
	proc := processor.New(cfg, func() float64 { return 0 }, nil)

	c := &Collector{proc: proc, interval: time.Millisecond, sources: map[string]Source{}}
	c.Register("fake", func() (map[string]float64, error) {
		return map[string]float64{"fake.value": 42}, nil
	})

	c.collectOnce()

	out := proc.Flush(time.Unix(1000, 0))
	var found bool
	for _, s := range out {
		if s.Name == "stats.gauge.fake.value.value" && s.Value == 42 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCollectorSkipsFailingSource(t *testing.T) {
	cfg := processor.DefaultConfig()
	proc := processor.New(cfg, func() float64 { return 0 }, nil)

	c := &Collector{proc: proc, interval: time.Millisecond, sources: map[string]Source{}}
	c.Register("broken", func() (map[string]float64, error) {
		return nil, errors.New("boom")
	})

	assert.NotPanics(t, func() { c.collectOnce() })
}

func TestCollectorRunStopsOnCancel(t *testing.T) {
	cfg := processor.DefaultConfig()
	proc := processor.New(cfg, func() float64 { return 0 }, nil)
	c := &Collector{proc: proc, interval: time.Millisecond, sources: map[string]Source{}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Run did not return after context cancellation")
	}
}
