package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEWMAColdStart(t *testing.T) {
	e := NewEWMA1()
	assert.Equal(t, 0.0, e.Rate())
}

func TestEWMAFirstTickIsInstantRate(t *testing.T) {
	e := NewEWMA(5, 60)
	e.Update(5)
	e.Tick()
	assert.Equal(t, 1.0, e.Rate())
}

func TestEWMASteadyStateConverges(t *testing.T) {
	e := NewEWMA(5, 60)
	for i := 0; i < 1000; i++ {
		e.Update(5) // 1/sec
		e.Tick()
	}
	assert.InDelta(t, 1.0, e.Rate(), 0.001)
}

func TestEWMAWindowOrdering(t *testing.T) {
	m1 := NewEWMA1()
	m5 := NewEWMA5()
	m15 := NewEWMA15()

	// Cold-start all three at rate 0 before the steady stream begins, so
	// the shorter windows visibly catch up faster than the longer ones.
	m1.Tick()
	m5.Tick()
	m15.Tick()

	for i := 0; i < 30; i++ {
		m1.Update(5)
		m5.Update(5)
		m15.Update(5)
		m1.Tick()
		m5.Tick()
		m15.Tick()
	}
	assert.GreaterOrEqual(t, m1.Rate(), m5.Rate())
	assert.GreaterOrEqual(t, m5.Rate(), m15.Rate())
}
