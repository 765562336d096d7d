// Package server provides the process-level collaborators the engine
// plugs into: the periodic tick/flush driver, the UDP ingest listener
// with its monitor-ping responder, and the TCP carbon writer. These are
// "interfaces only" in spec.md's scope, but a complete repository needs
// something concrete on the other end of each one (SPEC_FULL.md §5-§7).
package server

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bicycleday/gostatsd/processor"
	"github.com/bicycleday/gostatsd/stats"
)

// Writer accepts a rendered Graphite batch for delivery downstream.
// Implementations must not block ingest: a failed or slow write should be
// logged and dropped, not retried synchronously (spec §5/§7).
type Writer interface {
	Write(batch string) error
}

// Driver runs the two cadences spec.md §4.7 describes: a Tick on every
// meter/timer every 5 seconds, and a Flush on the configured
// flush-interval, handing each rendered batch to w.
type Driver struct {
	proc          *processor.Processor
	writer        Writer
	flushInterval time.Duration
	now           func() time.Time
	log           *logrus.Entry
}

// NewDriver constructs a driver. now defaults to time.Now if nil.
func NewDriver(proc *processor.Processor, w Writer, flushInterval time.Duration, now func() time.Time, log *logrus.Entry) *Driver {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{proc: proc, writer: w, flushInterval: flushInterval, now: now, log: log}
}

// Run blocks until ctx is cancelled. A shutdown cancels pending ticks and
// flushes; an in-flight flush always runs to completion before Run
// returns (spec §5 "Cancellation").
func (d *Driver) Run(ctx context.Context) {
	tickTicker := time.NewTicker(time.Duration(stats.TickInterval * float64(time.Second)))
	flushTicker := time.NewTicker(d.flushInterval)
	defer tickTicker.Stop()
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickTicker.C:
			d.proc.Tick()
		case <-flushTicker.C:
			d.flushOnce()
		}
	}
}

func (d *Driver) flushOnce() {
	samples := d.proc.Flush(d.now())
	if len(samples) == 0 {
		return
	}
	batch := stats.RenderBatch(samples)
	if err := d.writer.Write(batch); err != nil {
		d.log.WithError(err).Warn("dropping flush batch: downstream write failed")
	}
}
