// Package statcollector periodically samples host and self-process
// vitals and feeds them into the processor as gauge messages, the Go
// equivalent of original_source/txstatsd/process.py's report_stats /
// PROCESS_STATS / SYSTEM_STATS tables. Unlike that table of
// (filename, parser) pairs read with non-blocking twisted I/O, each
// source here is a Source func, and all sources are sampled
// synchronously, one after another, on the collector's single ticker
// goroutine, since Go has no need for the deferred-read plumbing the
// original used to avoid blocking its reactor.
package statcollector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/bicycleday/gostatsd/processor"
)

// Source samples one stat group and returns name/value pairs, mirroring
// the {prefix + label: amount} dicts parse_meminfo/parse_loadavg/
// report_self_stat/report_system_stat build in the original.
type Source func() (map[string]float64, error)

// Collector samples every registered Source on an interval and ingests
// each value as a gauge message ("<name>:<value>|g") through proc.
type Collector struct {
	proc     *processor.Processor
	interval time.Duration
	sources  map[string]Source
	log      *logrus.Entry
}

// New constructs a Collector with the standard meminfo/loadavg/self-
// process/system-cpu sources wired in (spec.md §7 "stat collector").
func New(proc *processor.Processor, interval time.Duration, log *logrus.Entry) *Collector {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Collector{proc: proc, interval: interval, sources: make(map[string]Source), log: log}
	c.Register("meminfo", MeminfoSource())
	c.Register("loadavg", LoadavgSource())
	c.Register("self.stat", SelfProcessSource(os.Getpid()))
	c.Register("stat", SystemCPUSource())
	return c
}

// Register adds or replaces a named Source. Exposed so a caller can
// extend or, in tests, stub the standard sources.
func (c *Collector) Register(name string, src Source) {
	c.sources[name] = src
}

// Run samples every source once per interval until ctx is cancelled. A
// source error is logged at Warn and that source's values are skipped
// for the tick, mirroring the original's per-deferred errback.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

func (c *Collector) collectOnce() {
	for name, src := range c.sources {
		values, err := src()
		if err != nil {
			c.log.WithError(err).WithField("source", name).Warn("stat collection failed")
			continue
		}
		for metric, value := range values {
			c.proc.Ingest(fmt.Sprintf("%s:%s|g", metric, formatGauge(value)))
		}
	}
}

func formatGauge(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// MeminfoSource reads /proc/meminfo via procfs, reporting the same key
// subset as MEMINFO_KEYS in the original (total/free/buffers/cached and
// swap cached/total/free), in bytes.
func MeminfoSource() Source {
	return func() (map[string]float64, error) {
		fs, err := procfs.NewDefaultFS()
		if err != nil {
			return nil, err
		}
		mi, err := fs.Meminfo()
		if err != nil {
			return nil, err
		}
		out := map[string]float64{}
		addKB := func(name string, p *uint64) {
			if p != nil {
				out["meminfo."+name] = float64(*p) * 1024
			}
		}
		addKB("MemTotal", mi.MemTotal)
		addKB("MemFree", mi.MemFree)
		addKB("Buffers", mi.Buffers)
		addKB("Cached", mi.Cached)
		addKB("SwapCached", mi.SwapCached)
		addKB("SwapTotal", mi.SwapTotal)
		addKB("SwapFree", mi.SwapFree)
		return out, nil
	}
}

// LoadavgSource reads /proc/loadavg, reporting the 1/5/15-minute load
// averages under the same oneminute/fiveminutes/fifthteenminutes labels
// the original used (kept verbatim, including its misspelling, since
// that is the wire name downstream dashboards may already key on).
func LoadavgSource() Source {
	return func() (map[string]float64, error) {
		fs, err := procfs.NewDefaultFS()
		if err != nil {
			return nil, err
		}
		la, err := fs.LoadAvg()
		if err != nil {
			return nil, err
		}
		return map[string]float64{
			"loadavg.oneminute":        la.Load1,
			"loadavg.fiveminutes":      la.Load5,
			"loadavg.fifthteenminutes": la.Load15,
		}, nil
	}
}

// SelfProcessSource reports this process's own CPU and memory vitals via
// gopsutil, the Go analogue of report_self_stat's psutil.Process calls.
func SelfProcessSource(pid int) Source {
	return func() (map[string]float64, error) {
		proc, err := process.NewProcess(int32(pid))
		if err != nil {
			return nil, err
		}
		cpuPercent, err := proc.Percent(0)
		if err != nil {
			return nil, err
		}
		times, err := proc.Times()
		if err != nil {
			return nil, err
		}
		mem, err := proc.MemoryInfo()
		if err != nil {
			return nil, err
		}
		memPercent, err := proc.MemoryPercent()
		if err != nil {
			return nil, err
		}
		return map[string]float64{
			"self.stat.cpu.percent":    cpuPercent,
			"self.stat.cpu.user":       times.User,
			"self.stat.cpu.system":     times.System,
			"self.stat.memory.percent": float64(memPercent),
			"self.stat.memory.vsize":   float64(mem.VMS),
			"self.stat.memory.rss":     float64(mem.RSS),
		}, nil
	}
}

// SystemCPUSource reports host-wide CPU time breakdown, the Go analogue
// of report_system_stat's psutil.cpu_times() call.
func SystemCPUSource() Source {
	return func() (map[string]float64, error) {
		times, err := cpu.Times(false)
		if err != nil {
			return nil, err
		}
		if len(times) == 0 {
			return nil, fmt.Errorf("statcollector: no cpu.Times samples returned")
		}
		t := times[0]
		return map[string]float64{
			"stat.cpu.idle":   t.Idle,
			"stat.cpu.iowait": t.Iowait,
			"stat.cpu.irq":    t.Irq,
			"stat.cpu.nice":   t.Nice,
			"stat.cpu.system": t.System,
			"stat.cpu.user":   t.User,
		}, nil
	}
}
