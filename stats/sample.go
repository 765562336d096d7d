package stats

import (
	"fmt"
	"math"
	"strconv"
)

// Sample is one rendered Graphite line: a dotted metric path, a value,
// and the unix-second timestamp shared by every sample in a flush.
type Sample struct {
	Name      string
	Value     float64
	Timestamp int64
}

// Line renders the sample in Graphite's line-oriented text format:
// "<metric-path> <value> <unix-seconds>\n".
func (s Sample) Line() string {
	return fmt.Sprintf("%s %s %d\n", s.Name, FormatValue(s.Value), s.Timestamp)
}

// FormatValue renders v the way the host's default real-number printing
// would, except that integral values are emitted without a trailing
// decimal point (spec §6, egress wire format).
func FormatValue(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// RenderBatch concatenates Line() for every sample in order.
func RenderBatch(samples []Sample) string {
	out := make([]byte, 0, len(samples)*32)
	for _, s := range samples {
		out = append(out, s.Line()...)
	}
	return string(out)
}
