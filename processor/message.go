// Package processor implements the message processor: datagram parsing,
// routing to per-key accumulators, and the periodic flush that renders
// accumulator state into Graphite samples.
package processor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bicycleday/gostatsd/stats"
)

// MetricType is the wire-format type token that follows the first "|" in
// a StatsD datagram.
type MetricType string

const (
	TypeCounter MetricType = "c"
	TypeTimer   MetricType = "ms"
	TypeGauge   MetricType = "g"
	TypeMeter   MetricType = "m"
)

// rateExpr matches the original's RATE = re.compile("^@([\d\.]+)"), used
// there via re.match: start-anchored only, so trailing garbage after the
// numeric rate is accepted and ignored rather than rejecting the field.
var rateExpr = regexp.MustCompile(`^@([\d.]+)`)

// message is one parsed "key:payload" datagram.
type message struct {
	key    string
	typ    string
	fields []string // payload split on "|" (value, type[, @rate])
}

// parse implements the wire grammar from spec §4.6 / §6: reject if there
// is no ":" or no "|" separator, or if the field count isn't 2 or 3.
func parse(raw string) (message, error) {
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return message{}, fmt.Errorf("malformed message, no ':' separator: %q", raw)
	}
	key := raw[:colon]
	payload := raw[colon+1:]
	if key == "" {
		return message{}, fmt.Errorf("malformed message, empty key: %q", raw)
	}
	if !strings.Contains(payload, "|") {
		return message{}, fmt.Errorf("malformed message, no '|' separator: %q", raw)
	}
	fields := strings.Split(payload, "|")
	if len(fields) < 2 || len(fields) > 3 {
		return message{}, fmt.Errorf("malformed message, expected 2 or 3 fields: %q", raw)
	}
	if fields[0] == "" {
		return message{}, fmt.Errorf("malformed message, empty value: %q", raw)
	}
	return message{
		key:    stats.NormalizeKey(key),
		typ:    fields[1],
		fields: fields,
	}, nil
}

func errUnknownType(typ string) error {
	return fmt.Errorf("unknown metric type %q", typ)
}

// extractRate parses an "@rate" third field, defaulting to 1 when absent.
func extractRate(fields []string) (float64, error) {
	if len(fields) < 3 {
		return 1, nil
	}
	m := rateExpr.FindStringSubmatch(fields[2])
	if m == nil {
		return 0, fmt.Errorf("malformed sample rate field: %q", fields[2])
	}
	rate, err := strconv.ParseFloat(m[1], 64)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("invalid sample rate: %q", fields[2])
	}
	return rate, nil
}
