package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicycleday/gostatsd/processor"
	"github.com/bicycleday/gostatsd/stats"
)

func TestListenerIngestsDatagram(t *testing.T) {
	cfg := processor.DefaultConfig()
	proc := processor.New(cfg, func() float64 { return 0 }, nil)

	l, err := NewListener("127.0.0.1:0", proc, "", "", nil)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("k:1|c\n"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	out := proc.Flush(time.Unix(1000, 0))
	var found bool
	for _, s := range out {
		if s.Name == "stats_counts.k" && s.Value == 1 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestListenerMonitorPingBypassesProcessor(t *testing.T) {
	cfg := processor.DefaultConfig()
	proc := processor.New(cfg, func() float64 { return 0 }, nil)

	l, err := NewListener("127.0.0.1:0", proc, "healthcheck", "ok", nil)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("healthcheck"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf[:n]))

	out := proc.Flush(time.Unix(1000, 0))
	assert.Equal(t, noCounterSamples(out), true)
}

func noCounterSamples(out []stats.Sample) bool {
	for _, s := range out {
		if hasServerPrefix(s.Name, "stats_counts.") {
			return false
		}
	}
	return true
}

func hasServerPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
