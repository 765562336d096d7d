package server

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bicycleday/gostatsd/processor"
)

// Listener owns the UDP ingest socket. Every received datagram is handed
// to the processor's Ingest with only its trailing newlines removed
// (parsing happens inside the processor, spec §4.6); a configured
// monitor-ping datagram instead gets
// an immediate reply and never reaches the processor (spec §6 "Monitor
// ping... No interaction with the processor").
type Listener struct {
	conn            *net.UDPConn
	proc            *processor.Processor
	monitorMessage  []byte
	monitorResponse []byte
	log             *logrus.Entry
}

// NewListener binds addr (e.g. "0.0.0.0:8125") and returns a Listener
// ready to Run.
func NewListener(addr string, proc *processor.Processor, monitorMessage, monitorResponse string, log *logrus.Entry) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Listener{
		conn:            conn,
		proc:            proc,
		monitorMessage:  []byte(monitorMessage),
		monitorResponse: []byte(monitorResponse),
		log:             log,
	}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Close releases the UDP socket.
func (l *Listener) Close() error { return l.conn.Close() }

// Run reads datagrams until ctx is cancelled. Each read uses a short
// deadline so Run can notice cancellation promptly without a dedicated
// stop channel (the teacher's pattern in pipeline/statsd_input.go).
func (l *Listener) Run(ctx context.Context) {
	buf := make([]byte, 8192)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		l.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		if n == 0 {
			continue
		}
		msg := buf[:n]
		if len(l.monitorMessage) > 0 && bytes.Equal(msg, l.monitorMessage) {
			if _, err := l.conn.WriteToUDP(l.monitorResponse, raddr); err != nil {
				l.log.WithError(err).Warn("failed to reply to monitor ping")
			}
			continue
		}
		l.handle(msg)
	}
}

// handle ingests one datagram as a single message. Spec §6: "Multiple
// messages per datagram are not supported at this layer" — a trailing
// newline is trimmed, but embedded newlines are left for the processor's
// parser to reject as malformed, not silently split here.
func (l *Listener) handle(msg []byte) {
	l.proc.Ingest(string(bytes.TrimRight(msg, "\n")))
}
