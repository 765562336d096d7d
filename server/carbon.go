package server

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CarbonWriter owns one TCP connection to a Graphite/carbon endpoint. It
// redials lazily on the next write after a failure rather than retrying
// in a background loop, so a downstream outage costs at most one dropped
// batch per flush rather than a blocked ingest path (spec §5 "Shared
// resources").
type CarbonWriter struct {
	addr    string
	dialer  net.Dialer
	timeout time.Duration
	log     *logrus.Entry

	mu   sync.Mutex
	conn net.Conn
}

// NewCarbonWriter targets host:port. dialTimeout bounds how long a
// (re)connect attempt may block before the batch is dropped.
func NewCarbonWriter(addr string, dialTimeout time.Duration, log *logrus.Entry) *CarbonWriter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CarbonWriter{addr: addr, timeout: dialTimeout, log: log}
}

// Write sends batch over the (re)established TCP connection. A transient
// failure is logged at warning and returned to the caller, which is
// expected to drop the batch rather than retry synchronously (spec §7).
func (c *CarbonWriter) Write(batch string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
		if err != nil {
			c.log.WithError(err).WithField("addr", c.addr).Warn("carbon dial failed")
			return err
		}
		c.conn = conn
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write([]byte(batch)); err != nil {
		c.log.WithError(err).WithField("addr", c.addr).Warn("carbon write failed, will redial on next flush")
		c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// Close releases the underlying connection, if any.
func (c *CarbonWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
