package netcheck

import (
	"net"
	"time"
)

const (
	defaultProbeAddr    = "1.1.1.1:53"
	defaultProbeTimeout = 2 * time.Second
)

// Checker reports whether network access currently looks usable by
// dialing a well-known address. Point-in-time only; it keeps no state
// between calls.
type Checker struct {
	addr    string
	timeout time.Duration
}

// New creates a Checker. Empty addr or non-positive timeout fall back
// to the defaults.
func New(addr string, timeout time.Duration) *Checker {
	if addr == "" {
		addr = defaultProbeAddr
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Checker{addr: addr, timeout: timeout}
}

// IsOnline dials the probe address with a short timeout.
func (c *Checker) IsOnline() bool {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
