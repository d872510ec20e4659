// Package netcheck decides whether the device is online by opening a TCP
// connection to a well-known host.
package netcheck

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAddr    = "8.8.8.8:53"
	DefaultTimeout = 1500 * time.Millisecond
)

// Prober probes one address. A failed probe of any kind means offline.
type Prober struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
	log     zerolog.Logger
}

// New returns a prober for addr. Empty values fall back to the defaults.
func New(addr string, timeout time.Duration, log zerolog.Logger) *Prober {
	if addr == "" {
		addr = DefaultAddr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{addr: addr, timeout: timeout, log: log}
}

func (p *Prober) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		p.log.Debug().Err(err).Str("addr", p.addr).Msg("offline")
		return false
	}
	conn.Close()
	return true
}
