package transport

import (
	"context"
	"net"

	"relaytap/internal/breaker"
)

// GuardedDialer runs every dial through a circuit breaker so a dead
// remote endpoint fails sessions fast instead of once per timeout.
type GuardedDialer struct {
	Dialer  Dialer
	Breaker *breaker.Breaker
}

// Dial forwards to the wrapped dialer unless the circuit is open.
func (g *GuardedDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	var conn net.Conn
	err := g.Breaker.Execute(func() error {
		var err error
		conn, err = g.Dialer.Dial(ctx, network, address)
		return err
	})
	return conn, err
}

// Close closes the wrapped dialer.
func (g *GuardedDialer) Close() error { return g.Dialer.Close() }
