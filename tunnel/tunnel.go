// Package tunnel carries the remote half of a relayed session through
// an SSH gateway.  The relay still connects to a fixed remote endpoint;
// the gateway only decides the network path the connection takes.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is a long-lived channel through which remote connections are
// opened.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel.
	Close() error

	// IsAlive reports whether the gateway connection is still up.
	IsAlive() bool
}
