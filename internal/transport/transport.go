// Package transport opens the outbound half of each relayed session.
// The remote endpoint may be dialled directly, through a SOCKS5
// upstream, or through an SSH gateway; the session only sees a
// [Dialer].
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
