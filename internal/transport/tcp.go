package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive net.KeepAliveConfig
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAliveConfig: d.KeepAlive}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
