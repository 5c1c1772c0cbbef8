package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/txthinking/socks5"
)

// SOCKS5Dialer reaches the remote endpoint through a SOCKS5 proxy.
type SOCKS5Dialer struct {
	ProxyAddr string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Dial asks the proxy to CONNECT to address.  The socks5 client has no
// context support, so ctx is only checked before the dial starts.
func (d *SOCKS5Dialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("socks5 dial %s %s: unsupported network", network, address)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tcpTimeout := 0
	if d.Timeout > 0 {
		tcpTimeout = max(int(d.Timeout.Seconds()), 1)
	}

	client, err := socks5.NewClient(d.ProxyAddr, d.Username, d.Password, tcpTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", d.ProxyAddr, err)
	}

	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s dial %s: %w", d.ProxyAddr, address, err)
	}
	return conn, nil
}

// Close is a no-op; every Dial builds its own client.
func (d *SOCKS5Dialer) Close() error { return nil }
