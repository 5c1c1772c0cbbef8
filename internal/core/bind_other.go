//go:build !unix

package core

import (
	"context"
	"net"

	"relaytap/util"
)

// listenTCP binds host:port.  Outside unix the backlog is left to the
// operating system.
func listenTCP(host string, port, _ int) (net.Listener, error) {
	lc := net.ListenConfig{}
	return lc.Listen(context.Background(), "tcp", util.FormatAddr(host, port))
}
