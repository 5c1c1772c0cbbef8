package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultIdleWait is how long the collector waits for the next
	// fragment before declaring a burst complete.
	DefaultIdleWait = 5 * time.Second

	// DefaultHexWidth is the number of bytes rendered per hex dump line.
	DefaultHexWidth = 16

	// DefaultBacklog is the listen(2) backlog for the local socket.
	DefaultBacklog = 5

	// DefaultDialTimeout bounds the outbound connect for each session.
	DefaultDialTimeout = 30 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSOCKS5Port is applied to socks5:// upstreams without a port.
	DefaultSOCKS5Port = 1080

	// DefaultUpstream dials the remote endpoint directly.
	DefaultUpstream = "direct://"

	// DefaultBreakerReset is how long an open circuit rejects sessions
	// before a probe dial is allowed.
	DefaultBreakerReset = 30 * time.Second

	// DefaultGracePeriod is how long shutdown waits for sessions.
	DefaultGracePeriod = 5 * time.Second
)
