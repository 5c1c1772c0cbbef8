// Package config defines the runtime configuration for relaytap and
// provides helpers for parsing the positional arguments, upstream URLs
// and SSH tunnel specifications.
package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	rterr "relaytap/internal/errors"
)

// Config is the explicit record handed to the listener.  Argument
// parsing lives entirely in cmd; nothing here reads os.Args.
type Config struct {
	// ── Endpoints ────────────────────────────────────────────────────
	LocalHost    string
	LocalPort    int
	RemoteHost   string
	RemotePort   int
	ReceiveFirst bool // remote side speaks first

	// ── Relay behaviour ──────────────────────────────────────────────
	IdleWait    time.Duration // collector idle window
	HexWidth    int           // bytes per hex dump line
	ClosePolicy string        // "either" or "both"
	NoHexdump   bool
	DialTimeout time.Duration

	// ── Transform hooks ──────────────────────────────────────────────
	UpperOutbound bool
	UpperInbound  bool

	// ── Remote dial path ─────────────────────────────────────────────
	Upstream string // direct:// or socks5://[user:pass@]host[:port]

	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	BreakerFailures int // 0 disables the circuit breaker
	BreakerReset    time.Duration

	// ── Output ───────────────────────────────────────────────────────
	MetricsListen string
	Verbose       int
}

// Close policies accepted by --close-policy.
const (
	PolicyEither = "either"
	PolicyBoth   = "both"
)

// LocalAddr returns the bind address.
func (c *Config) LocalAddr() string {
	return net.JoinHostPort(c.LocalHost, strconv.Itoa(c.LocalPort))
}

// RemoteAddr returns the address every session dials.
func (c *Config) RemoteAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

// ApplyDefaults fills zero-valued tuneables.
func (c *Config) ApplyDefaults() {
	if c.IdleWait == 0 {
		c.IdleWait = DefaultIdleWait
	}
	if c.HexWidth == 0 {
		c.HexWidth = DefaultHexWidth
	}
	if c.ClosePolicy == "" {
		c.ClosePolicy = PolicyEither
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Upstream == "" {
		c.Upstream = DefaultUpstream
	}
	if c.BreakerReset == 0 {
		c.BreakerReset = DefaultBreakerReset
	}
}

// ── Positional helpers ───────────────────────────────────────────────

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ParseReceiveFirst interprets the fifth positional argument.  Any
// value containing "true" (case-insensitive) enables it, so "True",
// "true" and "--True" all work; everything else disables it.
func ParseReceiveFirst(v string) bool {
	return strings.Contains(strings.ToLower(v), "true")
}

// ── Upstream parser ──────────────────────────────────────────────────

// Upstream is a parsed --upstream URL.
type Upstream struct {
	Scheme   string // "direct" or "socks5"
	Addr     string // proxy host:port (empty for direct)
	Username string
	Password string
}

// ParseUpstream parses direct:// or socks5://[user:pass@]host[:port].
func ParseUpstream(raw string) (Upstream, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Upstream{}, fmt.Errorf("invalid upstream url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if u.Path != "" && u.Path != "/" {
		return Upstream{}, fmt.Errorf("invalid upstream url %q: path should be empty", raw)
	}

	switch scheme {
	case "":
		return Upstream{}, fmt.Errorf("invalid upstream url %q: missing scheme", raw)
	case "direct":
		return Upstream{Scheme: scheme}, nil
	case "socks5":
		host := u.Hostname()
		if host == "" {
			return Upstream{}, fmt.Errorf("invalid upstream url %q: missing host", raw)
		}
		port := u.Port()
		if port == "" {
			port = strconv.Itoa(DefaultSOCKS5Port)
		}
		up := Upstream{Scheme: scheme, Addr: net.JoinHostPort(host, port)}
		if u.User != nil {
			up.Username = u.User.Username()
			up.Password, _ = u.User.Password()
		}
		return up, nil
	default:
		return Upstream{}, fmt.Errorf("unsupported upstream scheme %q", scheme)
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.LocalHost == "" {
		return &rterr.ConfigError{Field: "local-host", Message: "required",
			Hint: "pass the bind address as the first argument, e.g. 127.0.0.1"}
	}
	if c.LocalPort < 1 || c.LocalPort > 65535 {
		return &rterr.ConfigError{Field: "local-port", Value: c.LocalPort,
			Message: "out of range 1-65535", Hint: "use a port between 1 and 65535"}
	}
	if c.RemoteHost == "" {
		return &rterr.ConfigError{Field: "remote-host", Message: "required"}
	}
	if c.RemotePort < 1 || c.RemotePort > 65535 {
		return &rterr.ConfigError{Field: "remote-port", Value: c.RemotePort,
			Message: "out of range 1-65535", Hint: "use a port between 1 and 65535"}
	}
	if c.IdleWait < 0 {
		return &rterr.ConfigError{Field: "idle-wait", Value: c.IdleWait, Message: "must not be negative"}
	}
	if c.HexWidth < 0 {
		return &rterr.ConfigError{Field: "hex-width", Value: c.HexWidth, Message: "must not be negative"}
	}
	switch c.ClosePolicy {
	case "", PolicyEither, PolicyBoth:
	default:
		return &rterr.ConfigError{Field: "close-policy", Value: c.ClosePolicy,
			Message: "unknown policy", Hint: `use "either" or "both"`}
	}
	if c.Upstream != "" {
		up, err := ParseUpstream(c.Upstream)
		if err != nil {
			return &rterr.ConfigError{Field: "upstream", Value: c.Upstream, Message: err.Error(),
				Hint: "use direct:// or socks5://[user:pass@]host:port"}
		}
		if up.Scheme != "direct" && c.TunnelEnabled {
			return &rterr.ConfigError{Field: "upstream", Value: c.Upstream,
				Message: "cannot be combined with an SSH tunnel (-T)"}
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &rterr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.BreakerFailures < 0 {
		return &rterr.ConfigError{Field: "breaker-failures", Value: c.BreakerFailures,
			Message: "must not be negative", Hint: "0 disables the circuit breaker"}
	}
	return nil
}
