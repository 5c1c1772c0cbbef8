package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	rterr "relaytap/internal/errors"
	"relaytap/util"
)

// SSHConfig holds everything needed to reach an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns host:port of the gateway.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements [Tunnel] with one ssh.Client shared by every
// session; each remote connection is a direct-tcpip channel.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
	closed bool
}

// NewSSHTunnel creates a tunnel that is ready to [SSHTunnel.Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger.Named("ssh")}
}

// Connect dials the gateway and completes the handshake.  Calling it
// again after the gateway dropped replaces the dead client.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return rterr.ErrTunnelClosed
	}

	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return rterr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return rterr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := t.config.Addr()
	t.logger.Debug("dialing %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return rterr.Wrap("dial", addr, err)
	}

	// The handshake itself is not context aware; a cancelled ctx
	// unblocks it by closing the socket.
	stop := context.AfterFunc(ctx, func() { tcpConn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	stop()
	if err != nil {
		tcpConn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			err = fmt.Errorf("%w: %v", rterr.ErrAuthFailed, err)
		}
		return rterr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	old := t.client
	t.client = client
	t.alive = true
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go t.monitor(client)

	return nil
}

// Dial opens a direct-tcpip channel to address through the gateway.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client, alive, closed := t.client, t.alive, t.closed
	t.mu.RUnlock()

	if closed {
		return nil, rterr.ErrTunnelClosed
	}
	if !alive || client == nil {
		return nil, rterr.ErrNotConnected
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.logger.Debug("opening channel to %s %s", network, address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("gateway dial %s: %w", address, err)
	}
	return conn, nil
}

// Close shuts down the gateway connection.  A closed tunnel cannot be
// reconnected.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	t.closed = true
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until client's connection ends and clears the alive
// flag if client is still the current one.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("gateway connection closed: %v", err)
	} else {
		t.logger.Debug("gateway connection closed")
	}
}
