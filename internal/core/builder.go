package core

import (
	"fmt"

	"relaytap/config"
	"relaytap/internal/breaker"
	"relaytap/internal/hook"
	"relaytap/internal/metrics"
	"relaytap/internal/session"
	"relaytap/internal/transport"
	"relaytap/tunnel"
	"relaytap/util"
)

// Build constructs the Listener described by cfg.  cfg should already
// have passed Validate.
func Build(cfg *config.Config, logger *util.Logger, console *util.Console, m *metrics.Collector) (Mode, error) {
	cfg.ApplyDefaults()

	policy, err := session.ParseClosePolicy(cfg.ClosePolicy)
	if err != nil {
		return nil, err
	}

	dialer, err := buildDialer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.BreakerFailures > 0 {
		dialer = &transport.GuardedDialer{
			Dialer:  dialer,
			Breaker: buildBreaker(cfg, logger),
		}
	}

	return &Listener{
		Config:      cfg,
		Dialer:      dialer,
		Hooks:       buildHooks(cfg),
		Policy:      policy,
		Console:     console,
		Logger:      logger,
		Metrics:     m,
		GracePeriod: config.DefaultGracePeriod,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer picks how sessions reach the remote endpoint: through an
// SSH gateway, a SOCKS5 upstream, or directly.
func buildDialer(cfg *config.Config, logger *util.Logger) (transport.Dialer, error) {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.DialTimeout,
		}, logger), nil
	}

	up, err := config.ParseUpstream(cfg.Upstream)
	if err != nil {
		return nil, err
	}
	switch up.Scheme {
	case "direct":
		return &transport.TCPDialer{Timeout: cfg.DialTimeout}, nil
	case "socks5":
		return &transport.SOCKS5Dialer{
			ProxyAddr: up.Addr,
			Username:  up.Username,
			Password:  up.Password,
			Timeout:   cfg.DialTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported upstream scheme %q", up.Scheme)
	}
}

func buildBreaker(cfg *config.Config, logger *util.Logger) *breaker.Breaker {
	return breaker.New(&breaker.Config{
		MaxFailures:  cfg.BreakerFailures,
		ResetTimeout: cfg.BreakerReset,
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("remote %s circuit %s → %s", cfg.RemoteAddr(), from, to)
		},
	})
}

// buildHooks selects the per-direction transforms.  Unset directions
// pass bursts through unchanged.
func buildHooks(cfg *config.Config) hook.Hooks {
	var h hook.Hooks
	if cfg.UpperOutbound {
		h.Outbound = hook.Upper
	}
	if cfg.UpperInbound {
		h.Inbound = hook.Upper
	}
	return h
}
