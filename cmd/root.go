// Package cmd wires up the CLI flags and starts the relay.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"relaytap/config"
	"relaytap/internal/core"
	rterr "relaytap/internal/errors"
	"relaytap/internal/metrics"
	"relaytap/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X relaytap/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Output streams; tests swap them.
var (
	stdout io.Writer = os.Stdout //nolint:gochecknoglobals
	stderr io.Writer = os.Stderr //nolint:gochecknoglobals
)

// Execute parses args and runs the relay until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{}
	config.LoadFromEnv(cfg)
	cfg.ApplyDefaults()

	fs := flag.NewFlagSet("relaytap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── relay ────────────────────────────────────────────────────
	fs.DurationVar(&cfg.IdleWait, "idle-wait", cfg.IdleWait, "Silence that ends a burst")
	fs.IntVar(&cfg.HexWidth, "hex-width", cfg.HexWidth, "Bytes per hex dump line")
	fs.StringVar(&cfg.ClosePolicy, "close-policy", cfg.ClosePolicy, `End session when "either" or "both" sides go quiet`)
	fs.BoolVar(&cfg.NoHexdump, "no-hexdump", cfg.NoHexdump, "Report burst sizes without hex dumps")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Remote connect timeout")

	// ── hooks ────────────────────────────────────────────────────
	fs.BoolVar(&cfg.UpperOutbound, "upper-outbound", cfg.UpperOutbound, "Upper-case ASCII sent to the remote")
	fs.BoolVar(&cfg.UpperInbound, "upper-inbound", cfg.UpperInbound, "Upper-case ASCII sent to the client")

	// ── remote path ──────────────────────────────────────────────
	fs.StringVar(&cfg.Upstream, "upstream", cfg.Upstream, "Reach the remote via direct:// or socks5://[user:pass@]host:port")
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the remote through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.IntVar(&cfg.BreakerFailures, "breaker-failures", cfg.BreakerFailures, "Reject sessions after N straight connect failures (0 = off)")
	fs.DurationVar(&cfg.BreakerReset, "breaker-reset", cfg.BreakerReset, "How long the breaker stays open")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "Serve Prometheus /metrics on addr")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(stdout, "relaytap %s\n", version)
		return nil
	}
	if showHelp || (len(fs.Args()) == 0 && cfg.LocalHost == "") {
		printUsage(fs)
		return nil
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	console := util.NewConsole(stdout)
	m := metrics.New()

	mode, err := core.Build(cfg, logger, console, m)
	if err != nil {
		return err
	}
	listener := mode.(*core.Listener)
	defer listener.Close()

	if dryRun {
		fmt.Fprintf(stdout, "relay %s -> %s (receive_first=%t, close-policy=%s, upstream=%s)\n",
			cfg.LocalAddr(), cfg.RemoteAddr(), cfg.ReceiveFirst, cfg.ClosePolicy, dialPath(cfg))
		return nil
	}

	err = run(ctx, cfg, listener, m, logger)

	var bindErr *rterr.BindError
	if rterr.As(err, &bindErr) {
		fmt.Fprintf(stderr, "[-] Error on bind: %v\n", bindErr.Err)
		fmt.Fprintf(stderr, "[!] Failed to listen on %s\n", util.FormatAddr(cfg.LocalHost, cfg.LocalPort))
		fmt.Fprintln(stderr, "[!] Check for other listening sockets or correct permissions.")
	}

	logger.Debug("final metrics:\n%s", m.JSON())
	return err
}

// run serves the listener and, when configured, the metrics endpoint.
// Either failing stops the other.
func run(ctx context.Context, cfg *config.Config, l *core.Listener, m *metrics.Collector, logger *util.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return l.Run(ctx) })

	if cfg.MetricsListen != "" {
		logger.Verbose("metrics on http://%s/metrics", cfg.MetricsListen)
		g.Go(func() error { return m.Serve(ctx, cfg.MetricsListen) })
	}

	return g.Wait()
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads localhost localport remotehost remoteport
// receive_first.  With no arguments the environment must have supplied
// the endpoints.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 5:
	default:
		return fmt.Errorf("expected 5 arguments, got %d (use --help for usage)", len(remaining))
	}

	var err error
	cfg.LocalHost = remaining[0]
	if cfg.LocalPort, err = config.ParsePort(remaining[1]); err != nil {
		return fmt.Errorf("localport: %w", err)
	}
	cfg.RemoteHost = remaining[2]
	if cfg.RemotePort, err = config.ParsePort(remaining[3]); err != nil {
		return fmt.Errorf("remoteport: %w", err)
	}
	cfg.ReceiveFirst = config.ParseReceiveFirst(remaining[4])
	return nil
}

func dialPath(cfg *config.Config) string {
	if cfg.TunnelEnabled {
		return fmt.Sprintf("ssh://%s@%s", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	return cfg.Upstream
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stderr, `relaytap – TCP intercepting relay v%s

Accepts clients on a local address, connects each one to a fixed remote
endpoint and hex dumps every burst of traffic in both directions.

Usage:
  relaytap [options] <localhost> <localport> <remotehost> <remoteport> <receive_first>

receive_first is "True" when the remote speaks first (FTP, SMTP banners).

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(stderr, `
Examples:
  relaytap 127.0.0.1 9000 10.12.132.1 9000 True
  relaytap --upper-outbound 127.0.0.1 8080 example.com 80 False
  relaytap -T admin@bastion 0.0.0.0 5432 db-internal 5432 False
  relaytap --upstream socks5://127.0.0.1:1080 127.0.0.1 2121 ftp.example.com 21 True
`)
}
