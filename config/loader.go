package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags and positional arguments  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv overlays RELAYTAP_* environment variables onto cfg.
// Only non-empty variables override the existing value.  Booleans
// accept "1", "true", "yes" (case-insensitive).
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RELAYTAP_LOCAL_HOST"); v != "" {
		cfg.LocalHost = v
	}
	if v := envInt("RELAYTAP_LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if v := os.Getenv("RELAYTAP_REMOTE_HOST"); v != "" {
		cfg.RemoteHost = v
	}
	if v := envInt("RELAYTAP_REMOTE_PORT"); v > 0 {
		cfg.RemotePort = v
	}
	if envBool("RELAYTAP_RECEIVE_FIRST") {
		cfg.ReceiveFirst = true
	}

	if v := envDuration("RELAYTAP_IDLE_WAIT"); v > 0 {
		cfg.IdleWait = v
	}
	if v := envInt("RELAYTAP_HEX_WIDTH"); v > 0 {
		cfg.HexWidth = v
	}
	if v := os.Getenv("RELAYTAP_CLOSE_POLICY"); v != "" {
		cfg.ClosePolicy = strings.ToLower(v)
	}
	if envBool("RELAYTAP_NO_HEXDUMP") {
		cfg.NoHexdump = true
	}
	if v := envDuration("RELAYTAP_DIAL_TIMEOUT"); v > 0 {
		cfg.DialTimeout = v
	}

	// Remote dial path
	if v := os.Getenv("RELAYTAP_UPSTREAM"); v != "" {
		cfg.Upstream = v
	}
	if v := os.Getenv("RELAYTAP_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("RELAYTAP_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("RELAYTAP_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("RELAYTAP_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("RELAYTAP_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if v := envInt("RELAYTAP_BREAKER_FAILURES"); v > 0 {
		cfg.BreakerFailures = v
	}

	// Output
	if v := os.Getenv("RELAYTAP_METRICS_LISTEN"); v != "" {
		cfg.MetricsListen = v
	}
	if v := envInt("RELAYTAP_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts Go duration syntax ("750ms") or bare seconds ("5").
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
