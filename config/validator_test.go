package config

import (
	"strings"
	"testing"

	rterr "relaytap/internal/errors"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"local port hint", func(c *Config) { c.LocalPort = 0 }, "hint:"},
		{"policy hint", func(c *Config) { c.ClosePolicy = "x" }, `use "either" or "both"`},
		{"upstream combined", func(c *Config) {
			c.Upstream = "socks5://p:1"
			c.TunnelEnabled = true
			c.TunnelHost = "gw"
		}, "cannot be combined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestValidate_ConfigErrorType verifies callers can inspect the field.
func TestValidate_ConfigErrorType(t *testing.T) {
	cfg := validConfig()
	cfg.RemotePort = 99999

	var ce *rterr.ConfigError
	if !rterr.As(cfg.Validate(), &ce) {
		t.Fatal("expected *ConfigError")
	}
	if ce.Field != "remote-port" {
		t.Errorf("Field = %q, want remote-port", ce.Field)
	}
}

// TestParseTunnelSpec_EdgeCases covers additional tunnel specs.
func TestParseTunnelSpec_EdgeCases(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"user@host.with.dots:22", false},
		{"user@host-with-dashes", false},
		{"host:0", true},
		{"host:65536", true},
		{"user@", false}, // regex treats "user@" as hostname
		{"", true},
		{":22", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, _, _, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTunnelSpec(%q) err = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
