// Package core is the orchestration layer.  It turns a Config into a
// runnable [Mode]: today that is always the intercepting [Listener],
// wired with the dialer, hooks, console and metrics the Config asks for.
//
// Architecture layers (bottom → top):
//
//	collector, hexdump, hook, transport  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode.  It owns its lifecycle from
// bind to teardown and returns when ctx is cancelled or it fails.
type Mode interface {
	Run(ctx context.Context) error
}
