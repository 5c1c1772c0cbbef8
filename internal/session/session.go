// Package session relays one accepted client connection to the remote
// endpoint.  A session is driven by a single goroutine: it dials the
// remote, optionally forwards the remote's greeting first, then
// alternates client and remote bursts until the close policy says the
// conversation is over.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"relaytap/internal/collector"
	rterr "relaytap/internal/errors"
	"relaytap/internal/hexdump"
	"relaytap/internal/hook"
	"relaytap/internal/metrics"
	"relaytap/internal/transport"
	"relaytap/util"
)

// State is a session's position in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateRemoteFirstBurst
	StateRelayLoop
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRemoteFirstBurst:
		return "remote-first-burst"
	case StateRelayLoop:
		return "relay-loop"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClosePolicy decides when the relay loop ends.
type ClosePolicy int

const (
	// CloseOnEither ends the session as soon as either side is silent
	// for a whole collection window.
	CloseOnEither ClosePolicy = iota
	// CloseOnBoth keeps going while at least one side talks, and ends
	// when both are silent or a side has closed.
	CloseOnBoth
)

func (p ClosePolicy) String() string {
	switch p {
	case CloseOnEither:
		return "either"
	case CloseOnBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseClosePolicy maps "either" / "both" to a ClosePolicy.  The empty
// string selects CloseOnEither.
func ParseClosePolicy(s string) (ClosePolicy, error) {
	switch s {
	case "", "either":
		return CloseOnEither, nil
	case "both":
		return CloseOnBoth, nil
	default:
		return 0, fmt.Errorf("unknown close policy %q", s)
	}
}

// Session is one client connection and the remote connection opened
// for it.
type Session struct {
	ID           int64
	Client       net.Conn
	RemoteAddr   string
	ReceiveFirst bool

	IdleWait  time.Duration // per-read window; 0 means collector.DefaultWait
	HexWidth  int           // bytes per hexdump line; 0 means 16
	NoHexdump bool
	Policy    ClosePolicy
	Hooks     hook.Hooks

	Dialer  transport.Dialer
	Console *util.Console
	Logger  *util.Logger
	Metrics *metrics.Collector

	remote net.Conn
	state  atomic.Int32
	mu     sync.Mutex // guards remote assignment against close
	closed bool
}

// State returns the current lifecycle state.  Safe to call from any
// goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.Logger.Debug("state %s", st)
}

// Run drives the session to completion.  Both connections are closed
// when it returns.  The error is a *errors.ConnectError when the
// remote could not be reached, a *errors.NetworkError for a hard I/O
// failure mid-relay, and nil for an ordinary close.
//
// Cancelling ctx closes both connections, which ends any pending
// collection.
func (s *Session) Run(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = util.NewLogger(0)
	}
	s.Logger = s.Logger.Named(fmt.Sprintf("session-%d", s.ID))

	s.Metrics.SessionOpened()
	defer s.Metrics.SessionClosed()

	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	s.setState(StateConnecting)
	remote, err := s.Dialer.Dial(ctx, "tcp", s.RemoteAddr)
	if err != nil {
		if rterr.Is(err, rterr.ErrCircuitOpen) {
			s.Metrics.CircuitRejected()
		} else {
			s.Metrics.ConnectFailed()
		}
		cerr := &rterr.ConnectError{Addr: s.RemoteAddr, Err: err}
		s.Logger.Error("%v", cerr)
		s.close()
		s.setState(StateClosed)
		return cerr
	}
	if !s.setRemote(remote) {
		s.setState(StateClosed)
		return nil
	}
	s.Logger.Verbose("connected to remote %s", s.RemoteAddr)

	err = s.relay()

	s.close()
	s.setState(StateClosed)
	s.Console.Println("[#] No more data. Closing connections.")
	return err
}

func (s *Session) relay() error {
	if s.ReceiveFirst {
		s.setState(StateRemoteFirstBurst)
		b := s.collect(s.remote)
		if err := s.forwardFirst(b); err != nil {
			return err
		}
		if b.Outcome == collector.OutcomeError {
			return s.readError(s.remote, b.Err)
		}
	}

	s.setState(StateRelayLoop)
	for {
		out := s.collect(s.Client)
		if err := s.forward(hook.Outbound, out); err != nil {
			return err
		}
		if out.Outcome == collector.OutcomeError {
			return s.readError(s.Client, out.Err)
		}

		in := s.collect(s.remote)
		if err := s.forward(hook.Inbound, in); err != nil {
			return err
		}
		if in.Outcome == collector.OutcomeError {
			return s.readError(s.remote, in.Err)
		}

		if s.finished(out, in) {
			return nil
		}
	}
}

func (s *Session) collect(c net.Conn) collector.Burst {
	b := collector.Collect(c, s.IdleWait)
	s.Logger.Debug("collected %d bytes from %s (%s)", len(b.Data), util.PeerString(c.RemoteAddr()), b.Outcome)
	return b
}

// forwardFirst sends the remote's opening burst to the client.
func (s *Session) forwardFirst(b collector.Burst) error {
	lines := s.dump(b.Data)
	data := s.Hooks.Apply(hook.Inbound, b.Data)
	if len(data) == 0 {
		s.Console.Block(lines...)
		return nil
	}
	lines = append(lines, fmt.Sprintf("[<==] Sending %d bytes to localhost.", len(data)))
	s.Console.Block(lines...)

	if err := s.write(s.Client, data); err != nil {
		return err
	}
	s.Metrics.BurstForwarded(hook.Inbound, len(data))
	return nil
}

// forward reports a non-empty burst, runs it through the direction's
// hook and writes the result to the opposite side.
func (s *Session) forward(dir hook.Direction, b collector.Burst) error {
	if b.Empty() {
		return nil
	}

	from, to, dst := "localhost", "remote", s.remote
	if dir == hook.Inbound {
		from, to, dst = "remote", "localhost", s.Client
	}

	lines := []string{fmt.Sprintf("[%s] Received %d bytes from %s.", dir.Arrow(), len(b.Data), from)}
	lines = append(lines, s.dump(b.Data)...)

	data := s.Hooks.Apply(dir, b.Data)
	if len(data) > 0 {
		if err := s.write(dst, data); err != nil {
			s.Console.Block(lines...)
			return err
		}
	}
	s.Metrics.BurstForwarded(dir, len(data))

	lines = append(lines, fmt.Sprintf("[%s] Sent to %s.", dir.Arrow(), to))
	s.Console.Block(lines...)
	return nil
}

func (s *Session) write(c net.Conn, data []byte) error {
	if _, err := c.Write(data); err != nil {
		s.Metrics.RecordError(err.Error())
		nerr := rterr.Wrap("write", util.PeerString(c.RemoteAddr()), err)
		s.Logger.Verbose("%v", nerr)
		return nerr
	}
	return nil
}

func (s *Session) dump(data []byte) []string {
	if s.NoHexdump || len(data) == 0 {
		return nil
	}
	return hexdump.Dump(data, s.HexWidth)
}

// readError ends the session after a hard read failure.  Whatever was
// read before the failure has already been forwarded.
func (s *Session) readError(c net.Conn, err error) error {
	s.Metrics.RecordError(err.Error())
	nerr := rterr.Wrap("read", util.PeerString(c.RemoteAddr()), err)
	s.Logger.Verbose("%v", nerr)
	return nerr
}

func (s *Session) finished(out, in collector.Burst) bool {
	if s.Policy == CloseOnBoth {
		return (out.Empty() && in.Empty()) ||
			out.Outcome == collector.OutcomePeerClosed ||
			in.Outcome == collector.OutcomePeerClosed
	}
	return out.Empty() || in.Empty()
}

// setRemote records the dialled connection.  It reports false, closing
// c, when the session was already closed by cancellation.
func (s *Session) setRemote(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		c.Close()
		return false
	}
	s.remote = c
	return true
}

// close closes both connections exactly once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.Client != nil {
		s.Client.Close()
	}
	if s.remote != nil {
		s.remote.Close()
	}
}
