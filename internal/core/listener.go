package core

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"relaytap/config"
	rterr "relaytap/internal/errors"
	"relaytap/internal/hook"
	"relaytap/internal/metrics"
	"relaytap/internal/session"
	"relaytap/internal/transport"
	"relaytap/util"
)

// Listener accepts clients on the local endpoint and runs one
// [session.Session] per connection against the remote endpoint.
type Listener struct {
	Config  *config.Config
	Dialer  transport.Dialer
	Hooks   hook.Hooks
	Policy  session.ClosePolicy
	Console *util.Console
	Logger  *util.Logger
	Metrics *metrics.Collector

	// GracePeriod is how long in-flight sessions may keep running after
	// ctx is cancelled before their connections are closed.  Zero
	// closes them immediately.
	GracePeriod time.Duration

	nextID atomic.Int64
}

// Run binds the local endpoint and serves until ctx is cancelled.  A
// bind failure is returned as *errors.BindError and is never retried.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := l.Bind()
	if err != nil {
		return err
	}
	return l.Serve(ctx, ln)
}

// Bind opens the listening socket with a backlog of
// config.DefaultBacklog.
func (l *Listener) Bind() (net.Listener, error) {
	ln, err := listenTCP(l.Config.LocalHost, l.Config.LocalPort, config.DefaultBacklog)
	if err != nil {
		return nil, &rterr.BindError{Addr: l.Config.LocalAddr(), Err: err}
	}
	return ln, nil
}

// Serve accepts on ln until ctx is cancelled, then waits for the
// sessions it started.  ln is closed on return.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	l.Console.Println(fmt.Sprintf("[*] Listening on %s", l.displayAddr(ln.Addr())))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	// Sessions outlive ctx by GracePeriod.
	sessCtx, cancelSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSessions()

	var g errgroup.Group
	err := l.acceptLoop(ctx, sessCtx, ln, &g)

	done := make(chan struct{})
	go func() {
		g.Wait() //nolint:errcheck
		close(done)
	}()
	if l.Metrics.ActiveSessions() > 0 {
		l.Logger.Info("waiting up to %s for %d session(s)", l.GracePeriod, l.Metrics.ActiveSessions())
	}

	timer := time.NewTimer(l.GracePeriod)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		cancelSessions()
		<-done
	}
	return err
}

func (l *Listener) acceptLoop(ctx, sessCtx context.Context, ln net.Listener, g *errgroup.Group) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if rterr.IsClosed(err) {
				return fmt.Errorf("accept: %w", err)
			}
			backoff = nextBackoff(backoff)
			l.Logger.Warn("accept: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		l.Console.Println(fmt.Sprintf("> Received incoming connection from %s", util.PeerString(conn.RemoteAddr())))

		s := l.newSession(conn)
		g.Go(func() error {
			if err := s.Run(sessCtx); err != nil {
				l.Logger.Debug("session %d ended: %v", s.ID, err)
			}
			return nil
		})
	}
}

func (l *Listener) newSession(conn net.Conn) *session.Session {
	return &session.Session{
		ID:           l.nextID.Add(1),
		Client:       conn,
		RemoteAddr:   l.Config.RemoteAddr(),
		ReceiveFirst: l.Config.ReceiveFirst,
		IdleWait:     l.Config.IdleWait,
		HexWidth:     l.Config.HexWidth,
		NoHexdump:    l.Config.NoHexdump,
		Policy:       l.Policy,
		Hooks:        l.Hooks,
		Dialer:       l.Dialer,
		Console:      l.Console,
		Logger:       l.Logger,
		Metrics:      l.Metrics,
	}
}

// displayAddr is the configured host with the port actually bound, so
// port 0 shows the kernel's choice.
func (l *Listener) displayAddr(bound net.Addr) string {
	port := l.Config.LocalPort
	if tcp, ok := bound.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	return net.JoinHostPort(l.Config.LocalHost, strconv.Itoa(port))
}

// nextBackoff doubles the accept retry delay from 5ms up to 1s.
func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(d*2, time.Second)
}

// Close releases the dialer's long-lived resources, such as an SSH
// gateway connection.
func (l *Listener) Close() error {
	if l.Dialer == nil {
		return nil
	}
	return l.Dialer.Close()
}
