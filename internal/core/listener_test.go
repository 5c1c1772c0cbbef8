package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"relaytap/config"
	rterr "relaytap/internal/errors"
	"relaytap/internal/metrics"
	"relaytap/internal/testutil"
	"relaytap/internal/transport"
	"relaytap/util"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of
// several sessions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testListener(t *testing.T, remote net.Addr, out io.Writer) *Listener {
	t.Helper()
	tcp := remote.(*net.TCPAddr)
	return &Listener{
		Config: &config.Config{
			LocalHost:  "127.0.0.1",
			LocalPort:  0,
			RemoteHost: tcp.IP.String(),
			RemotePort: tcp.Port,
			IdleWait:   100 * time.Millisecond,
			HexWidth:   16,
		},
		Dialer:  &transport.TCPDialer{Timeout: time.Second},
		Console: util.NewConsole(out),
		Logger:  util.NewLogger(0),
		Metrics: metrics.New(),
	}
}

// serve binds l and runs Serve in the background.
func serve(t *testing.T, ctx context.Context, l *Listener) (net.Addr, <-chan error) {
	t.Helper()
	ln, err := l.Bind()
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(ctx, ln) }()
	return ln.Addr(), errc
}

func TestListener_RelaysConcurrentSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echo := testutil.StartEchoTCPServer(t, ctx)
	var out syncBuffer
	l := testListener(t, echo.Addr(), &out)
	addr, errc := serve(t, ctx, l)

	const clients = 3
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr.String())
			if err != nil {
				t.Error(err)
				return
			}
			defer conn.Close()

			msg := fmt.Sprintf("client %d", i)
			if _, err := conn.Write([]byte(msg)); err != nil {
				t.Error(err)
				return
			}
			buf := make([]byte, len(msg))
			if _, err := io.ReadFull(conn, buf); err != nil {
				t.Error(err)
				return
			}
			if string(buf) != msg {
				t.Errorf("client %d got %q", i, buf)
			}
		}()
	}
	wg.Wait()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	text := out.String()
	wantListen := fmt.Sprintf("[*] Listening on %s\n", addr)
	if !strings.HasPrefix(text, wantListen) {
		t.Errorf("console should start with %q, got:\n%s", wantListen, text)
	}
	if n := strings.Count(text, "> Received incoming connection from 127.0.0.1:"); n != clients {
		t.Errorf("%d connection notices, want %d", n, clients)
	}
	if got := l.Metrics.TotalSessions(); got != clients {
		t.Errorf("TotalSessions = %d, want %d", got, clients)
	}
}

func TestListener_BindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	l := testListener(t, busy.Addr(), io.Discard)
	l.Config.LocalPort = busy.Addr().(*net.TCPAddr).Port

	err = l.Run(context.Background())
	var bindErr *rterr.BindError
	if !rterr.As(err, &bindErr) {
		t.Fatalf("expected BindError, got %v", err)
	}
	if bindErr.Addr != busy.Addr().String() {
		t.Errorf("Addr = %q, want %q", bindErr.Addr, busy.Addr())
	}
}

func TestListener_GracePeriodClosesIdleSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	echo := testutil.StartEchoTCPServer(t, context.Background())
	l := testListener(t, echo.Addr(), io.Discard)
	l.Config.IdleWait = time.Minute
	l.GracePeriod = 100 * time.Millisecond
	addr, errc := serve(t, ctx, l)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for l.Metrics.ActiveSessions() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after grace period")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("client read = %v, want EOF", err)
	}
}

func TestListenTCP_EphemeralPort(t *testing.T) {
	ln, err := listenTCP("127.0.0.1", 0, config.DefaultBacklog)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	tcp, ok := ln.Addr().(*net.TCPAddr)
	if !ok || tcp.Port == 0 {
		t.Fatalf("unexpected listen address %v", ln.Addr())
	}

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.Close()
}

func TestNextBackoff(t *testing.T) {
	var d time.Duration
	for _, want := range []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond} {
		d = nextBackoff(d)
		if d != want {
			t.Fatalf("nextBackoff = %v, want %v", d, want)
		}
	}
	if got := nextBackoff(800 * time.Millisecond); got != time.Second {
		t.Errorf("nextBackoff cap = %v, want 1s", got)
	}
}
