package collector

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

const testWait = 150 * time.Millisecond

// pair returns both ends of a loopback TCP connection.
func pair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server = <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// TestCollect_IdleSplitsBursts verifies a pause longer than the idle
// window yields two bursts rather than one.
func TestCollect_IdleSplitsBursts(t *testing.T) {
	client, server := pair(t)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		client.Write(bytes.Repeat([]byte{'a'}, 10)) //nolint:errcheck
		time.Sleep(4 * testWait)
		client.Write(bytes.Repeat([]byte{'b'}, 5)) //nolint:errcheck
	}()

	first := Collect(server, testWait)
	<-sent
	second := Collect(server, testWait)

	if len(first.Data) != 10 || first.Outcome != OutcomeIdle {
		t.Errorf("first burst = %d bytes (%s), want 10 (idle)", len(first.Data), first.Outcome)
	}
	if len(second.Data) != 5 || second.Outcome != OutcomeIdle {
		t.Errorf("second burst = %d bytes (%s), want 5 (idle)", len(second.Data), second.Outcome)
	}
}

// TestCollect_PeerClosed verifies data before a close is kept and the
// call returns without waiting for the idle window.
func TestCollect_PeerClosed(t *testing.T) {
	client, server := pair(t)

	client.Write([]byte("bye")) //nolint:errcheck
	client.Close()

	start := time.Now()
	b := Collect(server, 5*time.Second)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Collect took %v after peer close", elapsed)
	}
	if string(b.Data) != "bye" {
		t.Errorf("data = %q, want %q", b.Data, "bye")
	}
	if b.Outcome != OutcomePeerClosed {
		t.Errorf("outcome = %s, want peer-closed", b.Outcome)
	}
}

// TestCollect_SilenceIsEmptyIdle verifies no data is not an error.
func TestCollect_SilenceIsEmptyIdle(t *testing.T) {
	_, server := pair(t)

	start := time.Now()
	b := Collect(server, testWait)

	if !b.Empty() {
		t.Errorf("expected empty burst, got %q", b.Data)
	}
	if b.Outcome != OutcomeIdle || b.Err != nil {
		t.Errorf("outcome = %s err = %v, want idle/nil", b.Outcome, b.Err)
	}
	if elapsed := time.Since(start); elapsed < testWait {
		t.Errorf("returned after %v, before the idle window", elapsed)
	}
}

// TestCollect_LargeBurst verifies a burst larger than one read buffer
// is accumulated in full.
func TestCollect_LargeBurst(t *testing.T) {
	client, server := pair(t)

	payload := make([]byte, 200*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	go client.Write(payload) //nolint:errcheck

	b := Collect(server, testWait)
	if !bytes.Equal(b.Data, payload) {
		t.Errorf("collected %d bytes, want %d identical bytes", len(b.Data), len(payload))
	}
}

// fakeConn replays scripted reads.
type fakeConn struct {
	reads     []fakeRead
	deadlines []time.Time
}

type fakeRead struct {
	data []byte
	err  error
}

func (f *fakeConn) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		return 0, nil
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	return copy(p, r.data), r.err
}

func (f *fakeConn) SetReadDeadline(t time.Time) error {
	f.deadlines = append(f.deadlines, t)
	return nil
}

func TestCollect_HardErrorKeepsPartialData(t *testing.T) {
	reset := errors.New("connection reset by peer")
	conn := &fakeConn{reads: []fakeRead{
		{data: []byte("part")},
		{data: []byte("ial"), err: reset},
	}}

	b := Collect(conn, testWait)
	if string(b.Data) != "partial" {
		t.Errorf("data = %q, want %q", b.Data, "partial")
	}
	if b.Outcome != OutcomeError || !errors.Is(b.Err, reset) {
		t.Errorf("outcome = %s err = %v", b.Outcome, b.Err)
	}
}

func TestCollect_ZeroReadIsPeerClosed(t *testing.T) {
	conn := &fakeConn{reads: []fakeRead{{data: []byte("x")}}}
	b := Collect(conn, testWait)
	if b.Outcome != OutcomePeerClosed || string(b.Data) != "x" {
		t.Errorf("got %q (%s)", b.Data, b.Outcome)
	}
}

func TestCollect_ClearsDeadline(t *testing.T) {
	conn := &fakeConn{reads: []fakeRead{{data: []byte("x")}}}
	Collect(conn, testWait)

	if len(conn.deadlines) < 2 {
		t.Fatalf("expected at least 2 deadline calls, got %d", len(conn.deadlines))
	}
	if last := conn.deadlines[len(conn.deadlines)-1]; !last.IsZero() {
		t.Errorf("final deadline = %v, want zero", last)
	}
	if first := conn.deadlines[0]; first.IsZero() {
		t.Error("reads must be bounded by a deadline")
	}
}

func TestOutcome_String(t *testing.T) {
	for o, want := range map[Outcome]string{
		OutcomeIdle:       "idle",
		OutcomePeerClosed: "peer-closed",
		OutcomeError:      "error",
		Outcome(42):       "unknown",
	} {
		if o.String() != want {
			t.Errorf("Outcome(%d) = %q, want %q", o, o.String(), want)
		}
	}
}

func BenchmarkCollect(b *testing.B) {
	payload := bytes.Repeat([]byte("x"), 16*1024)
	for i := 0; i < b.N; i++ {
		conn := &fakeConn{reads: []fakeRead{{data: payload}, {data: payload}}}
		Collect(conn, testWait)
	}
}
