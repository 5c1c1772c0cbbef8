// Package collector gathers one burst of traffic from a connection.
//
// The relay has no framing information, so silence is the only burst
// delimiter: the collector keeps reading until no fragment arrives
// within the idle window, the peer closes, or the read fails.
package collector

import (
	"io"
	"time"

	rterr "relaytap/internal/errors"
	"relaytap/util"
)

// DefaultWait is used when a non-positive idle window is requested.
const DefaultWait = 5 * time.Second

// Outcome says why collection stopped.
type Outcome int

const (
	// OutcomeIdle means the idle window elapsed; the burst is complete.
	OutcomeIdle Outcome = iota
	// OutcomePeerClosed means the peer closed its sending side.
	OutcomePeerClosed
	// OutcomeError means a hard I/O error ended collection.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomePeerClosed:
		return "peer-closed"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Burst is the data read in one collection window.
type Burst struct {
	Data    []byte
	Outcome Outcome
	Err     error // set only for OutcomeError
}

// Empty reports whether no bytes were collected.
func (b Burst) Empty() bool { return len(b.Data) == 0 }

// Conn is the subset of net.Conn the collector needs.
type Conn interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Collect reads everything currently arriving on conn.  Every read is
// bounded by wait, so the call returns at most wait after the last
// fragment.  It never returns an error value: failures are reported as
// [OutcomeError] with whatever was read before them.
func Collect(conn Conn, wait time.Duration) Burst {
	if wait <= 0 {
		wait = DefaultWait
	}

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	var data []byte
	for {
		if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return finish(conn, data, classify(err))
		}

		n, err := conn.Read(*buf)
		if n > 0 {
			data = append(data, (*buf)[:n]...)
		}
		switch {
		case err != nil:
			return finish(conn, data, classify(err))
		case n == 0:
			return finish(conn, data, Burst{Outcome: OutcomePeerClosed})
		}
	}
}

func classify(err error) Burst {
	switch {
	case rterr.IsTimeout(err):
		return Burst{Outcome: OutcomeIdle}
	case rterr.IsClosed(err):
		return Burst{Outcome: OutcomePeerClosed}
	default:
		return Burst{Outcome: OutcomeError, Err: err}
	}
}

func finish(conn Conn, data []byte, b Burst) Burst {
	// Clear the deadline so later writers are not affected by it.
	conn.SetReadDeadline(time.Time{}) //nolint:errcheck
	b.Data = data
	return b
}
