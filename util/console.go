package util

import (
	"io"
	"os"
	"strings"
	"sync"
)

// Console is the traffic stream: connection notices, burst headers and
// hex dumps.  Each call writes one block under a lock so output from
// concurrent sessions is never interleaved mid-block.
//
// A nil *Console discards everything.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole returns a Console writing to w, or to os.Stdout when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

// Println writes a single line.
func (c *Console) Println(line string) {
	c.Block(line)
}

// Block writes every line, newline-terminated, as one unit.
func (c *Console) Block(lines ...string) {
	if c == nil || len(lines) == 0 {
		return
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.out, sb.String()) //nolint:errcheck
}
