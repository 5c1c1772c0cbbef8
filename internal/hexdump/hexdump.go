// Package hexdump renders byte sequences as fixed-width hex/ASCII lines
// for human inspection of relayed traffic.
//
// A line looks like
//
//	0010 48 65 6C 6C 6F 0D 0A                                Hello..
//
// offset (at least four lowercase hex digits), the uppercase hex bytes
// padded to width*3 columns, then the printable rendering.
package hexdump

import (
	"fmt"
	"io"
	"iter"
	"strings"
)

// DefaultWidth is the number of bytes per line when width ≤ 0.
const DefaultWidth = 16

// printable maps every byte value to itself when it renders as exactly
// one visible glyph, and to '.' otherwise.  Backslash is excluded since
// its quoted form needs an escape.  Built once at init, never mutated.
var printable = func() (t [256]byte) {
	for i := range t {
		b := byte(i)
		if b >= 0x20 && b <= 0x7e && b != '\\' {
			t[i] = b
		} else {
			t[i] = '.'
		}
	}
	return t
}()

// Printable returns the display byte for b.
func Printable(b byte) byte { return printable[b] }

// Line is one rendered chunk of a dump.
type Line struct {
	Offset int    // index of the chunk's first byte in the whole input
	Hex    string // space-joined uppercase hex pairs
	ASCII  string // printable rendering
	width  int
}

// String formats the line with the hex column padded to width*3.
func (l Line) String() string {
	return fmt.Sprintf("%04x %-*s %s", l.Offset, l.width*3, l.Hex, l.ASCII)
}

// Lines yields one Line per width-byte chunk of data.  The sequence is
// lazy and may be ranged over any number of times.
func Lines(data []byte, width int) iter.Seq[Line] {
	if width <= 0 {
		width = DefaultWidth
	}
	return func(yield func(Line) bool) {
		for off := 0; off < len(data); off += width {
			end := min(off+width, len(data))
			if !yield(render(data[off:end], off, width)) {
				return
			}
		}
	}
}

func render(chunk []byte, off, width int) Line {
	var hex strings.Builder
	hex.Grow(len(chunk) * 3)
	ascii := make([]byte, len(chunk))
	for i, b := range chunk {
		if i > 0 {
			hex.WriteByte(' ')
		}
		fmt.Fprintf(&hex, "%02X", b)
		ascii[i] = printable[b]
	}
	return Line{Offset: off, Hex: hex.String(), ASCII: string(ascii), width: width}
}

// Dump returns every rendered line of data.
func Dump(data []byte, width int) []string {
	var out []string
	for l := range Lines(data, width) {
		out = append(out, l.String())
	}
	return out
}

// Fprint writes the dump of data to w, one line per chunk.
func Fprint(w io.Writer, data []byte, width int) error {
	for l := range Lines(data, width) {
		if _, err := io.WriteString(w, l.String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}
