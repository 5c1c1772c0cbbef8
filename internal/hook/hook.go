// Package hook holds the relay's extension surface: one transform per
// direction, applied to every non-empty burst before it is forwarded.
//
// Anything a user wants to do to the traffic (rewriting, injection,
// dropping) is done by swapping these functions.  The session never
// looks at what a transform did beyond the returned bytes.
package hook

// Direction names which way a burst is travelling.
type Direction int

const (
	// Outbound is client → remote.
	Outbound Direction = iota
	// Inbound is remote → client.
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return "unknown"
	}
}

// Arrow is the console marker for the direction.
func (d Direction) Arrow() string {
	if d == Inbound {
		return "<=="
	}
	return "==>"
}

// Transform rewrites one burst.  It may return the same slice, a new
// one, or an empty one to drop the burst.
type Transform func(buf []byte) []byte

// Identity returns buf unchanged.
func Identity(buf []byte) []byte { return buf }

// Hooks pairs the two directional transforms.  A nil field behaves as
// [Identity], so the zero value is a transparent relay.
type Hooks struct {
	Outbound Transform // request path, client → remote
	Inbound  Transform // response path, remote → client
}

// Apply runs the transform for dir exactly once.
func (h Hooks) Apply(dir Direction, buf []byte) []byte {
	var fn Transform
	switch dir {
	case Outbound:
		fn = h.Outbound
	case Inbound:
		fn = h.Inbound
	}
	if fn == nil {
		return buf
	}
	return fn(buf)
}

// Chain composes transforms left to right.  Nil entries are skipped.
func Chain(fns ...Transform) Transform {
	return func(buf []byte) []byte {
		for _, fn := range fns {
			if fn != nil {
				buf = fn(buf)
			}
		}
		return buf
	}
}

// Upper upper-cases ASCII letters and leaves every other byte alone,
// including bytes that would form UTF-8 sequences.
func Upper(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i, c := range buf {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
