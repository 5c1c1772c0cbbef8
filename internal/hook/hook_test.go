package hook

import (
	"bytes"
	"testing"
)

func TestHooks_ZeroValueIsIdentity(t *testing.T) {
	var h Hooks
	in := []byte{0x00, 'a', 0xff}
	for _, dir := range []Direction{Outbound, Inbound} {
		if got := h.Apply(dir, in); !bytes.Equal(got, in) {
			t.Errorf("%s: got %v, want %v", dir, got, in)
		}
	}
}

func TestHooks_ApplyPicksDirection(t *testing.T) {
	var outCalls, inCalls int
	h := Hooks{
		Outbound: func(b []byte) []byte { outCalls++; return append([]byte(">"), b...) },
		Inbound:  func(b []byte) []byte { inCalls++; return append([]byte("<"), b...) },
	}

	if got := string(h.Apply(Outbound, []byte("x"))); got != ">x" {
		t.Errorf("outbound = %q", got)
	}
	if got := string(h.Apply(Inbound, []byte("y"))); got != "<y" {
		t.Errorf("inbound = %q", got)
	}
	if outCalls != 1 || inCalls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", outCalls, inCalls)
	}
}

func TestUpper(t *testing.T) {
	tests := []struct {
		in, want []byte
	}{
		{[]byte("get /index.html"), []byte("GET /INDEX.HTML")},
		{[]byte("MiXeD 123"), []byte("MIXED 123")},
		{[]byte{0xc3, 0x9f, 'z'}, []byte{0xc3, 0x9f, 'Z'}}, // "ß" bytes untouched
		{nil, []byte{}},
	}
	for _, tt := range tests {
		if got := Upper(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("Upper(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChain(t *testing.T) {
	suffix := func(b []byte) []byte { return append(b, '!') }
	fn := Chain(Upper, nil, suffix)
	if got := string(fn([]byte("hi"))); got != "HI!" {
		t.Errorf("got %q, want %q", got, "HI!")
	}
}

func TestDirection_String(t *testing.T) {
	if Outbound.String() != "outbound" || Inbound.String() != "inbound" {
		t.Errorf("unexpected names %q %q", Outbound, Inbound)
	}
	if Outbound.Arrow() != "==>" || Inbound.Arrow() != "<==" {
		t.Errorf("unexpected arrows %q %q", Outbound.Arrow(), Inbound.Arrow())
	}
	if Direction(9).String() != "unknown" {
		t.Error("out-of-range direction should be unknown")
	}
}
