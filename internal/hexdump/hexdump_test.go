package hexdump

import (
	"bytes"
	"strings"
	"testing"
)

func TestDump_FirstSixteenBytes(t *testing.T) {
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}

	got := Dump(data, 16)
	want := "0000 00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F  ................"
	if len(got) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(got), got)
	}
	if got[0] != want {
		t.Errorf("got  %q\nwant %q", got[0], want)
	}
}

func TestDump_PartialLinePadsHexColumn(t *testing.T) {
	got := Dump([]byte("Hello, world!\r\nBye"), 16)
	want := []string{
		"0000 48 65 6C 6C 6F 2C 20 77 6F 72 6C 64 21 0D 0A 42  Hello, world!..B",
		"0010 79 65" + strings.Repeat(" ", 48-5) + " ye",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d:\n got %q\nwant %q", i, got[i], want[i])
		}
	}
}

func TestDump_Width(t *testing.T) {
	got := Dump([]byte("abcdefghij"), 4)
	want := []string{
		"0000 61 62 63 64  abcd",
		"0004 65 66 67 68  efgh",
		"0008 69 6A        ij",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestDump_OffsetGrowsPastFourDigits(t *testing.T) {
	data := bytes.Repeat([]byte{'A'}, 0x10010)
	lines := Dump(data, 16)
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "10000 ") {
		t.Errorf("last line %q should start with a 5-digit offset", last)
	}
}

func TestDump_Empty(t *testing.T) {
	if got := Dump(nil, 16); len(got) != 0 {
		t.Errorf("expected no lines, got %q", got)
	}
}

func TestDump_NonPositiveWidthFallsBack(t *testing.T) {
	a := Dump([]byte("0123456789abcdefX"), 0)
	b := Dump([]byte("0123456789abcdefX"), DefaultWidth)
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Errorf("width 0 should match default width")
	}
}

func TestPrintableTable(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		got := Printable(b)
		var want byte = '.'
		if b >= 0x20 && b <= 0x7e && b != '\\' {
			want = b
		}
		if got != want {
			t.Errorf("Printable(0x%02X) = %q, want %q", b, got, want)
		}
	}
	// Spot checks on the boundaries.
	for b, want := range map[byte]byte{0x1f: '.', ' ': ' ', '~': '~', 0x7f: '.', 0x80: '.', 0xff: '.', '\'': '\'', '"': '"', '\\': '.'} {
		if got := Printable(b); got != want {
			t.Errorf("Printable(0x%02X) = %q, want %q", b, got, want)
		}
	}
}

func TestDump_AllByteValuesAreRaw(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	lines := Dump(data, 16)
	if len(lines) != 16 {
		t.Fatalf("expected 16 lines, got %d", len(lines))
	}
	// 0xF0..0xFF must render as hex, not as decoded runes.
	want := "00f0 F0 F1 F2 F3 F4 F5 F6 F7 F8 F9 FA FB FC FD FE FF  ................"
	if lines[15] != want {
		t.Errorf("got  %q\nwant %q", lines[15], want)
	}
}

func TestLines_Restartable(t *testing.T) {
	seq := Lines([]byte("abcdefgh"), 4)
	count := func() (n int) {
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 2 || b != 2 {
		t.Errorf("ranges yielded %d and %d lines, want 2 and 2", a, b)
	}
}

func TestLines_EarlyBreak(t *testing.T) {
	var offsets []int
	for l := range Lines(bytes.Repeat([]byte{'x'}, 64), 16) {
		offsets = append(offsets, l.Offset)
		if len(offsets) == 2 {
			break
		}
	}
	if len(offsets) != 2 || offsets[1] != 16 {
		t.Errorf("offsets = %v", offsets)
	}
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	if err := Fprint(&buf, []byte("hi"), 16); err != nil {
		t.Fatal(err)
	}
	want := "0000 68 69" + strings.Repeat(" ", 48-5) + " hi\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func BenchmarkDump(b *testing.B) {
	data := bytes.Repeat([]byte("GET / HTTP/1.1\r\n"), 256)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Dump(data, 16)
	}
}
