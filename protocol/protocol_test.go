package protocol

import (
	"bytes"
	"testing"
	"time"
)

func TestSegmentationRoundTrip(t *testing.T) {
	loop := NewLoopback()
	seg := NewSegmentation(8)
	top := Chain(loop, seg)

	var got [][]byte
	top.Wrap(NewCallback(func(p []byte) { got = append(got, append([]byte{}, p...)) }))

	if err := top.Encode([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if _, err := loop.Poll(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || string(got[0]) != "hello world" {
		t.Fatalf("got %v", got)
	}
}

func TestSegmentationUsesContinueAndEndMarkers(t *testing.T) {
	var wire []byte
	seg := NewSegmentation(4)
	seg.Stack(newSink(func(p []byte) { wire = append(wire, p...) }))

	if err := seg.Encode([]byte("abcdefgh")); err != nil {
		t.Fatal(err)
	}
	want := []byte("abc" + "C" + "def" + "C" + "gh" + "E")
	if !bytes.Equal(wire, want) {
		t.Fatalf("got %q, want %q", wire, want)
	}
}

func TestCrc8DropsCorruptFrame(t *testing.T) {
	c := NewCrc8()
	var sunk [][]byte
	c.Wrap(NewCallback(func(p []byte) { sunk = append(sunk, p) }))

	frame := []byte("abc")
	frame = append(frame, crc8(frame))
	frame[len(frame)-1] ^= 0xff // corrupt the checksum
	if err := c.Decode(frame); err != nil {
		t.Fatal(err)
	}
	if len(sunk) != 0 {
		t.Fatalf("expected corrupt frame to be dropped, got %v", sunk)
	}
}

func TestAsciiEscapeRoundTrip(t *testing.T) {
	a := NewAsciiEscape()
	var encoded bytes.Buffer
	a.Stack(newSink(func(p []byte) { encoded.Write(p) }))

	payload := []byte{0x01, 0x00, escByte, '\r', 0xff}
	if err := a.Encode(payload); err != nil {
		t.Fatal(err)
	}

	var decoded [][]byte
	a2 := NewAsciiEscape()
	a2.Wrap(NewCallback(func(p []byte) { decoded = append(decoded, append([]byte{}, p...)) }))
	if err := a2.Decode(encoded.Bytes()); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d decoded frames, want 1", len(decoded))
	}
	// The encoder never emits a bare '\r', so the decoder's drop rule
	// never triggers on our own traffic; the round trip is exact.
	if !bytes.Equal(decoded[0], payload) {
		t.Fatalf("got %v, want %v", decoded[0], payload)
	}
}

func TestTerminalBracketsPayload(t *testing.T) {
	term := NewTerminal()
	var wire bytes.Buffer
	term.Stack(newSink(func(p []byte) { wire.Write(p) }))
	if err := term.Encode([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	want := []byte{escByte, apcIntroducer, 'h', 'i', escByte, stIntroducer}
	if !bytes.Equal(wire.Bytes(), want) {
		t.Fatalf("got %v, want %v", wire.Bytes(), want)
	}

	var decoded [][]byte
	var nonDebug []byte
	term2 := NewTerminal()
	term2.NonDebug = func(p []byte) { nonDebug = append(nonDebug, p...) }
	term2.Wrap(NewCallback(func(p []byte) { decoded = append(decoded, append([]byte{}, p...)) }))
	mixed := append([]byte("log line\n"), want...)
	if err := term2.Decode(mixed); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || string(decoded[0]) != "hi" {
		t.Fatalf("got %v", decoded)
	}
	if string(nonDebug) != "log line\n" {
		t.Fatalf("got nonDebug %q", nonDebug)
	}
}

func TestArqRetransmitsUntilAcked(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	a := NewArq()
	a.timer = clk

	var sent [][]byte
	a.Stack(newSink(func(p []byte) { sent = append(sent, append([]byte{}, p...)) }))

	if err := a.Encode([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sent))
	}
	firstSeq := sent[0][0]

	clk.now = clk.now.Add(time.Second)
	if n, err := a.Poll(); err != nil || n != 1 {
		t.Fatalf("expected 1 retransmit, got %d, %v", n, err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 sends after retransmit, got %d", len(sent))
	}

	if err := a.Decode([]byte{firstSeq | arqAckFlag}); err != nil {
		t.Fatal(err)
	}
	clk.now = clk.now.Add(10 * time.Second)
	if n, _ := a.Poll(); n != 0 {
		t.Fatalf("expected no retransmits after ack, got %d", n)
	}
}

func TestArqDeliversDataAndAcks(t *testing.T) {
	a := NewArq()
	a.timer = &fakeClock{now: time.Unix(0, 0)}

	var acked [][]byte
	a.Stack(newSink(func(p []byte) { acked = append(acked, append([]byte{}, p...)) }))

	var delivered [][]byte
	a.Wrap(NewCallback(func(p []byte) { delivered = append(delivered, append([]byte{}, p...)) }))

	frame := append([]byte{5}, []byte("payload")...)
	if err := a.Decode(frame); err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 1 || string(delivered[0]) != "payload" {
		t.Fatalf("got %v", delivered)
	}
	if len(acked) != 1 || acked[0][0] != (5|arqAckFlag) {
		t.Fatalf("got ack %v", acked)
	}

	// A duplicate of the same seq re-acks without redelivering.
	if err := a.Decode(frame); err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected no redelivery of a duplicate, got %d", len(delivered))
	}
	if len(acked) != 2 {
		t.Fatalf("expected the duplicate to still be acked, got %d acks", len(acked))
	}
}

func TestDebugArqBuffersPreciousResponse(t *testing.T) {
	d := NewDebugArq()
	var sent [][]byte
	d.Stack(newSink(func(p []byte) { sent = append(sent, append([]byte{}, p...)) }))

	var delivered [][]byte
	d.Wrap(NewCallback(func(p []byte) { delivered = append(delivered, append([]byte{}, p...)) }))

	req := encodeDebugSeq(3, false)
	if err := d.Decode(req); err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected request delivered upward once, got %d", len(delivered))
	}

	d.NextPrecious = true
	if err := d.Encode([]byte("answer")); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 response sent, got %d", len(sent))
	}

	// A retransmitted duplicate of the same request re-emits the buffered
	// response without redelivering it to the debugger.
	if err := d.Decode(req); err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected no redelivery of a duplicate request, got %d", len(delivered))
	}
	if len(sent) != 2 {
		t.Fatalf("expected the buffered response to be re-sent, got %d sends", len(sent))
	}
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

// sink is a minimal bottom-of-stack Layer used by tests in place of a
// real transport: Encode hands the bytes to fn, Decode is unused.
type sink struct {
	Base
	fn func([]byte)
}

func newSink(fn func([]byte)) *sink { return &sink{Base: NewBase(), fn: fn} }

func (s *sink) Encode(p []byte) error {
	if s.fn != nil {
		s.fn(p)
	}
	return nil
}
func (s *sink) Decode(p []byte) error { return s.Up(p) }
