package protocol

// Buffer coalesces small Encode calls into one larger write to the layer
// below, flushed once the accumulated size reaches flushSize or Flush is
// called explicitly. Mirrors the teacher's writeChan-batching in msg.go,
// minus the goroutine: this stack runs inline with the caller, like every
// other layer here.
type Buffer struct {
	Base
	flushSize int
	pending   []byte
}

// NewBuffer returns a Buffer that flushes automatically once it holds at
// least flushSize bytes; a flushSize of 0 means only explicit Flush calls
// push data down.
func NewBuffer(flushSize int) *Buffer {
	return &Buffer{Base: NewBase(), flushSize: flushSize}
}

func (b *Buffer) Encode(p []byte) error {
	b.pending = append(b.pending, p...)
	if b.flushSize > 0 && len(b.pending) >= b.flushSize {
		return b.Flush()
	}
	return nil
}

func (b *Buffer) Decode(p []byte) error { return b.Up(p) }

func (b *Buffer) Flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return b.Down(out)
}

func (b *Buffer) Reset() { b.pending = nil }
