package debugger

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/flate"
)

// Stream is an append-only, bounded byte buffer with read-once
// semantics: the `s` debugger command drains it on read, and `f` forces
// a compressor (if any) to emit its tail.
type Stream struct {
	name       string
	maxLen     int
	overflow   int // soft-cap overflow margin, so a whole sample can still land atomically
	blocked    bool
	buf        bytes.Buffer
	compressed bool
	enc        *flate.Writer
	encBuf     *bytes.Buffer
}

// NewStream returns a Stream bounded to maxLen bytes plus overflow
// headroom, optionally wrapping writes in a flate compressor.
func NewStream(name string, maxLen, overflow int, compress bool) (*Stream, error) {
	s := &Stream{name: name, maxLen: maxLen, overflow: overflow}
	if compress {
		s.encBuf = &bytes.Buffer{}
		enc, err := flate.NewWriter(s.encBuf, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("debugger: new stream compressor: %w", err)
		}
		s.enc = enc
		s.compressed = true
	}
	return s, nil
}

func (s *Stream) Name() string { return s.name }

// Encode appends data to the stream, silently dropping it if the stream
// is blocked or already over its soft cap (leaving overflow headroom so
// a sample in progress can still complete atomically).
func (s *Stream) Encode(data []byte) {
	if s.blocked {
		return
	}
	if s.buf.Len() >= s.maxLen+s.overflow {
		return
	}
	if s.compressed {
		s.enc.Write(data)
		return
	}
	s.buf.Write(data)
}

// Empty reports whether the stream currently holds no drainable bytes
// and, for a compressed stream, no compressor output awaiting a Flush.
func (s *Stream) Empty() bool {
	if s.compressed {
		return s.buf.Len() == 0 && s.encBuf.Len() == 0
	}
	return s.buf.Len() == 0
}

// Flush forces the compressor (if any) to emit whatever it's holding.
func (s *Stream) Flush() error {
	if !s.compressed {
		return nil
	}
	if err := s.enc.Flush(); err != nil {
		return err
	}
	s.buf.Write(s.encBuf.Bytes())
	s.encBuf.Reset()
	return nil
}

// Drain returns and clears the stream's buffered bytes (read-once: bytes
// already emitted on the wire are never available for a second read).
func (s *Stream) Drain() []byte {
	out := append([]byte{}, s.buf.Bytes()...)
	s.buf.Reset()
	return out
}

// Drop discards the first n buffered bytes without returning them,
// matching the teacher's pattern of freeing wire-acknowledged data
// without a second read.
func (s *Stream) Drop(n int) {
	b := s.buf.Bytes()
	if n >= len(b) {
		s.buf.Reset()
		return
	}
	rest := append([]byte{}, b[n:]...)
	s.buf.Reset()
	s.buf.Write(rest)
}

func (s *Stream) Block()        { s.blocked = true }
func (s *Stream) Unblock()      { s.blocked = false }
func (s *Stream) Blocked() bool { return s.blocked }

// Swap exchanges buffered contents (and compressor state) with other,
// used when recycling an empty stream slot for a newly named stream.
func (s *Stream) Swap(other *Stream) {
	s.buf, other.buf = other.buf, s.buf
	s.name, other.name = other.name, s.name
	s.compressed, other.compressed = other.compressed, s.compressed
	s.enc, other.enc = other.enc, s.enc
	s.encBuf, other.encBuf = other.encBuf, s.encBuf
}
