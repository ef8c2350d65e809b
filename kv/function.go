package kv

import (
	"fmt"
	"math"

	"github.com/demcon/stored/types"
)

// Function is a numeric identifier dispatched to user code through the
// Store's FunctionCallback, matching spec.md §3's "(set?, buffer, len,
// id) -> bytes_transferred" contract. Functions carry a type tag just
// like Variables; callers treat them as values read or written on
// demand rather than backed by a fixed buffer offset.
type Function[T any] struct {
	store  *Store
	id     uint64
	tag    types.Tag
	decode func([]byte) T
	encode func(T, []byte)
}

// ID returns the function's dispatch identifier.
func (f Function[T]) ID() uint64 { return f.id }

// Tag returns the function's type tag (with FlagFunction set).
func (f Function[T]) Tag() types.Tag { return f.tag }

// Get invokes the store's FunctionCallback to read the function's
// current value.
func (f Function[T]) Get() (T, error) {
	var zero T
	if f.store.function == nil {
		f.store.logger.Printf("function %d read with no FunctionCallback configured", f.id)
		return zero, fmt.Errorf("kv: function %d: %w", f.id, ErrNoFunctionCallback)
	}
	buf := make([]byte, f.tag.Size())
	n, err := f.store.function(false, buf, f.id)
	if err != nil {
		return zero, err
	}
	if n < len(buf) {
		return zero, fmt.Errorf("kv: function %d: %w", f.id, ErrShortFunctionTransfer)
	}
	return f.decode(buf), nil
}

// Set invokes the store's FunctionCallback to write value.
func (f Function[T]) Set(value T) error {
	if f.store.function == nil {
		f.store.logger.Printf("function %d write with no FunctionCallback configured", f.id)
		return fmt.Errorf("kv: function %d: %w", f.id, ErrNoFunctionCallback)
	}
	buf := make([]byte, f.tag.Size())
	f.encode(value, buf)
	n, err := f.store.function(true, buf, f.id)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return fmt.Errorf("kv: function %d: %w", f.id, ErrShortFunctionTransfer)
	}
	return nil
}

func newFunction[T any](s *Store, id uint64, tag types.Tag, decode func([]byte) T, encode func(T, []byte)) Function[T] {
	return Function[T]{store: s, id: id, tag: tag.AsFunction(), decode: decode, encode: encode}
}

// NewUInt32Function constructs a Function over an unsigned 32-bit value
// dispatched through id.
func NewUInt32Function(s *Store, id uint64) Function[uint32] {
	order := s.endian
	return newFunction(s, id, types.UInt32,
		func(b []byte) uint32 { return order.Uint32(b) },
		func(v uint32, b []byte) { order.PutUint32(b, v) })
}

// NewInt32Function constructs a Function over a signed 32-bit value
// dispatched through id.
func NewInt32Function(s *Store, id uint64) Function[int32] {
	order := s.endian
	return newFunction(s, id, types.Int32,
		func(b []byte) int32 { return int32(order.Uint32(b)) },
		func(v int32, b []byte) { order.PutUint32(b, uint32(v)) })
}

// NewFloat64Function constructs a Function over a 64-bit float
// dispatched through id.
func NewFloat64Function(s *Store, id uint64) Function[float64] {
	order := s.endian
	return newFunction(s, id, types.Float64,
		func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) },
		func(v float64, b []byte) { order.PutUint64(b, math.Float64bits(v)) })
}
