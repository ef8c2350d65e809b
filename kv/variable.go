package kv

import (
	"math"

	"github.com/demcon/stored/types"
)

// Variable is a typed window into a Store's byte buffer at a fixed
// offset. It is a small value handle: all mutation routes through Set so
// the hook pipeline always runs, matching spec.md §4.B.
//
// Variable is generic over the Go type backing its tag (int8, uint32,
// float64, bool, ...); the codec pair is supplied by one of the NewXxx
// constructors below rather than derived generically, the same way a
// real schema compiler would emit one concrete accessor method per
// object rather than a single generic template (spec.md §9).
type Variable[T any] struct {
	store  *Store
	key    Key
	tag    types.Tag
	decode func([]byte) T
	encode func(T, []byte)
}

// Key returns the variable's buffer offset.
func (v Variable[T]) Key() Key { return v.key }

// Tag returns the variable's type tag.
func (v Variable[T]) Tag() types.Tag { return v.tag }

// Get reads the current value, running EntryRO/ExitRO around the read.
func (v Variable[T]) Get() T {
	v.store.hooks.EntryRO(v.key)
	val := v.decode(v.store.buf[v.key:])
	v.store.hooks.ExitRO(v.key)
	return val
}

// Set writes value, running EntryX/ExitX(changed) around the write. The
// hook pipeline is what a SynchronizableStore uses to record the change
// in its journal, so Set (never a direct buffer write) is the only
// sanctioned way to mutate a Variable.
func (v Variable[T]) Set(value T) {
	v.store.hooks.EntryX(v.key)
	v.encode(value, v.store.buf[v.key:])
	v.store.hooks.ExitX(v.key, v.tag.Size(), true)
}

func newVariable[T any](s *Store, key Key, tag types.Tag, decode func([]byte) T, encode func(T, []byte)) (Variable[T], error) {
	size := tag.Size()
	if err := s.checkRange(uint64(key), size); err != nil {
		return Variable[T]{}, err
	}
	if err := s.checkAlignment(uint64(key), size); err != nil {
		return Variable[T]{}, err
	}
	return Variable[T]{store: s, key: key, tag: tag, decode: decode, encode: encode}, nil
}

// NewBool constructs a Variable over a 1-byte boolean at key.
func NewBool(s *Store, key Key) (Variable[bool], error) {
	return newVariable(s, key, types.Bool,
		func(b []byte) bool { return b[0] != 0 },
		func(v bool, b []byte) {
			if v {
				b[0] = 1
			} else {
				b[0] = 0
			}
		})
}

// NewInt8 constructs a Variable over a signed 8-bit integer at key.
func NewInt8(s *Store, key Key) (Variable[int8], error) {
	return newVariable(s, key, types.Int8,
		func(b []byte) int8 { return int8(b[0]) },
		func(v int8, b []byte) { b[0] = byte(v) })
}

// NewUInt8 constructs a Variable over an unsigned 8-bit integer at key.
func NewUInt8(s *Store, key Key) (Variable[uint8], error) {
	return newVariable(s, key, types.UInt8,
		func(b []byte) uint8 { return b[0] },
		func(v uint8, b []byte) { b[0] = v })
}

// NewInt16 constructs a Variable over a signed 16-bit integer at key.
func NewInt16(s *Store, key Key) (Variable[int16], error) {
	order := s.endian
	return newVariable(s, key, types.Int16,
		func(b []byte) int16 { return int16(order.Uint16(b)) },
		func(v int16, b []byte) { order.PutUint16(b, uint16(v)) })
}

// NewUInt16 constructs a Variable over an unsigned 16-bit integer at key.
func NewUInt16(s *Store, key Key) (Variable[uint16], error) {
	order := s.endian
	return newVariable(s, key, types.UInt16,
		func(b []byte) uint16 { return order.Uint16(b) },
		func(v uint16, b []byte) { order.PutUint16(b, v) })
}

// NewInt32 constructs a Variable over a signed 32-bit integer at key.
func NewInt32(s *Store, key Key) (Variable[int32], error) {
	order := s.endian
	return newVariable(s, key, types.Int32,
		func(b []byte) int32 { return int32(order.Uint32(b)) },
		func(v int32, b []byte) { order.PutUint32(b, uint32(v)) })
}

// NewUInt32 constructs a Variable over an unsigned 32-bit integer at key.
func NewUInt32(s *Store, key Key) (Variable[uint32], error) {
	order := s.endian
	return newVariable(s, key, types.UInt32,
		func(b []byte) uint32 { return order.Uint32(b) },
		func(v uint32, b []byte) { order.PutUint32(b, v) })
}

// NewInt64 constructs a Variable over a signed 64-bit integer at key.
func NewInt64(s *Store, key Key) (Variable[int64], error) {
	order := s.endian
	return newVariable(s, key, types.Int64,
		func(b []byte) int64 { return int64(order.Uint64(b)) },
		func(v int64, b []byte) { order.PutUint64(b, uint64(v)) })
}

// NewUInt64 constructs a Variable over an unsigned 64-bit integer at key.
func NewUInt64(s *Store, key Key) (Variable[uint64], error) {
	order := s.endian
	return newVariable(s, key, types.UInt64,
		func(b []byte) uint64 { return order.Uint64(b) },
		func(v uint64, b []byte) { order.PutUint64(b, v) })
}

// NewFloat32 constructs a Variable over a 32-bit float at key.
func NewFloat32(s *Store, key Key) (Variable[float32], error) {
	order := s.endian
	return newVariable(s, key, types.Float32,
		func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) },
		func(v float32, b []byte) { order.PutUint32(b, math.Float32bits(v)) })
}

// NewFloat64 constructs a Variable over a 64-bit float at key.
func NewFloat64(s *Store, key Key) (Variable[float64], error) {
	order := s.endian
	return newVariable(s, key, types.Float64,
		func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) },
		func(v float64, b []byte) { order.PutUint64(b, math.Float64bits(v)) })
}
