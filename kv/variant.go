package kv

import (
	"fmt"

	"github.com/demcon/stored/types"
)

// Variant is a type-erased reference to a Variable or Function: enough
// type/offset/length metadata to access either kind uniformly. It is the
// sole polymorphic handle exposed to non-generated code (spec.md §3), and
// is what Store.Find/Store.List and the debugger's path resolver hand
// back.
type Variant struct {
	store  *Store
	tag    types.Tag
	offset uint64 // buffer offset for a Variable, function id for a Function
	length uint64
}

// Tag returns the object's type tag.
func (v Variant) Tag() types.Tag { return v.tag }

// Length returns the object's declared byte length (fixed size, or
// capacity including the length prefix for blob/string).
func (v Variant) Length() uint64 { return v.length }

// IsFunction reports whether this Variant names a Function.
func (v Variant) IsFunction() bool { return v.tag.Function() }

// Key returns the Variable's buffer offset. Valid only when !IsFunction().
func (v Variant) Key() Key { return Key(v.offset) }

// FunctionID returns the Function's dispatch id. Valid only when IsFunction().
func (v Variant) FunctionID() uint64 { return v.offset }

// Invalid reports whether this Variant is the zero value (no object),
// e.g. returned by a failed Find that callers chose not to propagate as
// an error.
func (v Variant) Invalid() bool { return v.tag == types.Invalid }

// Get reads the object's current raw bytes in the store's endianness.
// For a fixed-size Variable this is exactly Tag().Size() bytes; for
// blob/string it is the live payload (without the length prefix); for a
// Function it invokes the FunctionCallback.
func (v Variant) Get() ([]byte, error) {
	if v.tag.Function() {
		buf := make([]byte, v.baseTag().Size())
		if v.store.function == nil {
			return nil, fmt.Errorf("kv: function %d: %w", v.offset, ErrNoFunctionCallback)
		}
		n, err := v.store.function(false, buf, v.offset)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
	if v.tag.Fixed() {
		size := v.tag.Size()
		if err := v.store.checkRange(v.offset, size); err != nil {
			return nil, err
		}
		v.store.hooks.EntryRO(Key(v.offset))
		out := append([]byte(nil), v.store.buf[v.offset:v.offset+uint64(size)]...)
		v.store.hooks.ExitRO(Key(v.offset))
		return out, nil
	}
	b, err := NewBlob(v.store, Key(v.offset), int(v.length))
	if err != nil {
		return nil, err
	}
	return b.Get(), nil
}

// Set writes raw bytes in the store's endianness. For a fixed-size
// Variable, data must be exactly Tag().Size() bytes. For blob/string,
// data becomes the new payload (must fit within capacity). For a
// Function it invokes the FunctionCallback.
func (v Variant) Set(data []byte) error {
	if v.tag.Function() {
		if v.store.function == nil {
			return fmt.Errorf("kv: function %d: %w", v.offset, ErrNoFunctionCallback)
		}
		buf := make([]byte, v.baseTag().Size())
		copy(buf, data)
		_, err := v.store.function(true, buf, v.offset)
		return err
	}
	if v.tag.Fixed() {
		size := v.tag.Size()
		if len(data) != size {
			return fmt.Errorf("%w: got %d bytes, want %d", ErrOutOfRange, len(data), size)
		}
		if err := v.store.checkRange(v.offset, size); err != nil {
			return err
		}
		v.store.hooks.EntryX(Key(v.offset))
		copy(v.store.buf[v.offset:], data)
		v.store.hooks.ExitX(Key(v.offset), size, true)
		return nil
	}
	b, err := NewBlob(v.store, Key(v.offset), int(v.length))
	if err != nil {
		return err
	}
	return b.Set(data)
}

func (v Variant) baseTag() types.Tag {
	return v.tag &^ types.FlagFunction
}
