package kv

import (
	"errors"

	"github.com/demcon/stored/types"
)

// ErrTooLarge is returned by BlobVariable.Set/StringVariable.Set when the
// value does not fit in the object's declared capacity.
var ErrTooLarge = errors.New("kv: value exceeds object capacity")

// blobLengthPrefix is the number of bytes reserved, in the store's byte
// order, to record the variable-length object's current length. This is
// a Go-specific layout decision (the schema compiler's blob/string
// encoding is otherwise unspecified by spec.md).
const blobLengthPrefix = 4

// BlobVariable is a variable-length byte object stored as a fixed-size
// capacity region: a blobLengthPrefix-byte length field (store
// endianness) followed by up to (declared length - blobLengthPrefix)
// bytes of payload. Per spec.md §9's note on variable-length hooks, a
// write always replaces the whole object; the journal always carries the
// object's current length, which may be less than its declared capacity.
type BlobVariable struct {
	store *Store
	key   Key
	cap   int
}

// NewBlob constructs a BlobVariable of the given total declared length
// (capacity including the length prefix) at key.
func NewBlob(s *Store, key Key, length int) (BlobVariable, error) {
	if err := s.checkRange(uint64(key), length); err != nil {
		return BlobVariable{}, err
	}
	if length < blobLengthPrefix {
		return BlobVariable{}, ErrOutOfRange
	}
	return BlobVariable{store: s, key: key, cap: length - blobLengthPrefix}, nil
}

// Get returns a copy of the currently stored bytes.
func (v BlobVariable) Get() []byte {
	v.store.hooks.EntryRO(v.key)
	buf := v.store.buf[v.key:]
	n := int(v.store.endian.Uint32(buf))
	if n > v.cap {
		n = v.cap
	}
	out := make([]byte, n)
	copy(out, buf[blobLengthPrefix:blobLengthPrefix+n])
	v.store.hooks.ExitRO(v.key)
	return out
}

// Set replaces the stored value. Returns ErrTooLarge if value is larger
// than the object's capacity.
func (v BlobVariable) Set(value []byte) error {
	if len(value) > v.cap {
		return ErrTooLarge
	}
	v.store.hooks.EntryX(v.key)
	buf := v.store.buf[v.key:]
	v.store.endian.PutUint32(buf, uint32(len(value)))
	copy(buf[blobLengthPrefix:], value)
	v.store.hooks.ExitX(v.key, blobLengthPrefix+len(value), true)
	return nil
}

// Tag returns types.Blob.
func (BlobVariable) Tag() types.Tag { return types.Blob }

// Key returns the variable's buffer offset.
func (v BlobVariable) Key() Key { return v.key }

// StringVariable is a BlobVariable that exposes its content as a string.
type StringVariable struct{ BlobVariable }

// NewString constructs a StringVariable of the given total declared
// length at key.
func NewString(s *Store, key Key, length int) (StringVariable, error) {
	b, err := NewBlob(s, key, length)
	return StringVariable{b}, err
}

// GetString returns the currently stored string.
func (v StringVariable) GetString() string { return string(v.Get()) }

// SetString replaces the stored string.
func (v StringVariable) SetString(value string) error { return v.Set([]byte(value)) }

// Tag returns types.String.
func (StringVariable) Tag() types.Tag { return types.String }
