package types

import (
	"encoding/binary"
	"errors"
)

// ErrAmbiguous is returned by Find when a partial name has more than one
// possible completion.
var ErrAmbiguous = errors.New("types: ambiguous name")

// ErrNotFound is returned by Find when no object matches the given name.
var ErrNotFound = errors.New("types: name not found")

// ErrMalformed is returned when a directory blob cannot be decoded; it
// signals a schema/generator bug, never a runtime condition, so callers
// are expected to treat it the same as ErrNotFound rather than retry.
var ErrMalformed = errors.New("types: malformed directory")

const (
	nodeBranch byte = 0
	nodeLeaf   byte = 1

	leafVariable byte = 0
	leafFunction byte = 1
)

// Entry describes a directory leaf: either a Variable (Offset is the byte
// offset into the store buffer) or a Function (Offset holds the function
// id), plus the byte Length of the object's fixed or maximum encoding.
type Entry struct {
	Tag    Tag
	Offset uint64
	Length uint64
}

// IsFunction reports whether the entry names a Function rather than a Variable.
func (e Entry) IsFunction() bool { return e.Tag.Function() }

// Directory is a decoded view over a directory blob: a compact trie
// mapping names to Entry values. The same decoder handles both the short
// (lookup, abbreviated) and long (enumeration, full names) forms described
// in spec.md §4.A; the two forms differ only in whether every leaf's
// full path is reconstructible, which only matters to List.
type Directory struct {
	blob []byte
	root int
}

// NewDirectory wraps a directory blob for decoding, with the trie root at
// offset 0 (the layout the schema compiler emits). The blob is assumed
// well-formed; malformed input surfaces as ErrMalformed or ErrNotFound
// from individual calls rather than here, since the compiler that
// produces the blob is outside this package's scope.
func NewDirectory(blob []byte) Directory { return Directory{blob: blob} }

// NewDirectoryAt wraps a directory blob whose trie root is at offset
// root rather than 0. Builder.Build always places the root at 0, so its
// output opens with NewDirectory as well; this package's tests pass the
// root that Build returns through NewDirectoryAt.
func NewDirectoryAt(blob []byte, root int) Directory { return Directory{blob: blob, root: root} }

// Blob returns the raw directory bytes, for callers that need to hash or
// re-transmit the directory itself (e.g. Store's schema hash).
func (d Directory) Blob() []byte { return d.blob }

// Find resolves name (or its shortest unambiguous prefix) to an Entry.
// maxNameLen bounds how much of name the walk will consider; the walk
// fails with ErrAmbiguous if, once name is exhausted, more than one leaf
// remains reachable from the current node.
func (d Directory) Find(name string, maxNameLen int) (Entry, error) {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if len(d.blob) == 0 {
		return Entry{}, ErrNotFound
	}
	return d.walk(d.root, name)
}

func (d Directory) walk(offset int, name string) (Entry, error) {
	if offset >= len(d.blob) {
		return Entry{}, ErrMalformed
	}
	kind := d.blob[offset]
	offset++
	switch kind {
	case nodeLeaf:
		e, _, err := d.decodeLeaf(offset)
		if err != nil {
			return Entry{}, err
		}
		if len(name) != 0 {
			// Leaf reached but name has unconsumed characters: no match.
			return Entry{}, ErrNotFound
		}
		return e, nil
	case nodeBranch:
		skipLen, n := binary.Uvarint(d.blob[offset:])
		if n <= 0 {
			return Entry{}, ErrMalformed
		}
		offset += n
		literal := d.blob[offset : offset+int(skipLen)]
		offset += int(skipLen)
		m := len(name)
		if m > len(literal) {
			m = len(literal)
		}
		if string(literal[:m]) != name[:m] {
			return Entry{}, ErrNotFound
		}
		name = name[m:]
		childCount, n := binary.Uvarint(d.blob[offset:])
		if n <= 0 {
			return Entry{}, ErrMalformed
		}
		offset += n
		children := make([]int, 0, childCount)
		var matched = -1
		for i := uint64(0); i < childCount; i++ {
			if offset+1 > len(d.blob) {
				return Entry{}, ErrMalformed
			}
			branchByte := d.blob[offset]
			offset++
			if offset+childOffsetWidth > len(d.blob) {
				return Entry{}, ErrMalformed
			}
			childOffset := int(readFixed(d.blob[offset:]))
			offset += childOffsetWidth
			children = append(children, childOffset)
			if len(name) == 0 {
				continue
			}
			if branchByte == name[0] {
				matched = int(childOffset)
			}
		}
		if len(name) == 0 {
			// Name exhausted at a branching point: unambiguous only if
			// exactly one child leads anywhere (the skip-over path).
			if len(children) != 1 {
				if len(children) == 0 {
					return Entry{}, ErrNotFound
				}
				return Entry{}, ErrAmbiguous
			}
			return d.walk(children[0], "")
		}
		if matched < 0 {
			return Entry{}, ErrNotFound
		}
		return d.walk(matched, name[1:])
	default:
		return Entry{}, ErrMalformed
	}
}

func (d Directory) decodeLeaf(offset int) (Entry, int, error) {
	if offset+2 > len(d.blob) {
		return Entry{}, 0, ErrMalformed
	}
	kind := d.blob[offset]
	tag := Tag(d.blob[offset+1])
	offset += 2
	off, n := binary.Uvarint(d.blob[offset:])
	if n <= 0 {
		return Entry{}, 0, ErrMalformed
	}
	offset += n
	length, n := binary.Uvarint(d.blob[offset:])
	if n <= 0 {
		return Entry{}, 0, ErrMalformed
	}
	offset += n
	if kind == leafFunction {
		tag = tag.AsFunction()
	}
	return Entry{Tag: tag, Offset: off, Length: length}, offset, nil
}

// List walks every leaf of a long directory, invoking fn with the full
// reconstructed name of each. Designed for the `l` debugger command and
// for Store.List.
func (d Directory) List(fn func(name string, e Entry)) error {
	if len(d.blob) == 0 {
		return nil
	}
	return d.listWalk(d.root, nil, fn)
}

func (d Directory) listWalk(offset int, prefix []byte, fn func(string, Entry)) error {
	if offset >= len(d.blob) {
		return ErrMalformed
	}
	kind := d.blob[offset]
	offset++
	switch kind {
	case nodeLeaf:
		e, _, err := d.decodeLeaf(offset)
		if err != nil {
			return err
		}
		fn(string(prefix), e)
		return nil
	case nodeBranch:
		skipLen, n := binary.Uvarint(d.blob[offset:])
		if n <= 0 {
			return ErrMalformed
		}
		offset += n
		literal := d.blob[offset : offset+int(skipLen)]
		offset += int(skipLen)
		prefix = append(prefix, literal...)
		childCount, n := binary.Uvarint(d.blob[offset:])
		if n <= 0 {
			return ErrMalformed
		}
		offset += n
		for i := uint64(0); i < childCount; i++ {
			branchByte := d.blob[offset]
			offset++
			if offset+childOffsetWidth > len(d.blob) {
				return ErrMalformed
			}
			childOffset := int(readFixed(d.blob[offset:]))
			offset += childOffsetWidth
			childPrefix := append(append([]byte{}, prefix...), branchByte)
			if err := d.listWalk(childOffset, childPrefix, fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return ErrMalformed
	}
}
