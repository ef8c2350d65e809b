// Package types implements the primitive type tag and directory blob
// format shared by every generated store. The schema compiler that
// produces the directory blob and the buffer layout is outside this
// package's scope; types only decodes what it is given.
package types

import "fmt"

// Tag encodes a stored object's representation in a single byte: size
// class in the low bits, plus flags for signedness, integer-vs-float,
// fixed-vs-variable length and function-vs-variable.
//
// bit layout, lowest bit first: SSS X I F N  (S=size class, X=FlagSigned,
// I=FlagInt, F=FlagFixed, N=FlagFunction), matching libstored's types.h.
type Tag byte

const (
	sizeMask = 0x07

	// FlagSigned marks a fixed-size integer as two's-complement signed.
	FlagSigned Tag = 1 << 3
	// FlagInt marks a fixed-size numeric type as an integer rather than a float.
	FlagInt Tag = 1 << 4
	// FlagFixed marks a type as fixed-size (the size class bits are meaningful).
	FlagFixed Tag = 1 << 5
	// FlagFunction marks the object as a Function rather than a Variable.
	FlagFunction Tag = 1 << 6
)

// Invalid marks "no object"; returned by directory lookups on miss.
const Invalid Tag = 0xff

// Canonical tags for every size class libstored generates.
const (
	Bool    Tag = FlagFixed | 0
	Int8    Tag = FlagFixed | FlagInt | FlagSigned | 0
	UInt8   Tag = FlagFixed | FlagInt | 0
	Int16   Tag = FlagFixed | FlagInt | FlagSigned | 1
	UInt16  Tag = FlagFixed | FlagInt | 1
	Int32   Tag = FlagFixed | FlagInt | FlagSigned | 2
	UInt32  Tag = FlagFixed | FlagInt | 2
	Int64   Tag = FlagFixed | FlagInt | FlagSigned | 3
	UInt64  Tag = FlagFixed | FlagInt | 3
	Float32 Tag = FlagFixed | 2
	Float64 Tag = FlagFixed | 3
	// Pointer32/Pointer64 have the same values as UInt32/UInt64; no
	// package in this module uses them.
	Pointer32 Tag = FlagFixed | FlagInt | 2
	Pointer64 Tag = FlagFixed | FlagInt | 3
	Blob      Tag = 0
	String    Tag = 1
	Void      Tag = 2
)

var sizeClassBytes = [8]int{1, 2, 4, 8, 0, 0, 0, 0}

// Size returns the byte size of a fixed-size tag, or 0 for blob/string/void
// and for Invalid.
func (t Tag) Size() int {
	if t == Invalid || !t.Fixed() {
		return 0
	}
	return sizeClassBytes[t&sizeMask]
}

// Fixed reports whether t is a fixed-size type.
func (t Tag) Fixed() bool { return t&FlagFixed != 0 }

// Int reports whether t is an integer type (meaningless unless Fixed()).
func (t Tag) Int() bool { return t&FlagInt != 0 }

// Signed reports whether t is a signed integer type (meaningless unless Int()).
func (t Tag) Signed() bool { return t&FlagSigned != 0 }

// Function reports whether t identifies a Function rather than a Variable.
func (t Tag) Function() bool { return t&FlagFunction != 0 }

// AsFunction returns t with FlagFunction set, used when a directory leaf
// describes a function rather than a variable of the same underlying type.
func (t Tag) AsFunction() Tag { return t | FlagFunction }

func (t Tag) String() string {
	if t == Invalid {
		return "invalid"
	}
	base := "?"
	switch t &^ FlagFunction {
	case Bool:
		base = "bool"
	case Int8:
		base = "int8"
	case UInt8:
		base = "uint8"
	case Int16:
		base = "int16"
	case UInt16:
		base = "uint16"
	case Int32:
		base = "int32"
	case UInt32:
		base = "uint32"
	case Int64:
		base = "int64"
	case UInt64:
		base = "uint64"
	case Float32:
		base = "float"
	case Float64:
		base = "double"
	case Blob:
		base = "blob"
	case String:
		base = "string"
	case Void:
		base = "void"
	}
	if t.Function() {
		return fmt.Sprintf("(%s)", base)
	}
	return base
}
