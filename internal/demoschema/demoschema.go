// Package demoschema builds a small fixed store schema for the cmd
// tools to serve, standing in for the schema compiler that spec.md
// places out of scope (§9's "Global stream buffers / SPM" design note
// area): a real deployment generates its directory blob and buffer
// layout from a store description file, which this module never
// receives as input.
package demoschema

import (
	"encoding/binary"

	"github.com/demcon/stored/kv"
	"github.com/demcon/stored/syncer"
	"github.com/demcon/stored/types"
)

// Layout is the buffer offsets backing the demo schema's named objects,
// exported so a hosting cmd can poke them directly. The cmd tools in
// this module do not use it.
type Layout struct {
	Int8   uint64
	UInt8  uint64
	Int16  uint64
	UInt32 uint64
	Name   uint64
}

// Build returns a ready-to-serve SynchronizableStore plus its Layout.
func Build(bigEndian bool) (*syncer.SynchronizableStore, Layout) {
	b := types.NewBuilder()
	layout := Layout{Int8: 0, UInt8: 1, Int16: 2, UInt32: 4, Name: 8}
	b.Add("default_int8", types.Entry{Tag: types.Int8, Offset: layout.Int8, Length: 1})
	b.Add("default_uint8", types.Entry{Tag: types.UInt8, Offset: layout.UInt8, Length: 1})
	b.Add("default_int16", types.Entry{Tag: types.Int16, Offset: layout.Int16, Length: 2})
	b.Add("default_uint32", types.Entry{Tag: types.UInt32, Offset: layout.UInt32, Length: 4})
	b.Add("name", types.Entry{Tag: types.String, Offset: layout.Name, Length: 24})
	blob, _ := b.Build()

	order := binary.ByteOrder(binary.LittleEndian)
	if bigEndian {
		order = binary.BigEndian
	}
	buf := make([]byte, 32)
	store := syncer.NewSynchronizableStore(buf, kv.Config{
		Endian:         order,
		ShortDirectory: blob,
		LongDirectory:  blob,
	})
	return store, layout
}
