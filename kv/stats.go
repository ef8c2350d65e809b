package kv

import (
	"fmt"

	"github.com/gholt/brimtext"
)

// Stats reports introspectable information about a Store, in the same
// spirit as the teacher's ValuesStoreStats: cheap fields always
// populated, with String() rendering an aligned table via brimtext.
type Stats struct {
	BufferLength int
	SchemaHash   uint64
	KeyWidth     int
}

// Stats gathers a snapshot of the store's static properties. Unlike the
// teacher's disk-backed store, a Store has no background counters to
// reset on read, since it owns no I/O subsystems of its own.
func (s *Store) Stats() *Stats {
	return &Stats{
		BufferLength: len(s.buf),
		SchemaHash:   s.hash,
		KeyWidth:     s.KeyWidth(),
	}
}

func (st *Stats) String() string {
	return brimtext.Align([][]string{
		{"bufferLength", fmt.Sprintf("%d", st.BufferLength)},
		{"schemaHash", fmt.Sprintf("%016x", st.SchemaHash)},
		{"keyWidth", fmt.Sprintf("%d", st.KeyWidth)},
	}, nil)
}
