// Package testkey generates reproducible pseudo-random byte buffers for
// property-style round-trip tests, the way brimstore-valuesstore/main.go
// seeds its benchmark keyspace and value buffers from a single -random
// flag so a run can be reproduced bit-for-bit from its seed.
package testkey

import "github.com/gholt/brimutil"

// Buffer returns n pseudo-random bytes derived from seed. The same seed
// always yields the same bytes, so a failing property test can be
// reproduced by re-running with the seed it printed.
func Buffer(seed int64, n int) []byte {
	b := make([]byte, n)
	brimutil.NewSeededScrambled(seed).Read(b)
	return b
}

// Keys returns n pseudo-random uint64s derived from seed, suitable as
// journal/store keys for round-trip fuzzing.
func Keys(seed int64, n int) []uint64 {
	raw := Buffer(seed, n*8)
	keys := make([]uint64, n)
	for i := range keys {
		var k uint64
		for _, b := range raw[i*8 : i*8+8] {
			k = k<<8 | uint64(b)
		}
		keys[i] = k
	}
	return keys
}
