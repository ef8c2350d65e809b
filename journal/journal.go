// Package journal implements the per-store change log described in
// spec.md §4.C: a sorted array of {key, length, seq} records, pruned
// efficiently by a recursively maintained "highest seq seen in this
// subtree" field when the array is viewed as the implicit balanced
// binary-search tree over its own sorted order, plus a bounded
// short-seq window so per-entry metadata stays fixed-size regardless of
// how long a store runs.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// ShortSeqWindow and SeqLowerMargin bound how far behind the current seq
// an entry's 16-bit short seq may fall before it must be rewritten,
// exactly as spec.md §3 defines them.
const (
	ShortSeqWindow  = 1 << 16
	SeqLowerMargin  = 1 << 14
	shortSeqBitMask = ShortSeqWindow - 1
)

// ErrTruncated is returned by DecodeUpdates/DecodeBuffer when the reader
// runs out of data mid-record.
var ErrTruncated = errors.New("journal: truncated update stream")

// ErrKeyOutOfRange is returned by DecodeUpdates when a decoded key/length
// pair would read or write outside the store buffer.
var ErrKeyOutOfRange = errors.New("journal: key out of buffer range")

// entry is one journal record. highest is the cached max seq over this
// entry and its implicit-tree children, recomputed whenever the array's
// shape changes (insert/delete) or lazily propagated along a single
// search path on an in-place update.
type entry struct {
	key     uint64
	length  uint32
	seq     uint64
	highest uint64
}

// Journal is the ordered, bounded-metadata record of recent changes to a
// store's buffer, keyed by buffer offset. It never touches the buffer's
// content except to copy bytes during Encode/DecodeUpdates; all
// knowledge of what a key "means" lives in the owning Store.
type Journal struct {
	hash    uint64
	buffer  []byte
	order   binary.ByteOrder
	keyWidth int
	onChanged func(key uint64)

	entries []entry
	present *roaring.Bitmap // set of keys (truncated to uint32) with a live entry

	seq        uint64
	pendingSeq bool
}

// New constructs a Journal over buffer, identified by hash (typically a
// Store's schema hash) for the Hello/Welcome handshake, invoking
// onChanged(key) once per key after a DecodeUpdates batch is fully
// applied. onChanged may be nil.
func New(hash uint64, buffer []byte, order binary.ByteOrder, onChanged func(key uint64)) *Journal {
	return &Journal{
		hash:      hash,
		buffer:    buffer,
		order:     order,
		keyWidth:  keyWidth(len(buffer)),
		onChanged: onChanged,
		present:   roaring.New(),
	}
}

func keyWidth(bufLen int) int {
	switch {
	case bufLen <= 1<<8:
		return 1
	case bufLen <= 1<<16:
		return 2
	default:
		return 4
	}
}

// Seq returns the journal's current sequence number.
func (j *Journal) Seq() uint64 { return j.seq }

// BumpSeq increments the current seq (or does nothing if no change is
// pending and force is false — the pending-seq flag batches
// multiple Changed calls into one seq until the next message emission).
// It also rewrites any entry whose short seq would fall outside the safe
// window, keeping ToLong(ToShort(seq)) invertible for every live entry.
func (j *Journal) BumpSeq(force bool) uint64 {
	if !j.pendingSeq && !force {
		return j.seq
	}
	j.seq++
	j.pendingSeq = false
	floor := uint64(0)
	if j.seq > ShortSeqWindow-2*SeqLowerMargin {
		floor = j.seq - (ShortSeqWindow - 2*SeqLowerMargin)
	}
	changed := false
	for i := range j.entries {
		if j.entries[i].seq < floor {
			j.entries[i].seq = floor
			changed = true
		}
	}
	if changed {
		j.recomputeAllHighest()
	}
	return j.seq
}

// ShortSeq returns the 16-bit wire form of seq relative to the journal's
// current seq.
func (j *Journal) ShortSeq(seq uint64) uint16 { return uint16(seq & shortSeqBitMask) }

// ToLong expands a short seq back to a full seq, assuming it lies within
// ShortSeqWindow of the journal's current seq (true for any live entry
// per the BumpSeq invariant).
func (j *Journal) ToLong(short uint16) uint64 {
	cur := j.seq
	base := cur &^ shortSeqBitMask
	full := base | uint64(short)
	if full > cur+SeqLowerMargin {
		full -= ShortSeqWindow
	}
	return full
}

func (j *Journal) find(key uint64) (idx int, path []int, found bool) {
	lo, hi := 0, len(j.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		path = append(path, mid)
		switch {
		case j.entries[mid].key == key:
			return mid, path, true
		case j.entries[mid].key < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, path, false
}

// Changed records that the variable at key now has length len, stamping
// the current (possibly about-to-be-bumped) seq, inserting a new entry if
// none exists yet. It satisfies kv.JournalRecorder, so a *Journal can be
// wired into a Store's hook pipeline via kv.NewJournalHooks.
func (j *Journal) Changed(key uint64, length int) {
	j.ChangedIfNew(key, length, true)
}

// ChangedIfNew is Changed with control over whether a miss inserts a new
// entry; DecodeUpdates uses insertIfNew=false when replaying updates from
// a peer that should only ever touch keys this side already knows about.
func (j *Journal) ChangedIfNew(key uint64, length int, insert bool) {
	j.pendingSeq = true
	targetSeq := j.seq + 1

	idx, path, found := j.find(key)
	if found {
		j.entries[idx].length = uint32(length)
		j.entries[idx].seq = targetSeq
		j.propagateHighest(path)
		return
	}
	if !insert {
		return
	}
	e := entry{key: key, length: uint32(length), seq: targetSeq, highest: targetSeq}
	j.entries = append(j.entries, entry{})
	copy(j.entries[idx+1:], j.entries[idx:])
	j.entries[idx] = e
	j.present.Add(uint32(key))
	j.recomputeAllHighest()
}

// propagateHighest recomputes the highest field for every index visited
// on the way to a just-updated leaf, in reverse (leaf-to-root) order.
// Safe because the array's shape (and therefore every other node's
// subtree) is unchanged; only entries along this one path can have
// changed.
func (j *Journal) propagateHighest(path []int) {
	for i := len(path) - 1; i >= 0; i-- {
		idx := path[i]
		lo, hi := j.boundsOf(path[:i], idx)
		j.entries[idx].highest = j.subtreeHighest(lo, hi, idx)
	}
}

// boundsOf reconstructs the [lo, hi) range that idx covered during the
// binary search recorded in path (the ancestors visited before idx).
func (j *Journal) boundsOf(ancestors []int, idx int) (int, int) {
	lo, hi := 0, len(j.entries)
	for _, a := range ancestors {
		if idx < a {
			hi = a
		} else {
			lo = a + 1
		}
	}
	return lo, hi
}

func (j *Journal) subtreeHighest(lo, hi, idx int) uint64 {
	best := j.entries[idx].seq
	if lo < idx {
		if h := j.entries[(lo+idx)/2].highest; h > best {
			best = h
		}
	}
	if idx+1 < hi {
		if h := j.entries[(idx+1+hi)/2].highest; h > best {
			best = h
		}
	}
	return best
}

// recomputeAllHighest rebuilds every highest field from scratch; required
// whenever the array's length changes, since the implicit tree shape
// depends only on array length.
func (j *Journal) recomputeAllHighest() {
	sort.Slice(j.entries, func(a, b int) bool { return j.entries[a].key < j.entries[b].key })
	var rec func(lo, hi int) uint64
	rec = func(lo, hi int) uint64 {
		if lo >= hi {
			return 0
		}
		mid := (lo + hi) / 2
		best := j.entries[mid].seq
		if l := rec(lo, mid); l > best {
			best = l
		}
		if r := rec(mid+1, hi); r > best {
			best = r
		}
		j.entries[mid].highest = best
		return best
	}
	rec(0, len(j.entries))
}

// HasChanged reports whether any entry has a seq >= sinceSeq.
func (j *Journal) HasChanged(sinceSeq uint64) bool {
	if len(j.entries) == 0 {
		return false
	}
	mid := len(j.entries) / 2
	return j.entries[mid].highest >= sinceSeq
}

// HasChangedKey reports whether key's entry (if any) has a seq >= sinceSeq.
func (j *Journal) HasChangedKey(key uint64, sinceSeq uint64) bool {
	if !j.present.Contains(uint32(key)) {
		return false
	}
	idx, _, found := j.find(key)
	return found && j.entries[idx].seq >= sinceSeq
}

// IterateChanged calls fn(key) once for every key with seq >= sinceSeq,
// each at most once, pruning whole subtrees whose highest < sinceSeq.
func (j *Journal) IterateChanged(sinceSeq uint64, fn func(key uint64)) {
	var rec func(lo, hi int)
	rec = func(lo, hi int) {
		if lo >= hi {
			return
		}
		mid := (lo + hi) / 2
		if j.entries[mid].highest < sinceSeq {
			return
		}
		rec(lo, mid)
		if j.entries[mid].seq >= sinceSeq {
			fn(j.entries[mid].key)
		}
		rec(mid+1, hi)
	}
	rec(0, len(j.entries))
}

// IterateChangedWithLength is IterateChanged but also passes each
// entry's recorded length, for callers (the Synchronizer's Update
// encoder) that need to slice the live buffer without a second lookup.
func (j *Journal) IterateChangedWithLength(sinceSeq uint64, fn func(key, length uint64)) {
	var rec func(lo, hi int)
	rec = func(lo, hi int) {
		if lo >= hi {
			return
		}
		mid := (lo + hi) / 2
		if j.entries[mid].highest < sinceSeq {
			return
		}
		rec(lo, mid)
		if j.entries[mid].seq >= sinceSeq {
			fn(j.entries[mid].key, j.entries[mid].length)
		}
		rec(mid+1, hi)
	}
	rec(0, len(j.entries))
}

// EncodeHash writes the journal's schema hash to w as 8 big-endian bytes.
// The syncer package does not call it: its Hello carries the hash as a
// NUL-terminated decimal string (see syncer/wire.go).
func (j *Journal) EncodeHash(w io.Writer) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], j.hash)
	_, err := w.Write(b[:])
	return err
}

// EncodeBuffer writes the entire store buffer to w (a Synchronizer
// Welcome's payload) and returns the seq current as of the write.
func (j *Journal) EncodeBuffer(w io.Writer) (uint64, error) {
	j.BumpSeq(false)
	if _, err := w.Write(j.buffer); err != nil {
		return 0, err
	}
	return j.seq, nil
}

// DecodeBuffer reads len(j.buffer) bytes from r into the store buffer
// wholesale (a Synchronizer Welcome's payload) and returns the seq to
// adopt as this side's baseline.
func (j *Journal) DecodeBuffer(r io.Reader) (uint64, error) {
	if _, err := io.ReadFull(r, j.buffer); err != nil {
		return 0, fmt.Errorf("journal: decode buffer: %w", err)
	}
	return j.seq, nil
}

// EncodeUpdates writes every key changed since sinceSeq as
// <key><length_varint><raw bytes> (key fixed-width per the store's key
// width, length a LEB128 varint) and returns the seq current as of
// emission.
func (j *Journal) EncodeUpdates(w io.Writer, sinceSeq uint64) (uint64, error) {
	j.BumpSeq(false)
	var werr error
	tmp := make([]byte, 8)
	j.IterateChanged(sinceSeq, func(key uint64) {
		if werr != nil {
			return
		}
		idx, _, found := j.find(key)
		if !found {
			return
		}
		e := j.entries[idx]
		putFixedKey(tmp[:j.keyWidth], key, j.order)
		if _, err := w.Write(tmp[:j.keyWidth]); err != nil {
			werr = err
			return
		}
		n := binary.PutUvarint(tmp, uint64(e.length))
		if _, err := w.Write(tmp[:n]); err != nil {
			werr = err
			return
		}
		if e.key+uint64(e.length) > uint64(len(j.buffer)) {
			werr = ErrKeyOutOfRange
			return
		}
		if _, err := w.Write(j.buffer[e.key : e.key+uint64(e.length)]); err != nil {
			werr = err
		}
	})
	if werr != nil {
		return 0, werr
	}
	return j.seq, nil
}

// DecodeUpdates reads a stream of <key><length><bytes> records produced
// by EncodeUpdates, applies each to the buffer, and calls
// Changed(key, length, recordAll) per record so a downstream
// Synchronizer can propagate the delta further. A hook_changed
// notification (onChanged) fires once per decoded key after the whole
// batch has been written. On any decode error the stream is abandoned,
// already-applied records stand (idempotent re-application is safe), and
// 0 is returned to signal "nothing further usable".
func (j *Journal) DecodeUpdates(r io.Reader, recordAll bool) (uint64, error) {
	keyBuf := make([]byte, j.keyWidth)
	lenBuf := make([]byte, binary.MaxVarintLen64)
	var decoded []uint64
	for {
		_, err := io.ReadFull(r, keyBuf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		key := readFixedKey(keyBuf, j.order)
		length, err := readUvarint(r, lenBuf)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		if key+length > uint64(len(j.buffer)) {
			return 0, ErrKeyOutOfRange
		}
		if _, err := io.ReadFull(r, j.buffer[key:key+length]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		j.ChangedIfNew(key, int(length), recordAll)
		decoded = append(decoded, key)
	}
	if j.onChanged != nil {
		for _, k := range decoded {
			j.onChanged(k)
		}
	}
	return j.seq, nil
}

// Clean discards bookkeeping for entries whose seq predates oldestSeq, so
// a long-running store's journal does not grow without bound once every
// synchronizer connection has advanced past that point.
func (j *Journal) Clean(oldestSeq uint64) {
	kept := j.entries[:0]
	for _, e := range j.entries {
		if e.seq >= oldestSeq {
			kept = append(kept, e)
		} else {
			j.present.Remove(uint32(e.key))
		}
	}
	j.entries = kept
	j.recomputeAllHighest()
}

func readUvarint(r io.Reader, scratch []byte) (uint64, error) {
	for i := 0; i < len(scratch); i++ {
		if _, err := io.ReadFull(r, scratch[i:i+1]); err != nil {
			return 0, err
		}
		if scratch[i] < 0x80 {
			v, _ := binary.Uvarint(scratch[:i+1])
			return v, nil
		}
	}
	return 0, errors.New("journal: varint too long")
}

func putFixedKey(dst []byte, key uint64, order binary.ByteOrder) {
	switch len(dst) {
	case 1:
		dst[0] = byte(key)
	case 2:
		order.PutUint16(dst, uint16(key))
	default:
		order.PutUint32(dst, uint32(key))
	}
}

func readFixedKey(src []byte, order binary.ByteOrder) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(order.Uint16(src))
	default:
		return uint64(order.Uint32(src))
	}
}
