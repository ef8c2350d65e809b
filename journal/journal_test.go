package journal

import (
	"bytes"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/demcon/stored/internal/testkey"
)

func newTestJournal(bufLen int) (*Journal, []byte) {
	buf := make([]byte, bufLen)
	j := New(0xdeadbeef, buf, binary.BigEndian, nil)
	return j, buf
}

func TestChangedAndHasChanged(t *testing.T) {
	j, _ := newTestJournal(64)
	j.Changed(4, 1)
	j.BumpSeq(false)
	if !j.HasChanged(1) {
		t.Fatal("expected HasChanged(1) after one change")
	}
	if j.HasChanged(j.Seq() + 1) {
		t.Fatal("did not expect a future seq to have changed")
	}
}

func TestHasChangedKey(t *testing.T) {
	j, _ := newTestJournal(64)
	j.Changed(10, 2)
	j.BumpSeq(false)
	if !j.HasChangedKey(10, 1) {
		t.Fatal("expected key 10 to have changed")
	}
	if j.HasChangedKey(11, 1) {
		t.Fatal("key 11 was never touched")
	}
}

func TestIterateChangedOrderAndPruning(t *testing.T) {
	j, _ := newTestJournal(64)
	for _, k := range []uint64{30, 10, 50, 20, 40} {
		j.Changed(k, 1)
		j.BumpSeq(false)
	}
	baseline := j.Seq() - 2

	var seen []uint64
	j.IterateChanged(baseline+1, func(key uint64) { seen = append(seen, key) })

	if len(seen) == 0 {
		t.Fatal("expected at least one changed key")
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("keys not in ascending order: %v", seen)
		}
	}
}

func TestChangedIfNewReportsEveryDistinctKey(t *testing.T) {
	const bufLen = 1024
	j, _ := newTestJournal(bufLen)

	raw := testkey.Keys(42, 200)
	want := make(map[uint64]bool)
	for _, k := range raw {
		key := k % (bufLen - 1)
		want[key] = true
		j.Changed(key, 1)
	}
	j.BumpSeq(false)

	var got []uint64
	j.IterateChanged(0, func(key uint64) { got = append(got, key) })

	if len(got) != len(want) {
		t.Fatalf("got %d distinct changed keys, want %d (seed 42)", len(got), len(want))
	}
	for _, key := range got {
		if !want[key] {
			t.Fatalf("unexpected key %d reported changed (seed 42)", key)
		}
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }) {
		t.Fatalf("keys not in ascending order: %v", got)
	}
}

func TestEncodeDecodeUpdatesRoundTrip(t *testing.T) {
	srcJ, srcBuf := newTestJournal(32)
	copy(srcBuf[0:4], []byte{1, 2, 3, 4})
	srcJ.Changed(0, 4)
	copy(srcBuf[8:10], []byte{9, 9})
	srcJ.Changed(8, 2)
	srcJ.BumpSeq(false)

	var wire bytes.Buffer
	if _, err := srcJ.EncodeUpdates(&wire, 0); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var notified []uint64
	dstJ, dstBuf := newTestJournal(32)
	dstJ.onChanged = func(key uint64) { notified = append(notified, key) }

	if _, err := dstJ.DecodeUpdates(&wire, true); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dstBuf[0:4], []byte{1, 2, 3, 4}) {
		t.Fatalf("region 0 not applied: %v", dstBuf[0:4])
	}
	if !bytes.Equal(dstBuf[8:10], []byte{9, 9}) {
		t.Fatalf("region 8 not applied: %v", dstBuf[8:10])
	}
	if len(notified) != 2 {
		t.Fatalf("expected 2 onChanged notifications, got %d", len(notified))
	}
}

func TestDecodeUpdatesOutOfRange(t *testing.T) {
	j, _ := newTestJournal(8)
	var wire bytes.Buffer
	wire.WriteByte(7) // key = 7, 1-byte key width for an 8-byte buffer
	n := binary.PutUvarint(make([]byte, binary.MaxVarintLen64), 4)
	buf := make([]byte, binary.MaxVarintLen64)
	binary.PutUvarint(buf, 4)
	wire.Write(buf[:n])
	wire.Write([]byte{1, 2, 3, 4})

	if _, err := j.DecodeUpdates(&wire, true); err != ErrKeyOutOfRange {
		t.Fatalf("got %v, want ErrKeyOutOfRange", err)
	}
}

func TestCleanDropsOldEntries(t *testing.T) {
	j, _ := newTestJournal(64)
	j.Changed(1, 1)
	j.BumpSeq(false)
	oldSeq := j.Seq()
	j.Changed(2, 1)
	j.BumpSeq(false)

	j.Clean(oldSeq + 1)
	if j.HasChangedKey(1, 0) {
		t.Fatal("expected entry for key 1 to be cleaned")
	}
	if !j.HasChangedKey(2, 0) {
		t.Fatal("expected entry for key 2 to survive clean")
	}
}

func TestShortSeqRoundTrip(t *testing.T) {
	j, _ := newTestJournal(8)
	for i := 0; i < 5; i++ {
		j.Changed(uint64(i%8), 1)
		j.BumpSeq(false)
	}
	short := j.ShortSeq(j.Seq())
	if got := j.ToLong(short); got != j.Seq() {
		t.Fatalf("got %d, want %d", got, j.Seq())
	}
}
