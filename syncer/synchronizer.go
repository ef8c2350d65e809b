package syncer

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/demcon/stored/protocol"
)

// Synchronizer maps stores by schema hash and owns every SyncConnection
// built from it, per spec.md §4.F.
type Synchronizer struct {
	stores      map[uint64]*SynchronizableStore
	connections []*SyncConnection
}

// NewSynchronizer returns an empty Synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{stores: make(map[uint64]*SynchronizableStore)}
}

// Map registers store under its schema hash so incoming Hellos can find it.
func (s *Synchronizer) Map(store *SynchronizableStore) {
	s.stores[store.Hash()] = store
}

func (s *Synchronizer) lookup(hash uint64) *SynchronizableStore {
	return s.stores[hash]
}

// Connect constructs a SyncConnection layered on top of stack, per
// spec.md's connect(stack).
func (s *Synchronizer) Connect(stack protocol.Layer) *SyncConnection {
	conn := newSyncConnection(s)
	protocol.Chain(stack, conn)
	s.connections = append(s.connections, conn)
	return conn
}

// Disconnect removes conn from the synchronizer; it does not send Bye
// (the caller's transport teardown is assumed to signal that already).
func (s *Synchronizer) Disconnect(conn *SyncConnection) {
	for i, c := range s.connections {
		if c == conn {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
			return
		}
	}
}

// hasOtherSource reports whether store is replicated to any connection
// other than except, used to decide record_all on an incoming Update so
// the change gets journaled for re-propagation.
func (s *Synchronizer) hasOtherSource(store *SynchronizableStore, except *SyncConnection) bool {
	for _, c := range s.connections {
		if c == except {
			continue
		}
		if l, ok := c.byHash[store.Hash()]; ok && l.havePeerID {
			return true
		}
	}
	return false
}

// flushPending sends any outstanding Update for store to every
// connection other than except, preserving causal ordering before an
// incoming Update from except is applied.
func (s *Synchronizer) flushPending(store *SynchronizableStore, except *SyncConnection) {
	store.Journal.BumpSeq(false)
	for _, c := range s.connections {
		if c == except {
			continue
		}
		s.processOne(store, c)
	}
}

// Process emits an Update (and advances seq) on every connection where
// store has changed since that connection's last synchronized seq. It
// first commits any pending writes by bumping the store's journal seq,
// so writes made since the last Process become visible as one seq.
func (s *Synchronizer) Process(store *SynchronizableStore) {
	store.Journal.BumpSeq(false)
	for _, c := range s.connections {
		s.processOne(store, c)
	}
}

// ProcessAll runs Process for every mapped store.
func (s *Synchronizer) ProcessAll() {
	for _, store := range s.stores {
		s.Process(store)
	}
}

func (s *Synchronizer) processOne(store *SynchronizableStore, c *SyncConnection) {
	l, ok := c.byHash[store.Hash()]
	if !ok || !l.havePeerID {
		return
	}
	// Entries stamped with l.seq itself were already sent (or were part of
	// the Welcome buffer); only later seqs are new to this peer.
	since := l.seq + 1
	if !store.Journal.HasChanged(since) {
		return
	}
	var records []updateRecord
	buf := store.Buffer()
	store.Journal.IterateChangedWithLength(since, func(key, length uint64) {
		if key+length > uint64(len(buf)) {
			return
		}
		records = append(records, updateRecord{key: key, value: buf[key : key+length]})
	})
	if len(records) == 0 {
		l.seq = store.Journal.Seq()
		return
	}
	bigEndian := store.Endian() == binary.BigEndian
	msg := encodeUpdate(l.peerID, store.KeyWidth(), records, bigEndian)
	if err := c.Down(msg); err != nil {
		return
	}
	l.seq = store.Journal.Seq()
}

// Stats renders a plain-text summary (built with fmt, not brimtext):
// connection and mapped-store counts, and with extended set, per
// connection the stores it replicates with their ids and seqs.
func (s *Synchronizer) Stats(extended bool) fmt.Stringer {
	return syncStats{s: s, extended: extended}
}

type syncStats struct {
	s        *Synchronizer
	extended bool
}

func (st syncStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "connections: %d\n", len(st.s.connections))
	fmt.Fprintf(&b, "mapped stores: %d\n", len(st.s.stores))
	if !st.extended {
		return b.String()
	}
	hashes := make([]uint64, 0, len(st.s.stores))
	for h := range st.s.stores {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	for i, c := range st.s.connections {
		fmt.Fprintf(&b, "conn %d:\n", i)
		for _, h := range hashes {
			l, ok := c.byHash[h]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  hash=%d localID=%d peerID=%d seq=%d source=%v\n",
				h, l.localID, l.peerID, l.seq, l.source)
		}
	}
	return b.String()
}
