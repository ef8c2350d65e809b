package syncer

import (
	"encoding/binary"
	"fmt"

	"github.com/demcon/stored/protocol"
)

// link is one store's replication state on one connection, per
// spec.md §4.F's "state per connection per store" table.
type link struct {
	store      *SynchronizableStore
	localID    uint16
	havePeerID bool
	peerID     uint16 // idOut: tag our outgoing Updates with this
	seq        uint64
	source     bool // we issued the original Hello for this store
}

// SyncConnection carries the Hello/Welcome/Update/Bye protocol over a
// protocol.Layer stack. It is the top layer of that stack: Connect wires
// it in via protocol.Chain.
type SyncConnection struct {
	protocol.Base
	sync        *Synchronizer
	byHash      map[uint64]*link
	byLocalID   map[uint16]*link
	nextLocalID uint16
}

func newSyncConnection(s *Synchronizer) *SyncConnection {
	return &SyncConnection{
		Base:        protocol.NewBase(),
		sync:        s,
		byHash:      make(map[uint64]*link),
		byLocalID:   make(map[uint16]*link),
		nextLocalID: 1,
	}
}

func (c *SyncConnection) newLink(store *SynchronizableStore) *link {
	if l, ok := c.byHash[store.Hash()]; ok {
		return l
	}
	id := c.nextLocalID
	c.nextLocalID++
	if c.nextLocalID == 0 {
		c.nextLocalID = 1
	}
	l := &link{store: store, localID: id}
	c.byHash[store.Hash()] = l
	c.byLocalID[id] = l
	return l
}

// SyncFrom requests replication of store over this connection, per
// spec.md's sync_from(store, connection): emits Hello and marks this
// side as the one responsible for re-requesting it after a Bye.
func (c *SyncConnection) SyncFrom(store *SynchronizableStore) error {
	l := c.newLink(store)
	l.source = true
	return c.sendHello(l)
}

func (c *SyncConnection) sendHello(l *link) error {
	bigEndian := l.store.Endian() == binary.BigEndian
	msg := encodeHello(l.store.Hash(), l.localID, bigEndian)
	return c.Down(msg)
}

// Decode implements protocol.Layer: it is invoked by the layer below
// with one complete, already-deframed Sync message.
func (c *SyncConnection) Decode(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	base, bigEndian := baseOpcode(p[0])
	order := orderFor(bigEndian)
	body := p[1:]
	switch base {
	case opHello:
		return c.handleHello(body, order, bigEndian)
	case opWelcome:
		return c.handleWelcome(body, order, bigEndian)
	case opUpdate:
		return c.handleUpdate(body, order, bigEndian)
	case opBye:
		return c.handleBye(body, order, bigEndian)
	default:
		return nil // peer-protocol violation: silently dropped per spec.md §7
	}
}

// Encode implements protocol.Layer for the rare case a caller wants to
// inject a raw Sync frame directly; ordinary traffic goes through
// SyncFrom/the Synchronizer's Process loop, which call Down themselves.
func (c *SyncConnection) Encode(p []byte) error {
	return c.Down(p)
}

func (c *SyncConnection) handleHello(body []byte, order binary.ByteOrder, bigEndian bool) error {
	msg, err := decodeHello(body, order)
	if err != nil {
		return nil
	}
	store := c.sync.lookup(msg.hash)
	if store == nil {
		return c.Down(encodeByeHash(msg.hash, bigEndian))
	}
	l := c.newLink(store)
	l.havePeerID = true
	l.peerID = msg.localID
	l.seq = store.Journal.Seq()
	return c.Down(encodeWelcome(msg.localID, l.localID, store.Buffer(), bigEndian))
}

func (c *SyncConnection) handleWelcome(body []byte, order binary.ByteOrder, bigEndian bool) error {
	msg, err := decodeWelcome(body, order)
	if err != nil {
		return nil
	}
	l := c.byLocalID[msg.helloID]
	if l == nil {
		return nil
	}
	if len(msg.buffer) != len(l.store.Buffer()) {
		return fmt.Errorf("syncer: welcome buffer size mismatch for hash %d", l.store.Hash())
	}
	copy(l.store.Buffer(), msg.buffer)
	l.havePeerID = true
	l.peerID = msg.welcomeID
	l.seq = l.store.Journal.Seq()
	return nil
}

func (c *SyncConnection) handleUpdate(body []byte, order binary.ByteOrder, bigEndian bool) error {
	id, rest, err := decodeUpdateID(body, order)
	if err != nil {
		return nil
	}
	l := c.byLocalID[id]
	if l == nil {
		return nil
	}
	records, err := decodeUpdateRecords(rest, l.store.KeyWidth(), order)
	if err != nil {
		return nil
	}
	c.sync.flushPending(l.store, c)
	recordAll := c.sync.hasOtherSource(l.store, c)
	buf := l.store.Buffer()
	for _, rec := range records {
		if rec.key+uint64(len(rec.value)) > uint64(len(buf)) {
			continue
		}
		copy(buf[rec.key:], rec.value)
		l.store.Journal.ChangedIfNew(rec.key, len(rec.value), recordAll)
	}
	l.seq = l.store.Journal.Seq()
	return nil
}

func (c *SyncConnection) handleBye(body []byte, order binary.ByteOrder, bigEndian bool) error {
	msg, err := decodeBye(body, order)
	if err != nil {
		return nil
	}
	switch msg.kind {
	case byeAll:
		for hash, l := range c.byHash {
			if !l.source {
				delete(c.byHash, hash)
				delete(c.byLocalID, l.localID)
				continue
			}
			l.havePeerID = false
			c.sendHello(l)
		}
	case byeByID:
		for hash, l := range c.byHash {
			if l.peerID != msg.id || !l.havePeerID {
				continue
			}
			if l.source {
				l.havePeerID = false
				c.sendHello(l)
			} else {
				delete(c.byHash, hash)
				delete(c.byLocalID, l.localID)
			}
			break
		}
	case byeByHash:
		if l, ok := c.byHash[msg.hash]; ok && l.source {
			l.havePeerID = false
			c.sendHello(l)
		}
	}
	return nil
}
