package syncer

import (
	"testing"

	"github.com/demcon/stored/kv"
	"github.com/demcon/stored/protocol"
	"github.com/demcon/stored/types"
)

// pipe is a minimal bottom-of-stack Layer that hands Encoded bytes
// straight to its peer's Decode, modeling a lossless synchronous wire
// between two SyncConnections in tests.
type pipe struct {
	protocol.Base
	peer *pipe
}

func (p *pipe) Encode(b []byte) error { return p.peer.Decode(b) }
func (p *pipe) Decode(b []byte) error { return p.Up(b) }

func newTestSynchronizableStore(value byte) *SynchronizableStore {
	b := types.NewBuilder()
	b.Add("default_uint8", types.Entry{Tag: types.UInt8, Offset: 0, Length: 1})
	blob, _ := b.Build()
	buf := make([]byte, 8)
	buf[0] = value
	return NewSynchronizableStore(buf, kv.Config{ShortDirectory: blob, LongDirectory: blob})
}

func wirePair() (*SyncConnection, *SyncConnection, *Synchronizer, *Synchronizer) {
	sa, sb := NewSynchronizer(), NewSynchronizer()
	pa, pb := &pipe{Base: protocol.NewBase()}, &pipe{Base: protocol.NewBase()}
	pa.peer, pb.peer = pb, pa
	ca := sa.Connect(pa)
	cb := sb.Connect(pb)
	return ca, cb, sa, sb
}

func TestHelloWelcomeHandshake(t *testing.T) {
	storeA := newTestSynchronizableStore(1)
	storeB := newTestSynchronizableStore(2)
	sa, sb := NewSynchronizer(), NewSynchronizer()
	sa.Map(storeA)
	sb.Map(storeB)
	pa, pb := &pipe{Base: protocol.NewBase()}, &pipe{Base: protocol.NewBase()}
	pa.peer, pb.peer = pb, pa
	ca := sa.Connect(pa)
	sb.Connect(pb)

	if err := ca.SyncFrom(storeA); err != nil {
		t.Fatal(err)
	}

	if got := storeA.Buffer()[0]; got != 2 {
		t.Fatalf("got %d, want 2 (storeB's welcome contents)", got)
	}
	l := ca.byHash[storeA.Hash()]
	if l == nil || !l.havePeerID {
		t.Fatal("expected link with peer id after handshake")
	}
}

func TestUpdatePropagates(t *testing.T) {
	storeA := newTestSynchronizableStore(0)
	storeB := newTestSynchronizableStore(0)
	ca, cb, sa, sb := wirePair()
	sa.Map(storeA)
	sb.Map(storeB)

	if err := ca.SyncFrom(storeA); err != nil {
		t.Fatal(err)
	}

	v, err := storeA.Find("default_uint8")
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Set([]byte{42}); err != nil {
		t.Fatal(err)
	}

	sa.Process(storeA)

	if got := storeB.Buffer()[0]; got != 42 {
		t.Fatalf("got %d, want 42", got)
	}

	lb := cb.byHash[storeB.Hash()]
	if lb == nil {
		t.Fatal("expected link on B after hello")
	}
}

func TestByeAllDropsNonSourceLink(t *testing.T) {
	storeA := newTestSynchronizableStore(5)
	storeB := newTestSynchronizableStore(9)
	ca, cb, sa, sb := wirePair()
	sa.Map(storeA)
	sb.Map(storeB)

	if err := ca.SyncFrom(storeA); err != nil {
		t.Fatal(err)
	}

	// B never sourced this link (A did, via SyncFrom), so a bare Bye
	// delivered to B drops its entry instead of re-Helloing.
	if err := cb.Decode(encodeByeAll(false)); err != nil {
		t.Fatal(err)
	}
	if len(cb.byHash) != 0 {
		t.Fatalf("expected B's non-source link dropped, got %d remaining", len(cb.byHash))
	}
	if _, ok := ca.byHash[storeA.Hash()]; !ok {
		t.Fatal("A's own link state should be unaffected by B's local Bye processing")
	}
}
