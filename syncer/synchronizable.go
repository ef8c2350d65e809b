// Package syncer implements the Hello/Welcome/Update/Bye replication
// protocol of spec.md §4.F: a Synchronizer maps stores by schema hash,
// and a SyncConnection carries that protocol over an arbitrary
// protocol.Layer stack.
package syncer

import (
	"github.com/demcon/stored/journal"
	"github.com/demcon/stored/kv"
)

// SynchronizableStore pairs a Store with the Journal that tracks its
// writes, bridging the two packages the way kv.NewJournalHooks was
// designed to: kv never imports journal, so this type lives here, where
// both are already in scope.
type SynchronizableStore struct {
	*kv.Store
	Journal *journal.Journal
}

// NewSynchronizableStore builds the Store over buf with cfg, then wires
// a Journal to it via Store.SetHooks. cfg.Hooks is ignored; the journal
// hooks replace it.
func NewSynchronizableStore(buf []byte, cfg kv.Config) *SynchronizableStore {
	cfg.Hooks = kv.NopHooks{}
	store := kv.New(buf, cfg)
	s := &SynchronizableStore{Store: store}
	s.Journal = journal.New(store.Hash(), store.Buffer(), store.Endian(), nil)
	store.SetHooks(kv.NewJournalHooks(s.Journal))
	return s
}
