package kv

// JournalRecorder is the minimal surface a change journal exposes to a
// Store's hook pipeline. journal.Journal satisfies this without kv
// needing to import the journal package (and without journal needing to
// know about kv.Key), keeping the dependency graph a DAG: kv -> nothing,
// journal -> nothing, this adapter lives in kv and is the only place the
// two concepts meet.
type JournalRecorder interface {
	Changed(key uint64, length int)
}

// journalHooks is the Hooks implementation a SynchronizableStore plugs
// in: ExitX(changed=true) calls through to the journal exactly as
// spec.md §3 specifies, and the RO/entry hooks stay no-ops.
type journalHooks struct {
	NopHooks
	rec JournalRecorder
}

// NewJournalHooks returns a Hooks that forwards every exclusive write to
// rec.Changed(key, length), wiring a Store's write path to a
// journal.Journal.
func NewJournalHooks(rec JournalRecorder) Hooks {
	return journalHooks{rec: rec}
}

func (h journalHooks) ExitX(key Key, length int, changed bool) {
	if changed {
		h.rec.Changed(uint64(key), length)
	}
}
