package debugger

import (
	"testing"

	"github.com/demcon/stored/kv"
	"github.com/demcon/stored/types"
)

func newTestStore() *kv.Store {
	b := types.NewBuilder()
	b.Add("default_int8", types.Entry{Tag: types.Int8, Offset: 0, Length: 1})
	b.Add("default_uint32", types.Entry{Tag: types.UInt32, Offset: 4, Length: 4})
	blob, _ := b.Build()
	return kv.New(make([]byte, 16), kv.Config{ShortDirectory: blob, LongDirectory: blob})
}

func newTestDebugger() *Debugger {
	d := New("unittest", "1.0")
	d.Map("", newTestStore())
	return d
}

func TestDispatchUnknownOpcode(t *testing.T) {
	d := newTestDebugger()
	if got := string(d.Dispatch([]byte("z"))); got != "?" {
		t.Fatalf("got %q", got)
	}
}

func TestCapabilities(t *testing.T) {
	d := newTestDebugger()
	resp := string(d.Dispatch([]byte("?")))
	if resp[0] != '?' {
		t.Fatalf("got %q", resp)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	d := newTestDebugger()
	if got := string(d.Dispatch([]byte("w7f/default_int8"))); got != "!" {
		t.Fatalf("write failed: %q", got)
	}
	if got := string(d.Dispatch([]byte("r/default_int8"))); got != "7f" {
		t.Fatalf("got %q, want 7f", got)
	}
}

func TestReadUnknownPathReturnsError(t *testing.T) {
	d := newTestDebugger()
	if got := string(d.Dispatch([]byte("r/nope"))); got != "?" {
		t.Fatalf("got %q", got)
	}
}

func TestAliasSubstitution(t *testing.T) {
	d := newTestDebugger()
	if got := string(d.Dispatch([]byte("a1/default_int8"))); got != "!" {
		t.Fatalf("alias define failed: %q", got)
	}
	if got := string(d.Dispatch([]byte("r1"))); got != "00" {
		t.Fatalf("got %q", got)
	}
	if got := string(d.Dispatch([]byte("a1"))); got != "!" {
		t.Fatalf("alias erase failed: %q", got)
	}
}

func TestMacroDefineAndExecute(t *testing.T) {
	d := newTestDebugger()
	// separator ',' then two commands
	if got := string(d.Dispatch([]byte("mx,r/default_int8,i"))); got != "!" {
		t.Fatalf("macro define failed: %q", got)
	}
	got := string(d.Dispatch([]byte{'x'}))
	if got != "00unittest" {
		t.Fatalf("got %q", got)
	}
}

func TestMacroRecursionGuard(t *testing.T) {
	d := newTestDebugger()
	d.Dispatch([]byte("mx,x"))
	if got := string(d.Dispatch([]byte{'x'})); got != "?" {
		t.Fatalf("expected recursive macro call to fail, got %q", got)
	}
}

func TestListEnumeratesObjects(t *testing.T) {
	d := newTestDebugger()
	out := string(d.Dispatch([]byte("l")))
	if out == "" {
		t.Fatal("expected non-empty listing")
	}
}

func TestStreamTraceAndDrain(t *testing.T) {
	d := newTestDebugger()
	if _, err := d.Stream("log", false); err != nil {
		t.Fatal(err)
	}
	d.Dispatch([]byte("mz,i"))
	if got := string(d.Dispatch([]byte("tzlog1"))); got != "!" {
		t.Fatalf("trace configure failed: %q", got)
	}
	d.Trace()
	if got := string(d.Dispatch([]byte("slog"))); got != "unittest" {
		t.Fatalf("got %q", got)
	}
	if got := string(d.Dispatch([]byte("slog"))); got != "" {
		t.Fatalf("expected drained stream empty, got %q", got)
	}
}

func TestRawMemoryReadWrite(t *testing.T) {
	d := newTestDebugger()
	if got := string(d.Dispatch([]byte("W0 aabbccdd"))); got != "!" {
		t.Fatalf("write mem failed: %q", got)
	}
	if got := string(d.Dispatch([]byte("R0 4"))); got != "aabbccdd" {
		t.Fatalf("got %q", got)
	}
}
