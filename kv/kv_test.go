package kv

import (
	"testing"

	"github.com/demcon/stored/types"
)

func TestVariableGetSet(t *testing.T) {
	s := New(make([]byte, 16), Config{})
	v, err := NewInt8(s, 0)
	if err != nil {
		t.Fatal(err)
	}
	v.Set(10)
	if got := v.Get(); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}
}

func TestVariableAlignment(t *testing.T) {
	s := New(make([]byte, 16), Config{})
	if _, err := NewInt32(s, 1); err == nil {
		t.Fatal("expected alignment error")
	}
	if _, err := NewInt32(s, 4); err != nil {
		t.Fatal(err)
	}
}

func TestVariableOutOfRange(t *testing.T) {
	s := New(make([]byte, 4), Config{})
	if _, err := NewInt64(s, 0); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestHooksFireOnSet(t *testing.T) {
	type call struct {
		entryX, exitX, entryRO, exitRO int
	}
	var c call
	s := New(make([]byte, 16), Config{Hooks: testHooks{&c.entryX, &c.exitX, &c.entryRO, &c.exitRO}})
	v, err := NewUInt8(s, 0)
	if err != nil {
		t.Fatal(err)
	}
	v.Set(5)
	v.Get()
	if c.entryX != 1 || c.exitX != 1 || c.entryRO != 1 || c.exitRO != 1 {
		t.Fatalf("got %+v", c)
	}
}

type testHooks struct {
	entryX, exitX, entryRO, exitRO *int
}

func (h testHooks) EntryRO(Key)                      { *h.entryRO++ }
func (h testHooks) ExitRO(Key)                       { *h.exitRO++ }
func (h testHooks) EntryX(Key)                       { *h.entryX++ }
func (h testHooks) ExitX(Key, int, bool)             { *h.exitX++ }

func TestBlobVariable(t *testing.T) {
	s := New(make([]byte, 32), Config{})
	b, err := NewBlob(s, 0, 20)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if got := string(b.Get()); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if err := b.Set(make([]byte, 100)); err != ErrTooLarge {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestStringVariable(t *testing.T) {
	s := New(make([]byte, 32), Config{})
	sv, err := NewString(s, 0, 20)
	if err != nil {
		t.Fatal(err)
	}
	if err := sv.SetString("hi"); err != nil {
		t.Fatal(err)
	}
	if sv.GetString() != "hi" {
		t.Fatalf("got %q", sv.GetString())
	}
}

func TestFunction(t *testing.T) {
	var stored uint32
	s := New(nil, Config{Function: func(set bool, buf []byte, id uint64) (int, error) {
		if id != 42 {
			t.Fatalf("unexpected id %d", id)
		}
		if set {
			stored = s_endianUint32(buf)
		} else {
			putEndianUint32(buf, stored)
		}
		return len(buf), nil
	}})
	f := NewUInt32Function(s, 42)
	if err := f.Set(7); err != nil {
		t.Fatal(err)
	}
	got, err := f.Get()
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func s_endianUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putEndianUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestFindAndList(t *testing.T) {
	b := types.NewBuilder()
	b.Add("default_int8", types.Entry{Tag: types.Int8, Offset: 0, Length: 1})
	b.Add("default_uint8", types.Entry{Tag: types.UInt8, Offset: 1, Length: 1})
	blob, _ := b.Build()
	s := New(make([]byte, 16), Config{ShortDirectory: blob, LongDirectory: blob})
	v, err := s.Find("default_int8")
	if err != nil {
		t.Fatal(err)
	}
	if v.Tag() != types.Int8 {
		t.Fatalf("got tag %v", v.Tag())
	}
	count := 0
	if err := s.List(func(name string, v Variant) { count++ }); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("got %d entries, want 2", count)
	}
}

func TestStoreHashStable(t *testing.T) {
	blob := []byte{1, 2, 3}
	s1 := New(make([]byte, 4), Config{ShortDirectory: blob, LongDirectory: blob})
	s2 := New(make([]byte, 4), Config{ShortDirectory: blob, LongDirectory: blob})
	if s1.Hash() != s2.Hash() {
		t.Fatal("expected equal hashes for identical schema")
	}
	s3 := New(make([]byte, 4), Config{ShortDirectory: []byte{9}, LongDirectory: []byte{9}})
	if s1.Hash() == s3.Hash() {
		t.Fatal("expected different hashes for different schema")
	}
}
