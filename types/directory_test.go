package types

import "testing"

func buildTestDirectory() Directory {
	b := NewBuilder()
	b.Add("default_int8", Entry{Tag: Int8, Offset: 0, Length: 1})
	b.Add("default_uint8", Entry{Tag: UInt8, Offset: 1, Length: 1})
	b.Add("default_int16", Entry{Tag: Int16, Offset: 2, Length: 2})
	b.Add("counter", Entry{Tag: UInt32.AsFunction(), Offset: 7, Length: 4})
	blob, root := b.Build()
	return NewDirectoryAt(blob, root)
}

func TestDirectoryFindExact(t *testing.T) {
	d := buildTestDirectory()
	e, err := d.Find("default_int8", 64)
	if err != nil {
		t.Fatal(err)
	}
	if e.Tag != Int8 || e.Offset != 0 || e.Length != 1 {
		t.Fatalf("got %+v", e)
	}
}

func TestDirectoryFindFunction(t *testing.T) {
	d := buildTestDirectory()
	e, err := d.Find("counter", 64)
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsFunction() {
		t.Fatal("expected function entry")
	}
	if e.Offset != 7 {
		t.Fatalf("got offset %d", e.Offset)
	}
}

func TestDirectoryFindUnambiguousPrefix(t *testing.T) {
	d := buildTestDirectory()
	// "counter" is the only name starting with "co".
	e, err := d.Find("co", 64)
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsFunction() {
		t.Fatal("expected function entry for abbreviated name")
	}
}

func TestDirectoryFindAmbiguousPrefix(t *testing.T) {
	d := buildTestDirectory()
	// "default_" is a prefix of three names.
	_, err := d.Find("default_", 64)
	if err != ErrAmbiguous {
		t.Fatalf("got %v, want ErrAmbiguous", err)
	}
}

func TestDirectoryFindNotFound(t *testing.T) {
	d := buildTestDirectory()
	_, err := d.Find("nope", 64)
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDirectoryList(t *testing.T) {
	d := buildTestDirectory()
	seen := map[string]Entry{}
	if err := d.List(func(name string, e Entry) {
		seen[name] = e
	}); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 4 {
		t.Fatalf("got %d entries, want 4: %v", len(seen), seen)
	}
	if seen["default_int16"].Tag != Int16 {
		t.Fatalf("got %+v", seen["default_int16"])
	}
}
