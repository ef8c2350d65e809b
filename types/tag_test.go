package types

import "testing"

func TestTagSize(t *testing.T) {
	cases := []struct {
		tag  Tag
		size int
	}{
		{Int8, 1},
		{UInt8, 1},
		{Int16, 2},
		{UInt32, 4},
		{Int64, 8},
		{Float32, 4},
		{Float64, 8},
		{Blob, 0},
		{String, 0},
		{Invalid, 0},
	}
	for _, c := range cases {
		if got := c.tag.Size(); got != c.size {
			t.Errorf("%v.Size() = %d, want %d", c.tag, got, c.size)
		}
	}
}

func TestTagFlags(t *testing.T) {
	if !Int16.Signed() {
		t.Fatal("Int16 should be signed")
	}
	if UInt16.Signed() {
		t.Fatal("UInt16 should not be signed")
	}
	if !Int32.Int() {
		t.Fatal("Int32 should be Int")
	}
	if Float32.Int() {
		t.Fatal("Float32 should not be Int")
	}
	if UInt8.Function() {
		t.Fatal("UInt8 should not be a function")
	}
	if !UInt8.AsFunction().Function() {
		t.Fatal("AsFunction should set FlagFunction")
	}
}

func TestTagString(t *testing.T) {
	if Int8.String() != "int8" {
		t.Fatalf("got %s", Int8.String())
	}
	if Invalid.String() != "invalid" {
		t.Fatalf("got %s", Invalid.String())
	}
	if UInt8.AsFunction().String() != "(uint8)" {
		t.Fatalf("got %s", UInt8.AsFunction().String())
	}
}
