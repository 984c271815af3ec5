package value

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		OfNull(),
		OfBool(true),
		OfBool(false),
		OfInt(-42),
		OfFloat(3.25),
		OfString("hello, dialog"),
		OfBytes([]byte{1, 2, 3, 4}),
		OfEntity([32]byte{9: 1}),
	}
	for _, v := range cases {
		encoded := v.Encode()
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode(%v): %v", v.Kind(), err)
		}
		if !bytes.Equal(decoded.Encode(), encoded) {
			t.Fatalf("round trip mismatch for kind %v", v.Kind())
		}
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a := OfString("same")
	b := OfString("same")
	if a.Hash() != b.Hash() {
		t.Fatalf("equal values must hash equally")
	}
	c := OfString("different")
	if a.Hash() == c.Hash() {
		t.Fatalf("different values must not collide (trivially)")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error decoding empty buffer")
	}
	if _, err := Decode([]byte{byte(Boolean)}); err == nil {
		t.Fatalf("expected error decoding truncated boolean")
	}
}
