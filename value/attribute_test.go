package value

import (
	"bytes"
	"testing"
)

func TestAttributeCanonicalRoundTrip(t *testing.T) {
	cases := []Attribute{
		Name("profile/handle"),
		Reference([32]byte{1: 1}),
		Position([]byte{0x80, 0x00}),
	}
	for _, a := range cases {
		encoded := a.CanonicalBytes()
		decoded, err := ParseCanonicalBytes(encoded)
		if err != nil {
			t.Fatalf("parse canonical(%v): %v", a.Kind(), err)
		}
		if !bytes.Equal(decoded.CanonicalBytes(), encoded) {
			t.Fatalf("canonical round trip mismatch for kind %v", a.Kind())
		}
	}
}

func TestAttributeKeyBytesRoundTrip(t *testing.T) {
	cases := []Attribute{
		Name("profile/handle"),
		Reference([32]byte{2: 2}),
		Position([]byte{0x01}),
	}
	for _, a := range cases {
		encoded := a.KeyBytes()
		decoded, n, err := ParseKeyBytes(encoded)
		if err != nil {
			t.Fatalf("parse key bytes(%v): %v", a.Kind(), err)
		}
		if n != len(encoded) {
			t.Fatalf("consumed %d bytes, want %d", n, len(encoded))
		}
		if !bytes.Equal(decoded.KeyBytes(), encoded) {
			t.Fatalf("key bytes round trip mismatch for kind %v", a.Kind())
		}
	}
}

func TestAttributeKeyBytesAreUnambiguousWhenConcatenated(t *testing.T) {
	// Index keys place fixed-width fields after an attribute, so KeyBytes
	// must be parseable even with trailing bytes after it.
	a := Name("short")
	encoded := append(a.KeyBytes(), []byte{0xAA, 0xBB, 0xCC}...)
	decoded, n, err := ParseKeyBytes(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if decoded.NameValue() != "short" {
		t.Fatalf("decoded name = %q", decoded.NameValue())
	}
	if !bytes.Equal(encoded[n:], []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("expected trailing bytes to survive parse")
	}
}
