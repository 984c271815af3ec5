package value

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// AttrKind discriminates the attribute ("the") variants.
type AttrKind byte

const (
	// AttrName identifies a UTF-8 named attribute, e.g. "profile/handle".
	AttrName AttrKind = iota
	// AttrReference identifies a set-membership relation keyed by a digest.
	AttrReference
	// AttrPosition identifies an ordered-relation fractional index.
	AttrPosition
)

// Tag bytes used when an attribute's own canonical bytes must be
// self-describing (spec.md §3): 0xFE and 0xFF can never begin a valid UTF-8
// sequence, so Name, Position and Reference encodings are disjoint without
// a leading discriminator byte for the Name case.
const (
	referenceTag byte = 0xFF
	positionTag  byte = 0xFE
)

// ErrInvalidAttribute indicates a malformed attribute tag or payload.
var ErrInvalidAttribute = errors.New("malformed attribute")

// Attribute is the `the` field of a fact: a tagged byte string.
type Attribute struct {
	kind     AttrKind
	name     string
	digest   [32]byte
	position []byte
}

func Name(name string) Attribute {
	return Attribute{kind: AttrName, name: name}
}

func Reference(digest [32]byte) Attribute {
	return Attribute{kind: AttrReference, digest: digest}
}

func Position(fractionalIndex []byte) Attribute {
	return Attribute{kind: AttrPosition, position: append([]byte(nil), fractionalIndex...)}
}

func (a Attribute) Kind() AttrKind   { return a.kind }
func (a Attribute) NameValue() string { return a.name }
func (a Attribute) Digest() [32]byte  { return a.digest }
func (a Attribute) PositionBytes() []byte { return a.position }

// CanonicalBytes returns the attribute's self-tagging wire form: the raw
// UTF-8 bytes for a Name (no leading tag — disambiguated by the lead byte
// being <= 0xF7), or a leading 0xFE/0xFF tag followed by the payload for
// Position/Reference.
func (a Attribute) CanonicalBytes() []byte {
	switch a.kind {
	case AttrName:
		return []byte(a.name)
	case AttrReference:
		buf := make([]byte, 0, 33)
		buf = append(buf, referenceTag)
		return append(buf, a.digest[:]...)
	case AttrPosition:
		buf := make([]byte, 0, 1+len(a.position))
		buf = append(buf, positionTag)
		return append(buf, a.position...)
	default:
		return nil
	}
}

// ParseCanonicalBytes decodes the self-tagging form produced by
// CanonicalBytes.
func ParseCanonicalBytes(buf []byte) (Attribute, error) {
	if len(buf) == 0 {
		return Attribute{}, errors.Wrap(ErrInvalidAttribute, "empty attribute")
	}
	switch buf[0] {
	case referenceTag:
		if len(buf) != 33 {
			return Attribute{}, errors.Wrap(ErrInvalidAttribute, "reference length")
		}
		var d [32]byte
		copy(d[:], buf[1:])
		return Reference(d), nil
	case positionTag:
		return Position(buf[1:]), nil
	default:
		if buf[0] > 0xF7 {
			return Attribute{}, errors.Wrap(ErrInvalidAttribute, "invalid UTF-8 lead byte")
		}
		return Name(string(buf)), nil
	}
}

// the_prefix tags used for index-key framing (spec.md §4.C). Distinct from
// the canonical self-tagging form: index keys need an explicit, unambiguous
// length for every variant because an attribute is followed by fixed-width
// fields (entity, value hash) in all three indexes.
const (
	keyPrefixName      byte = 0x00
	keyPrefixPosition  byte = 0xFE
	keyPrefixReference byte = 0xFF
)

// KeyBytes returns the length-prefixed form of the attribute used inside
// EAV/AEV/VAE index keys, so a variable-length Name or Position attribute
// can be parsed back out of a key unambiguously.
func (a Attribute) KeyBytes() []byte {
	switch a.kind {
	case AttrName:
		return appendLenPrefixed([]byte{keyPrefixName}, []byte(a.name))
	case AttrPosition:
		return appendLenPrefixed([]byte{keyPrefixPosition}, a.position)
	case AttrReference:
		buf := make([]byte, 0, 33)
		buf = append(buf, keyPrefixReference)
		return append(buf, a.digest[:]...)
	default:
		return nil
	}
}

func appendLenPrefixed(prefix, payload []byte) []byte {
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(payload)))
	out := make([]byte, 0, len(prefix)+n+len(payload))
	out = append(out, prefix...)
	out = append(out, lenBuf[:n]...)
	out = append(out, payload...)
	return out
}

// ParseKeyBytes decodes the form produced by KeyBytes, returning the
// attribute and the number of bytes consumed.
func ParseKeyBytes(buf []byte) (Attribute, int, error) {
	if len(buf) == 0 {
		return Attribute{}, 0, errors.Wrap(ErrInvalidAttribute, "empty key")
	}
	switch buf[0] {
	case keyPrefixReference:
		if len(buf) < 33 {
			return Attribute{}, 0, errors.Wrap(ErrInvalidAttribute, "reference length")
		}
		var d [32]byte
		copy(d[:], buf[1:33])
		return Reference(d), 33, nil
	case keyPrefixName, keyPrefixPosition:
		n, k := binary.Uvarint(buf[1:])
		if k <= 0 {
			return Attribute{}, 0, errors.Wrap(ErrInvalidAttribute, "malformed length prefix")
		}
		start := 1 + k
		end := start + int(n)
		if end > len(buf) {
			return Attribute{}, 0, errors.Wrap(ErrInvalidAttribute, "truncated payload")
		}
		payload := buf[start:end]
		if buf[0] == keyPrefixName {
			return Name(string(payload)), end, nil
		}
		return Position(payload), end, nil
	default:
		return Attribute{}, 0, errors.Wrap(ErrInvalidAttribute, "unknown prefix")
	}
}
