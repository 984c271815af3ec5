package fact

import (
	"encoding/binary"

	"github.com/dialog-db/dialog/value"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// Fact is one asserted triple, with an optional Cause linking it back to
// the record it superseded. Field names follow spec.md's own GLOSSARY: The
// is the attribute, Of is the entity it's asserted about, Is the value.
type Fact struct {
	The   value.Attribute
	Of    Entity
	Is    value.Value
	Cause *value.Hash
}

// Revision is the content digest of an assertion record: it's what a
// Cause field points at, and what diff/merge (the merge package) reason
// about when two replicas disagree on the current value of (The, Of).
func (f Fact) Revision() value.Hash {
	return blake3.Sum256(encodeRecord(f))
}

// ErrMalformedRecord indicates stored bytes didn't decode as a fact record.
var ErrMalformedRecord = errors.New("fact: malformed record")

// encodeRecord produces the canonical binary form stored as the leaf value
// in all three indexes:
//
//	[of:32][the_len:varint][the canonical bytes][is encoding]
//	[has_cause:u8][cause:32 if has_cause]
func encodeRecord(f Fact) []byte {
	theBytes := f.The.CanonicalBytes()
	isBytes := f.Is.Encode()

	buf := make([]byte, 0, 32+binary.MaxVarintLen64+len(theBytes)+len(isBytes)+33)
	buf = append(buf, f.Of[:]...)
	buf = appendUvarint(buf, uint64(len(theBytes)))
	buf = append(buf, theBytes...)
	buf = append(buf, isBytes...)
	if f.Cause != nil {
		buf = append(buf, 1)
		buf = append(buf, f.Cause[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func decodeRecord(buf []byte) (Fact, error) {
	if len(buf) < 33 {
		return Fact{}, errors.Wrap(ErrMalformedRecord, "truncated header")
	}
	var f Fact
	copy(f.Of[:], buf[:32])
	rest := buf[32:]

	theLen, k := binary.Uvarint(rest)
	if k <= 0 {
		return Fact{}, errors.Wrap(ErrMalformedRecord, "malformed attribute length")
	}
	rest = rest[k:]
	if uint64(len(rest)) < theLen {
		return Fact{}, errors.Wrap(ErrMalformedRecord, "truncated attribute")
	}
	the, err := value.ParseCanonicalBytes(rest[:theLen])
	if err != nil {
		return Fact{}, errors.Wrap(err, "fact: attribute")
	}
	f.The = the
	rest = rest[theLen:]

	is, consumed, err := decodeValuePrefix(rest)
	if err != nil {
		return Fact{}, err
	}
	f.Is = is
	rest = rest[consumed:]

	if len(rest) < 1 {
		return Fact{}, errors.Wrap(ErrMalformedRecord, "truncated cause flag")
	}
	if rest[0] == 1 {
		if len(rest) < 33 {
			return Fact{}, errors.Wrap(ErrMalformedRecord, "truncated cause")
		}
		var cause value.Hash
		copy(cause[:], rest[1:33])
		f.Cause = &cause
	}
	return f, nil
}

// decodeValuePrefix decodes a value.Value from the front of buf, returning
// how many bytes it consumed. value.Decode doesn't report its own length
// because it's normally used on a buffer holding exactly one value; here
// the value is followed by more fields, so this recomputes the length from
// the same tag/width rules.
func decodeValuePrefix(buf []byte) (value.Value, int, error) {
	if len(buf) == 0 {
		return value.Value{}, 0, errors.Wrap(ErrMalformedRecord, "empty value")
	}
	switch value.Kind(buf[0]) {
	case value.Null:
		v, err := value.Decode(buf[:1])
		return v, 1, err
	case value.Boolean:
		if len(buf) < 2 {
			return value.Value{}, 0, errors.Wrap(ErrMalformedRecord, "boolean value")
		}
		v, err := value.Decode(buf[:2])
		return v, 2, err
	case value.SignedInt, value.Float:
		if len(buf) < 9 {
			return value.Value{}, 0, errors.Wrap(ErrMalformedRecord, "fixed-width value")
		}
		v, err := value.Decode(buf[:9])
		return v, 9, err
	case value.Entity:
		if len(buf) < 33 {
			return value.Value{}, 0, errors.Wrap(ErrMalformedRecord, "entity value")
		}
		v, err := value.Decode(buf[:33])
		return v, 33, err
	case value.String, value.Bytes:
		n, k := binary.Uvarint(buf[1:])
		if k <= 0 {
			return value.Value{}, 0, errors.Wrap(ErrMalformedRecord, "malformed value length")
		}
		total := 1 + k + int(n)
		if total > len(buf) {
			return value.Value{}, 0, errors.Wrap(ErrMalformedRecord, "truncated value")
		}
		v, err := value.Decode(buf[:total])
		return v, total, err
	default:
		return value.Value{}, 0, value.ErrUnsupportedValue
	}
}
