// Package value implements the tagged scalar type that backs the `is` field
// of a fact, and the tagged attribute type that backs the `the` field.
//
// All upper-layer bindings funnel through the Value sum type instead of
// sniffing Go's dynamic type at runtime (see design notes in SPEC_FULL.md
// §3.2): every value carries an explicit one-byte type tag, and its hash is
// the Blake3 digest of its canonical encoding.
package value

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// Kind discriminates the recognized value variants. The zero value is Null.
type Kind byte

const (
	Null Kind = iota
	Boolean
	SignedInt
	Float
	String
	Bytes
	Entity
)

// HashSize is the width, in bytes, of a content digest.
const HashSize = 32

// Hash is a 32-byte Blake3 digest.
type Hash [HashSize]byte

// ErrUnsupportedValue is returned when a Kind byte does not name a
// recognized variant, or a field doesn't match the shape its Kind requires.
var ErrUnsupportedValue = errors.New("unsupported value type")

// Value is a tagged scalar: exactly one of its fields is meaningful,
// selected by Kind.
type Value struct {
	kind  Kind
	boolV bool
	intV  int64
	fltV  float64
	strV  string
	bytesV []byte
	entV  [32]byte
}

func OfNull() Value                 { return Value{kind: Null} }
func OfBool(b bool) Value           { return Value{kind: Boolean, boolV: b} }
func OfInt(i int64) Value           { return Value{kind: SignedInt, intV: i} }
func OfFloat(f float64) Value       { return Value{kind: Float, fltV: f} }
func OfString(s string) Value       { return Value{kind: String, strV: s} }
func OfBytes(b []byte) Value        { return Value{kind: Bytes, bytesV: append([]byte(nil), b...)} }
func OfEntity(e [32]byte) Value     { return Value{kind: Entity, entV: e} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Bool() bool { return v.boolV }
func (v Value) Int() int64 { return v.intV }
func (v Value) Float() float64 { return v.fltV }
func (v Value) Str() string { return v.strV }
func (v Value) Bytes() []byte { return v.bytesV }
func (v Value) Entity() [32]byte { return v.entV }

// Encode produces the canonical `[type:u8][payload]` wire form described in
// spec.md §6 "Value encoding".
func (v Value) Encode() []byte {
	switch v.kind {
	case Null:
		return []byte{byte(Null)}
	case Boolean:
		b := byte(0)
		if v.boolV {
			b = 1
		}
		return []byte{byte(Boolean), b}
	case SignedInt:
		buf := make([]byte, 9)
		buf[0] = byte(SignedInt)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.intV))
		return buf
	case Float:
		buf := make([]byte, 9)
		buf[0] = byte(Float)
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.fltV))
		return buf
	case String:
		return encodeLenPrefixed(byte(String), []byte(v.strV))
	case Bytes:
		return encodeLenPrefixed(byte(Bytes), v.bytesV)
	case Entity:
		buf := make([]byte, 33)
		buf[0] = byte(Entity)
		copy(buf[1:], v.entV[:])
		return buf
	default:
		return nil
	}
}

func encodeLenPrefixed(tag byte, payload []byte) []byte {
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(payload)))
	out := make([]byte, 0, 1+n+len(payload))
	out = append(out, tag)
	out = append(out, lenBuf[:n]...)
	out = append(out, payload...)
	return out
}

// Decode parses the canonical encoding produced by Encode.
func Decode(buf []byte) (Value, error) {
	if len(buf) == 0 {
		return Value{}, errors.Wrap(ErrUnsupportedValue, "empty buffer")
	}
	switch Kind(buf[0]) {
	case Null:
		return OfNull(), nil
	case Boolean:
		if len(buf) != 2 {
			return Value{}, errors.Wrap(ErrUnsupportedValue, "boolean payload")
		}
		return OfBool(buf[1] != 0), nil
	case SignedInt:
		if len(buf) != 9 {
			return Value{}, errors.Wrap(ErrUnsupportedValue, "int payload")
		}
		return OfInt(int64(binary.LittleEndian.Uint64(buf[1:]))), nil
	case Float:
		if len(buf) != 9 {
			return Value{}, errors.Wrap(ErrUnsupportedValue, "float payload")
		}
		return OfFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf[1:]))), nil
	case String:
		payload, err := decodeLenPrefixed(buf[1:])
		if err != nil {
			return Value{}, err
		}
		return OfString(string(payload)), nil
	case Bytes:
		payload, err := decodeLenPrefixed(buf[1:])
		if err != nil {
			return Value{}, err
		}
		return OfBytes(payload), nil
	case Entity:
		if len(buf) != 33 {
			return Value{}, errors.Wrap(ErrUnsupportedValue, "entity payload")
		}
		var e [32]byte
		copy(e[:], buf[1:])
		return OfEntity(e), nil
	default:
		return Value{}, ErrUnsupportedValue
	}
}

func decodeLenPrefixed(buf []byte) ([]byte, error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 {
		return nil, errors.Wrap(ErrUnsupportedValue, "malformed length prefix")
	}
	rest := buf[k:]
	if uint64(len(rest)) < n {
		return nil, errors.Wrap(ErrUnsupportedValue, "truncated payload")
	}
	return rest[:n], nil
}

// Hash returns the Blake3 digest of the value's canonical encoding. Index
// keys carry only this hash, with no separate type-tag byte (the tag is
// covered by the digest); the full encoding is kept inside the fact record
// stored as each index entry's value, not as a separate blob.
func (v Value) Hash() Hash {
	return blake3.Sum256(v.Encode())
}
