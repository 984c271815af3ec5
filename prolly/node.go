// Package prolly implements the probabilistically balanced, content-
// addressed ordered map described in spec.md §4.B: a prolly tree. Its
// structure depends only on its key-set, never on insertion order, which
// gives equal trees equal root hashes and makes structural diff cheap.
//
// The tree never interprets keys beyond lexicographic byte comparison (or a
// caller-supplied Comparator); EAV/AEV/VAE all share this one implementation
// (spec.md §9 "Multiple tree backends share code").
package prolly

import (
	"encoding/binary"

	"github.com/dialog-db/dialog/value"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// Hash is a 32-byte content digest, shared with the value package's hash
// type so a fact's value hash and a tree node's hash are interchangeable
// wherever spec.md's key layouts embed one inside the other.
type Hash = value.Hash

const (
	kindSegment byte = 0 // leaf
	kindBranch  byte = 1
)

// LeafEntry is an opaque (key, value) pair held by a segment (leaf) node.
type LeafEntry struct {
	Key   []byte
	Value []byte
}

// BranchEntry is a (boundary_key, child_hash) pair held by a branch node.
// BoundaryKey is the last key in the subtree rooted at Child.
type BranchEntry struct {
	BoundaryKey []byte
	Child       Hash
}

// node is the in-memory form of either a segment or a branch. Exactly one
// of Leaves/Branches is populated, selected by Leaf.
type node struct {
	Level    int
	Leaf     bool
	Leaves   []LeafEntry
	Branches []BranchEntry
}

// ErrBlobMissing indicates a referenced child hash isn't in the backing
// store: either the store is corrupt or this is a partial replica.
var ErrBlobMissing = errors.New("prolly: blob missing")

// ErrDecode indicates stored bytes didn't parse as a node.
var ErrDecode = errors.New("prolly: decode")

// encode produces the canonical node encoding from spec.md §4.B:
//
//	[level:u8][kind:u8][entry_count:varint]
//	then per entry: length-prefixed key, and either a length-prefixed value
//	(leaf) or a 32-byte child hash (branch).
func (n *node) encode() []byte {
	count := len(n.Leaves)
	if !n.Leaf {
		count = len(n.Branches)
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, byte(n.Level))
	if n.Leaf {
		buf = append(buf, kindSegment)
	} else {
		buf = append(buf, kindBranch)
	}
	buf = appendUvarint(buf, uint64(count))

	if n.Leaf {
		for _, e := range n.Leaves {
			buf = appendLenPrefixed(buf, e.Key)
			buf = appendLenPrefixed(buf, e.Value)
		}
	} else {
		for _, e := range n.Branches {
			buf = appendLenPrefixed(buf, e.BoundaryKey)
			buf = append(buf, e.Child[:]...)
		}
	}
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendLenPrefixed(buf, payload []byte) []byte {
	buf = appendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

// decodeNode parses the canonical encoding produced by encode.
func decodeNode(buf []byte) (*node, error) {
	if len(buf) < 2 {
		return nil, errors.Wrap(ErrDecode, "truncated header")
	}
	n := &node{Level: int(buf[0])}
	kind := buf[1]
	rest := buf[2:]

	count, k := binary.Uvarint(rest)
	if k <= 0 {
		return nil, errors.Wrap(ErrDecode, "malformed entry count")
	}
	rest = rest[k:]

	switch kind {
	case kindSegment:
		n.Leaf = true
		n.Leaves = make([]LeafEntry, 0, count)
		for i := uint64(0); i < count; i++ {
			key, tail, err := readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			val, tail2, err := readLenPrefixed(tail)
			if err != nil {
				return nil, err
			}
			n.Leaves = append(n.Leaves, LeafEntry{Key: key, Value: val})
			rest = tail2
		}
	case kindBranch:
		n.Leaf = false
		n.Branches = make([]BranchEntry, 0, count)
		for i := uint64(0); i < count; i++ {
			key, tail, err := readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			if len(tail) < 32 {
				return nil, errors.Wrap(ErrDecode, "truncated child hash")
			}
			var h Hash
			copy(h[:], tail[:32])
			n.Branches = append(n.Branches, BranchEntry{BoundaryKey: key, Child: h})
			rest = tail[32:]
		}
	default:
		return nil, errors.Wrap(ErrDecode, "unknown node kind")
	}
	return n, nil
}

func readLenPrefixed(buf []byte) (payload []byte, rest []byte, err error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 {
		return nil, nil, errors.Wrap(ErrDecode, "malformed length prefix")
	}
	buf = buf[k:]
	if uint64(len(buf)) < n {
		return nil, nil, errors.Wrap(ErrDecode, "truncated payload")
	}
	return buf[:n], buf[n:], nil
}

// hash computes the node's content digest: Blake3 of its canonical encoding.
func (n *node) hash() Hash {
	return blake3.Sum256(n.encode())
}

// emptyLeaf is the canonical empty node: a level-0 segment with zero
// entries. Its hash is the root of an empty tree (spec.md §8 scenario 1).
var emptyLeaf = &node{Level: 0, Leaf: true}

// EmptyRoot is the hash of the canonical empty tree.
func EmptyRoot() Hash {
	return emptyLeaf.hash()
}
