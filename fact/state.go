package fact

import (
	"github.com/dialog-db/dialog/value"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// ErrMalformedState indicates a stored or fetched state blob wasn't
// exactly three concatenated index roots.
var ErrMalformedState = errors.New("fact: malformed state blob")

// EncodeRoots serializes three index roots into the blob published under
// the revision they hash to (see RevisionOf). Open, Publish, and the sync
// client all read/write this exact format, so a state blob's key is
// always the Revision() of the engine it represents.
func EncodeRoots(eav, aev, vae value.Hash) []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, eav[:]...)
	buf = append(buf, aev[:]...)
	buf = append(buf, vae[:]...)
	return buf
}

// DecodeRoots is EncodeRoots's inverse.
func DecodeRoots(buf []byte) (eav, aev, vae value.Hash, err error) {
	if len(buf) != 96 {
		return value.Hash{}, value.Hash{}, value.Hash{}, ErrMalformedState
	}
	copy(eav[:], buf[0:32])
	copy(aev[:], buf[32:64])
	copy(vae[:], buf[64:96])
	return eav, aev, vae, nil
}

// RevisionOf is the digest a state blob is published under; it matches
// Engine.Revision() for the same three roots by construction.
func RevisionOf(eav, aev, vae value.Hash) value.Hash {
	return blake3.Sum256(EncodeRoots(eav, aev, vae))
}
