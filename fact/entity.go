// Package fact implements the artifacts engine: the three synchronized
// indexes (EAV, AEV, VAE) over entity/attribute/value triples, and the
// assert/retract operations that keep them consistent (spec.md §4.C).
package fact

import (
	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Entity is an opaque 32-byte identifier. Unlike a value, an entity's
// identity is not derived from content: two entities with identical facts
// attached are still distinct unless they share the same Entity bytes.
type Entity [32]byte

// NewEntity mints a fresh, effectively-unique entity identifier. The
// randomness comes from a v4 UUID (google/uuid); it's stretched to 32
// bytes with Blake3 rather than zero-padded, so the UUID's 122 random bits
// are spread across every byte of the id instead of being followed by
// zeros. The id's entropy is still that of the UUID.
func NewEntity() Entity {
	id := uuid.New()
	return Entity(blake3.Sum256(id[:]))
}

func (e Entity) Bytes() []byte { return e[:] }
