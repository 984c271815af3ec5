package prolly

import (
	"math/bits"

	"lukechampine.com/blake3"
)

// DefaultThreshold targets an average fanout of 2^DefaultThreshold = 32
// entries per node, inside the 16-64 range spec.md §4.B calls out.
const DefaultThreshold = 5

// isBoundary reports whether an entry's chunk hash ends a run: its trailing
// zero-bit count meets the level's threshold. This is the sole source of
// tree shape, so two stores holding the same key-set always produce
// byte-identical trees (spec.md §8 "history independence").
func isBoundary(h Hash, threshold int) bool {
	return trailingZeroBits(h) >= threshold
}

func trailingZeroBits(h Hash) int {
	count := 0
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		count += bits.TrailingZeros8(b)
		return count
	}
	return count
}

func leafChunkHash(e LeafEntry) Hash {
	buf := make([]byte, 0, len(e.Key)+len(e.Value))
	buf = append(buf, e.Key...)
	buf = append(buf, e.Value...)
	return blake3.Sum256(buf)
}

func branchChunkHash(e BranchEntry) Hash {
	return blake3.Sum256(e.BoundaryKey)
}
