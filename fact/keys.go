package fact

import "github.com/dialog-db/dialog/value"

// eavKey orders by (entity, attribute, value-hash): "everything about this
// entity". the is the attribute, of is the entity — spec.md's GLOSSARY
// naming, not the more obvious English reading of the two words.
func eavKey(the value.Attribute, of Entity, isHash value.Hash) []byte {
	key := make([]byte, 0, 32+32+32)
	key = append(key, of[:]...)
	key = append(key, the.KeyBytes()...)
	key = append(key, isHash[:]...)
	return key
}

// aevKey orders by (attribute, entity, value-hash): "every entity that has
// this attribute".
func aevKey(the value.Attribute, of Entity, isHash value.Hash) []byte {
	key := make([]byte, 0, 32+32+32)
	key = append(key, the.KeyBytes()...)
	key = append(key, of[:]...)
	key = append(key, isHash[:]...)
	return key
}

// vaeKey orders by (value-hash, attribute, entity): "every entity that
// holds this value under this attribute".
func vaeKey(the value.Attribute, of Entity, isHash value.Hash) []byte {
	key := make([]byte, 0, 32+32+32)
	key = append(key, isHash[:]...)
	key = append(key, the.KeyBytes()...)
	key = append(key, of[:]...)
	return key
}

// prefixRange computes the [lo, hi) bounds of every key beginning with
// prefix: lo is the prefix itself, hi is the prefix with its last byte
// incremented, carrying into preceding bytes as needed. A prefix of all
// 0xFF bytes has no successor, so hi is nil (unbounded above) in that case.
func prefixRange(prefix []byte) (lo, hi []byte) {
	lo = append([]byte(nil), prefix...)
	hi = append([]byte(nil), prefix...)
	for i := len(hi) - 1; i >= 0; i-- {
		if hi[i] != 0xFF {
			hi[i]++
			return lo, hi[:i+1]
		}
	}
	return lo, nil
}
