package prolly

import (
	"bytes"
	"context"
	"sort"

	"github.com/dialog-db/dialog/blob"
)

// Comparator orders two keys, mirroring bytes.Compare's contract. The tree
// is parameterized over it so callers can impose a domain-specific order
// without the tree ever inspecting key contents itself.
type Comparator func(a, b []byte) int

// Tree binds a blob store and a key ordering. A Tree value carries no
// mutable state itself: every operation takes an explicit root Hash and
// returns the Hash of the resulting tree, so the same Tree can serve many
// independent roots (the sync client merges EAV, AEV and VAE through one
// Tree).
type Tree struct {
	Store     blob.Store
	Cmp       Comparator
	Threshold int
}

// New builds a Tree over store using natural byte-lexicographic key order
// and the default chunking threshold.
func New(store blob.Store) *Tree {
	return &Tree{Store: store, Cmp: bytes.Compare, Threshold: DefaultThreshold}
}

func (t *Tree) cmp() Comparator {
	if t.Cmp != nil {
		return t.Cmp
	}
	return bytes.Compare
}

func (t *Tree) threshold() int {
	if t.Threshold > 0 {
		return t.Threshold
	}
	return DefaultThreshold
}

func (t *Tree) loadNode(ctx context.Context, h Hash) (*node, error) {
	if h == emptyLeaf.hash() {
		return emptyLeaf, nil
	}
	raw, err := t.Store.Get(ctx, h[:])
	if err != nil {
		if err == blob.ErrNotFound {
			return nil, ErrBlobMissing
		}
		return nil, wrapTree(err)
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Tree) writeNode(ctx context.Context, n *node) (Hash, error) {
	h := n.hash()
	if h == emptyLeaf.hash() {
		return h, nil
	}
	if err := t.Store.Set(ctx, h[:], n.encode()); err != nil {
		return Hash{}, wrapTree(err)
	}
	return h, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (t *Tree) Get(ctx context.Context, root Hash, key []byte) ([]byte, error) {
	cmp := t.cmp()
	h := root
	for {
		n, err := t.loadNode(ctx, h)
		if err != nil {
			return nil, err
		}
		if n.Leaf {
			for _, e := range n.Leaves {
				if cmp(e.Key, key) == 0 {
					return e.Value, nil
				}
			}
			return nil, ErrNotFound
		}
		idx := sort.Search(len(n.Branches), func(i int) bool {
			return cmp(n.Branches[i].BoundaryKey, key) >= 0
		})
		if idx == len(n.Branches) {
			return nil, ErrNotFound
		}
		h = n.Branches[idx].Child
	}
}

// collectEntries returns every leaf entry under root, in key order.
func (t *Tree) collectEntries(ctx context.Context, root Hash) ([]LeafEntry, error) {
	n, err := t.loadNode(ctx, root)
	if err != nil {
		return nil, err
	}
	if n.Leaf {
		out := make([]LeafEntry, len(n.Leaves))
		copy(out, n.Leaves)
		return out, nil
	}
	var out []LeafEntry
	for _, b := range n.Branches {
		sub, err := t.collectEntries(ctx, b.Child)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// Insert returns the root of a tree equal to root with key bound to value,
// replacing any prior binding.
//
// This rebuilds the full sorted entry sequence and re-chunks it from
// scratch rather than patching a single leaf and propagating upward: the
// chunking rule (chunk.go) depends only on this sequence, so the rebuilt
// tree is byte-identical to one built by any other history of inserts
// reaching the same key-set. Unaffected subtrees re-encode to the same
// bytes and so the same hash, and blob.Store.Set is idempotent on an
// existing key, so the cost of a full rebuild is one store round trip per
// *distinct* node, not per key. The tradeoff is O(n) work per write instead
// of O(log n); see DESIGN.md for why that's acceptable here.
func (t *Tree) Insert(ctx context.Context, root Hash, key, value []byte) (Hash, error) {
	entries, err := t.collectEntries(ctx, root)
	if err != nil {
		return Hash{}, err
	}
	cmp := t.cmp()
	idx := sort.Search(len(entries), func(i int) bool { return cmp(entries[i].Key, key) >= 0 })
	if idx < len(entries) && cmp(entries[idx].Key, key) == 0 {
		entries[idx].Value = value
	} else {
		entries = append(entries, LeafEntry{})
		copy(entries[idx+1:], entries[idx:])
		entries[idx] = LeafEntry{Key: key, Value: value}
	}
	return t.buildTree(ctx, entries)
}

// Delete returns the root of a tree equal to root with key unbound, if
// present. Deleting an absent key is a no-op that returns root unchanged.
func (t *Tree) Delete(ctx context.Context, root Hash, key []byte) (Hash, error) {
	entries, err := t.collectEntries(ctx, root)
	if err != nil {
		return Hash{}, err
	}
	cmp := t.cmp()
	idx := sort.Search(len(entries), func(i int) bool { return cmp(entries[i].Key, key) >= 0 })
	if idx == len(entries) || cmp(entries[idx].Key, key) != 0 {
		return root, nil
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	return t.buildTree(ctx, entries)
}

// Count returns the number of entries in the tree rooted at root.
func (t *Tree) Count(ctx context.Context, root Hash) (int, error) {
	stats, err := t.Stats(ctx, root)
	if err != nil {
		return 0, err
	}
	return stats.EntryCount, nil
}

// buildTree constructs the canonical tree for a sorted, deduplicated entry
// sequence, bottom-up: it chunks leaves into segment nodes, then
// repeatedly chunks the resulting pointers into branch nodes one level up,
// until a single node remains. That single node is the root — trees with
// few entries are just one segment, with no branch wrapping at all.
func (t *Tree) buildTree(ctx context.Context, entries []LeafEntry) (Hash, error) {
	if len(entries) == 0 {
		return t.writeNode(ctx, emptyLeaf)
	}

	threshold := t.threshold()
	branches, err := chunkLeaves(ctx, t, entries, threshold)
	if err != nil {
		return Hash{}, err
	}
	if len(branches) == 1 {
		return branches[0].Child, nil
	}

	level := 1
	for {
		branches, err = chunkBranches(ctx, t, branches, level, threshold)
		if err != nil {
			return Hash{}, err
		}
		if len(branches) == 1 {
			return branches[0].Child, nil
		}
		level++
	}
}

func chunkLeaves(ctx context.Context, t *Tree, entries []LeafEntry, threshold int) ([]BranchEntry, error) {
	var out []BranchEntry
	var run []LeafEntry
	for i, e := range entries {
		run = append(run, e)
		last := i == len(entries)-1
		if last || isBoundary(leafChunkHash(e), threshold) {
			n := &node{Level: 0, Leaf: true, Leaves: run}
			h, err := t.writeNode(ctx, n)
			if err != nil {
				return nil, err
			}
			out = append(out, BranchEntry{BoundaryKey: run[len(run)-1].Key, Child: h})
			run = nil
		}
	}
	return out, nil
}

func chunkBranches(ctx context.Context, t *Tree, entries []BranchEntry, level, threshold int) ([]BranchEntry, error) {
	var out []BranchEntry
	var run []BranchEntry
	for i, e := range entries {
		run = append(run, e)
		last := i == len(entries)-1
		if last || isBoundary(branchChunkHash(e), threshold) {
			n := &node{Level: level, Leaf: false, Branches: run}
			h, err := t.writeNode(ctx, n)
			if err != nil {
				return nil, err
			}
			out = append(out, BranchEntry{BoundaryKey: run[len(run)-1].BoundaryKey, Child: h})
			run = nil
		}
	}
	return out, nil
}
