package prolly

import (
	"bytes"
	"context"
)

// ChangeKind distinguishes the two structural edits a diff can report.
type ChangeKind int

const (
	// Add reports a key present (or re-valued) in the new tree but not
	// matching the old one.
	Add ChangeKind = iota
	// Remove reports a key present in the old tree but absent from the new
	// one.
	Remove
)

// Change is one entry of a diff stream between two tree roots.
type Change struct {
	Kind  ChangeKind
	Key   []byte
	Value []byte
}

// Diff reports the changes needed to turn the tree at against into the
// tree at root: Add for keys in root that are missing from, or re-valued
// relative to, against; Remove for keys in against missing from root.
//
// Equal-hash subtrees are skipped without being read, so for the common
// case — one or a few edits on an otherwise-shared history — cost is
// proportional to the differing region, not to tree size (spec.md §4.B
// "structural diff"). Where two subtrees have diverged enough that their
// branch boundaries no longer line up (a rare case in practice, since the
// chunking rule keeps untouched regions byte-identical), Diff falls back
// to materializing and merge-comparing the remaining entries on both
// sides; this keeps the result correct even under heavy restructuring, at
// the cost of the short-circuit for that subtree.
func (t *Tree) Diff(ctx context.Context, root, against Hash) ([]Change, error) {
	return t.diffNodes(ctx, root, against)
}

func (t *Tree) diffNodes(ctx context.Context, a, b Hash) ([]Change, error) {
	if a == b {
		return nil, nil
	}
	nodeA, err := t.loadNode(ctx, a)
	if err != nil {
		return nil, err
	}
	nodeB, err := t.loadNode(ctx, b)
	if err != nil {
		return nil, err
	}

	if nodeA.Leaf && nodeB.Leaf {
		return mergeLeafEntries(nodeA.Leaves, nodeB.Leaves, t.cmp()), nil
	}
	if nodeA.Leaf != nodeB.Leaf {
		entriesA, err := t.collectEntries(ctx, a)
		if err != nil {
			return nil, err
		}
		entriesB, err := t.collectEntries(ctx, b)
		if err != nil {
			return nil, err
		}
		return mergeLeafEntries(entriesA, entriesB, t.cmp()), nil
	}

	cmp := t.cmp()
	var changes []Change
	i, j := 0, 0
	for i < len(nodeA.Branches) && j < len(nodeB.Branches) {
		ca := nodeA.Branches[i]
		cb := nodeB.Branches[j]
		boundaryCmp := cmp(ca.BoundaryKey, cb.BoundaryKey)
		switch {
		case boundaryCmp == 0 && ca.Child == cb.Child:
			i++
			j++
		case boundaryCmp == 0:
			sub, err := t.diffNodes(ctx, ca.Child, cb.Child)
			if err != nil {
				return nil, err
			}
			changes = append(changes, sub...)
			i++
			j++
		default:
			// Boundaries no longer line up: materialize the remainder of
			// both sibling lists once and merge them directly.
			entriesA, err := t.flattenBranches(ctx, nodeA.Branches[i:])
			if err != nil {
				return nil, err
			}
			entriesB, err := t.flattenBranches(ctx, nodeB.Branches[j:])
			if err != nil {
				return nil, err
			}
			changes = append(changes, mergeLeafEntries(entriesA, entriesB, cmp)...)
			return changes, nil
		}
	}
	for ; i < len(nodeA.Branches); i++ {
		entries, err := t.collectEntries(ctx, nodeA.Branches[i].Child)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			changes = append(changes, Change{Kind: Add, Key: e.Key, Value: e.Value})
		}
	}
	for ; j < len(nodeB.Branches); j++ {
		entries, err := t.collectEntries(ctx, nodeB.Branches[j].Child)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			changes = append(changes, Change{Kind: Remove, Key: e.Key, Value: e.Value})
		}
	}
	return changes, nil
}

func (t *Tree) flattenBranches(ctx context.Context, branches []BranchEntry) ([]LeafEntry, error) {
	var out []LeafEntry
	for _, b := range branches {
		entries, err := t.collectEntries(ctx, b.Child)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// mergeLeafEntries two-pointer merges sorted a (new) and b (old) entry
// lists into a Change stream: matching keys with differing values yield
// Add (the new value wins), a-only keys yield Add, b-only keys yield
// Remove.
func mergeLeafEntries(a, b []LeafEntry, cmp Comparator) []Change {
	var changes []Change
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		c := cmp(a[i].Key, b[j].Key)
		switch {
		case c == 0:
			if !bytes.Equal(a[i].Value, b[j].Value) {
				changes = append(changes, Change{Kind: Add, Key: a[i].Key, Value: a[i].Value})
			}
			i++
			j++
		case c < 0:
			changes = append(changes, Change{Kind: Add, Key: a[i].Key, Value: a[i].Value})
			i++
		default:
			changes = append(changes, Change{Kind: Remove, Key: b[j].Key, Value: b[j].Value})
			j++
		}
	}
	for ; i < len(a); i++ {
		changes = append(changes, Change{Kind: Add, Key: a[i].Key, Value: a[i].Value})
	}
	for ; j < len(b); j++ {
		changes = append(changes, Change{Kind: Remove, Key: b[j].Key, Value: b[j].Value})
	}
	return changes
}
