package prolly

import "context"

// Stats summarizes the shape of a tree rooted at a given hash: how many
// entries it holds, how many nodes make up its encoding, and how many
// levels it has, counting the leaf level (a tree that is a single segment
// has Depth 1).
//
// These numbers come from a single traversal of the tree (the same one
// Count used to do via collectEntries), not from per-node cached
// aggregates. A cached running total would have to be threaded through
// Insert/Delete's full-rebuild path and kept byte-identical across
// equivalent key-sets for history independence to keep holding — the
// traversal is the honest, unconditionally-correct way to report this,
// and in practice it's the same cost as the Insert/Delete path already
// pays to rebuild a tree. See DESIGN.md.
type Stats struct {
	EntryCount int
	NodeCount  int
	Depth      int
}

// Stats computes Stats for the tree rooted at root.
func (t *Tree) Stats(ctx context.Context, root Hash) (Stats, error) {
	n, err := t.loadNode(ctx, root)
	if err != nil {
		return Stats{}, err
	}
	return t.statsOf(ctx, n)
}

func (t *Tree) statsOf(ctx context.Context, n *node) (Stats, error) {
	if n.Leaf {
		return Stats{EntryCount: len(n.Leaves), NodeCount: 1, Depth: 1}, nil
	}

	s := Stats{NodeCount: 1}
	for _, b := range n.Branches {
		child, err := t.loadNode(ctx, b.Child)
		if err != nil {
			return Stats{}, err
		}
		childStats, err := t.statsOf(ctx, child)
		if err != nil {
			return Stats{}, err
		}
		s.EntryCount += childStats.EntryCount
		s.NodeCount += childStats.NodeCount
		if childStats.Depth+1 > s.Depth {
			s.Depth = childStats.Depth + 1
		}
	}
	return s, nil
}
