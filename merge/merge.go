// Package merge implements the differential-and-integrate algorithm that
// reconciles two replicas of a prolly tree against a shared checkpoint
// (spec.md §4.D). It never mutates a tree directly: merging is itself just
// two diffs and a sequence of inserts/deletes applied to the checkpoint.
package merge

import (
	"bytes"
	"context"

	"github.com/dialog-db/dialog/prolly"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// Differential is the set of changes one replica made since a checkpoint:
// diff(root, checkpoint) in prolly's terms.
type Differential []prolly.Change

// Diff computes the Differential that turns checkpoint into root.
func Diff(ctx context.Context, tree *prolly.Tree, root, checkpoint prolly.Hash) (Differential, error) {
	changes, err := tree.Diff(ctx, root, checkpoint)
	if err != nil {
		return nil, err
	}
	return Differential(changes), nil
}

// Conflict records a key both replicas changed differently since the
// checkpoint, and which side's value the merge kept.
type Conflict struct {
	Key        []byte
	LocalValue []byte
	RemoteKept bool
}

// Merge reconciles local and remote against their shared checkpoint,
// returning the merged root. Changes unique to one side apply cleanly.
// Changes both sides made to the same key are resolved deterministically:
// an edit beats a delete, and two competing edits are broken by keeping
// whichever candidate value's Blake3 hash sorts greater — an arbitrary but
// total and order-independent rule, so every replica that sees both sides
// of a conflict resolves it the same way (spec.md §4.D "commutative up to
// tie-break").
func Merge(ctx context.Context, tree *prolly.Tree, local, remote, checkpoint prolly.Hash) (prolly.Hash, []Conflict, error) {
	localDiff, err := Diff(ctx, tree, local, checkpoint)
	if err != nil {
		return prolly.Hash{}, nil, errors.Wrap(err, "merge: diff local")
	}
	remoteDiff, err := Diff(ctx, tree, remote, checkpoint)
	if err != nil {
		return prolly.Hash{}, nil, errors.Wrap(err, "merge: diff remote")
	}

	localByKey := indexByKey(localDiff)
	remoteByKey := indexByKey(remoteDiff)

	type resolved struct {
		change   prolly.Change
		conflict *Conflict
	}
	var plan []resolved

	for key, lc := range localByKey {
		rc, inBoth := remoteByKey[key]
		if !inBoth {
			plan = append(plan, resolved{change: lc})
			continue
		}
		if lc.Kind == rc.Kind && bytes.Equal(lc.Value, rc.Value) {
			plan = append(plan, resolved{change: lc})
			continue
		}
		winner, conflict := resolve(lc, rc)
		plan = append(plan, resolved{change: winner, conflict: conflict})
	}
	for key, rc := range remoteByKey {
		if _, inLocal := localByKey[key]; inLocal {
			continue
		}
		plan = append(plan, resolved{change: rc})
	}

	root := checkpoint
	var conflicts []Conflict
	for _, r := range plan {
		var err error
		switch r.change.Kind {
		case prolly.Add:
			root, err = tree.Insert(ctx, root, r.change.Key, r.change.Value)
		case prolly.Remove:
			root, err = tree.Delete(ctx, root, r.change.Key)
		}
		if err != nil {
			return prolly.Hash{}, nil, err
		}
		if r.conflict != nil {
			conflicts = append(conflicts, *r.conflict)
		}
	}
	return root, conflicts, nil
}

func indexByKey(d Differential) map[string]prolly.Change {
	out := make(map[string]prolly.Change, len(d))
	for _, c := range d {
		out[string(c.Key)] = c
	}
	return out
}

// resolve picks the winning change between two conflicting edits of the
// same key and describes the tie-break for observability.
func resolve(local, remote prolly.Change) (prolly.Change, *Conflict) {
	if local.Kind == prolly.Add && remote.Kind == prolly.Remove {
		return local, &Conflict{Key: local.Key, LocalValue: local.Value, RemoteKept: false}
	}
	if remote.Kind == prolly.Add && local.Kind == prolly.Remove {
		return remote, &Conflict{Key: remote.Key, LocalValue: local.Value, RemoteKept: true}
	}
	// Both sides Add a different value (or both Remove, which can't reach
	// here since identical Removes are filtered out above as non-conflicts
	// — a same-key double-remove has equal Kind and the same checkpoint
	// Value on both sides).
	localHash := blake3.Sum256(local.Value)
	remoteHash := blake3.Sum256(remote.Value)
	if bytes.Compare(remoteHash[:], localHash[:]) > 0 {
		return remote, &Conflict{Key: remote.Key, LocalValue: local.Value, RemoteKept: true}
	}
	return local, &Conflict{Key: local.Key, LocalValue: local.Value, RemoteKept: false}
}
