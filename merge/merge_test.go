package merge

import (
	"bytes"
	"context"
	"testing"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/prolly"
)

func buildFrom(t *testing.T, tree *prolly.Tree, root prolly.Hash, kvs map[string]string) prolly.Hash {
	t.Helper()
	ctx := context.Background()
	for k, v := range kvs {
		var err error
		root, err = tree.Insert(ctx, root, []byte(k), []byte(v))
		if err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}
	return root
}

func TestMergeCleanDisjointChanges(t *testing.T) {
	ctx := context.Background()
	tree := prolly.New(blob.NewMemoryStore())

	checkpoint := buildFrom(t, tree, prolly.EmptyRoot(), map[string]string{"a": "1", "b": "2"})
	local := buildFrom(t, tree, checkpoint, map[string]string{"c": "3"})
	remote := buildFrom(t, tree, checkpoint, map[string]string{"d": "4"})

	merged, conflicts, err := Merge(ctx, tree, local, remote, checkpoint)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}

	for key, want := range map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"} {
		got, err := tree.Get(ctx, merged, []byte(key))
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if string(got) != want {
			t.Fatalf("merged[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestMergeConflictingEditsTieBreakDeterministic(t *testing.T) {
	ctx := context.Background()
	tree := prolly.New(blob.NewMemoryStore())
	checkpoint := buildFrom(t, tree, prolly.EmptyRoot(), map[string]string{"a": "1"})

	local, err := tree.Insert(ctx, checkpoint, []byte("a"), []byte("local-value"))
	if err != nil {
		t.Fatal(err)
	}
	remote, err := tree.Insert(ctx, checkpoint, []byte("a"), []byte("remote-value"))
	if err != nil {
		t.Fatal(err)
	}

	mergedAB, conflicts, err := Merge(ctx, tree, local, remote, checkpoint)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict, got %d", len(conflicts))
	}

	mergedBA, _, err := Merge(ctx, tree, remote, local, checkpoint)
	if err != nil {
		t.Fatalf("merge reversed: %v", err)
	}

	if mergedAB != mergedBA {
		t.Fatalf("merge outcome should not depend on which side is called local vs remote")
	}
}

func TestMergeAddBeatsDelete(t *testing.T) {
	ctx := context.Background()
	tree := prolly.New(blob.NewMemoryStore())
	checkpoint := buildFrom(t, tree, prolly.EmptyRoot(), map[string]string{"a": "1"})

	local, err := tree.Delete(ctx, checkpoint, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	remote, err := tree.Insert(ctx, checkpoint, []byte("a"), []byte("edited"))
	if err != nil {
		t.Fatal(err)
	}

	merged, conflicts, err := Merge(ctx, tree, local, remote, checkpoint)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(conflicts) != 1 || !conflicts[0].RemoteKept {
		t.Fatalf("expected remote's edit to win over local's delete, got %+v", conflicts)
	}

	got, err := tree.Get(ctx, merged, []byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("edited")) {
		t.Fatalf("merged value = %q, want edited", got)
	}
}
