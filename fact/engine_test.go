package fact

import (
	"context"
	"testing"
	"time"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/value"
)

func TestAssertAndCurrent(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())

	alice := NewEntity()
	handle := value.Name("profile/handle")

	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert: %v", err)
	}

	got, ok, err := e.Current(ctx, handle, alice)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !ok || got.Str() != "alice" {
		t.Fatalf("current = %+v, %v, want alice", got, ok)
	}
}

func TestAssertSupersedesPriorValue(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())

	alice := NewEntity()
	handle := value.Name("profile/handle")

	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert 1: %v", err)
	}
	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice2"), nil); err != nil {
		t.Fatalf("assert 2: %v", err)
	}

	facts, err := e.SelectByEntity(ctx, alice)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected exactly one live fact after supersede, got %d: %+v", len(facts), facts)
	}
	if facts[0].Is.Str() != "alice2" {
		t.Fatalf("live value = %q, want alice2", facts[0].Is.Str())
	}
	if facts[0].Cause == nil {
		t.Fatalf("expected supersede to chain a cause")
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EAVCount != 1 || stats.AEVCount != 1 || stats.VAECount != 1 {
		t.Fatalf("index counts disagree: %+v", stats)
	}
	if stats.Revision != e.Revision() {
		t.Fatalf("stats.Revision = %x, want %x", stats.Revision, e.Revision())
	}
}

func TestAssertIdempotent(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	alice := NewEntity()
	handle := value.Name("profile/handle")

	rev1, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil)
	if err != nil {
		t.Fatalf("assert 1: %v", err)
	}
	rev2, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil)
	if err != nil {
		t.Fatalf("assert 2: %v", err)
	}
	if rev1 != rev2 {
		t.Fatalf("re-asserting the same triple should not change the revision")
	}
}

func TestRetract(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	alice := NewEntity()
	handle := value.Name("profile/handle")

	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert: %v", err)
	}
	if _, err := e.Retract(ctx, handle, alice, value.OfString("wrong")); err != ErrConflict {
		t.Fatalf("expected ErrConflict retracting a stale value, got %v", err)
	}
	if _, err := e.Retract(ctx, handle, alice, value.OfString("alice")); err != nil {
		t.Fatalf("retract: %v", err)
	}
	if _, ok, err := e.Current(ctx, handle, alice); err != nil || ok {
		t.Fatalf("expected no live value after retract, ok=%v err=%v", ok, err)
	}

	if _, err := e.Retract(ctx, handle, alice, value.OfString("alice")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound retracting an already-gone fact, got %v", err)
	}
}

func TestSelectByAttributeAndValue(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	handle := value.Name("profile/handle")
	other := value.Name("profile/bio")

	alice := NewEntity()
	bob := NewEntity()
	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert alice: %v", err)
	}
	if _, err := e.Assert(ctx, handle, bob, value.OfString("bob"), nil); err != nil {
		t.Fatalf("assert bob: %v", err)
	}
	if _, err := e.Assert(ctx, other, alice, value.OfString("hi"), nil); err != nil {
		t.Fatalf("assert bio: %v", err)
	}

	byAttr, err := e.SelectByAttribute(ctx, handle)
	if err != nil {
		t.Fatalf("select by attribute: %v", err)
	}
	if len(byAttr) != 2 {
		t.Fatalf("expected 2 facts for profile/handle, got %d", len(byAttr))
	}

	byValue, err := e.SelectByValue(ctx, value.OfString("bob"))
	if err != nil {
		t.Fatalf("select by value: %v", err)
	}
	if len(byValue) != 1 || byValue[0].Of != bob {
		t.Fatalf("select by value returned %+v, want bob's fact", byValue)
	}
}

func TestSelectPointLookup(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	alice := NewEntity()
	handle := value.Name("profile/handle")

	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert: %v", err)
	}

	is := value.OfString("alice")
	facts, err := e.Select(ctx, &handle, &alice, &is)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(facts) != 1 || facts[0].Is.Str() != "alice" {
		t.Fatalf("point lookup returned %+v, want alice's fact", facts)
	}

	wrong := value.OfString("not-alice")
	miss, err := e.Select(ctx, &handle, &alice, &wrong)
	if err != nil {
		t.Fatalf("select miss: %v", err)
	}
	if len(miss) != 0 {
		t.Fatalf("point lookup on a value that was never asserted returned %+v, want none", miss)
	}
}

func TestRevisionStableAcrossAssertOrder(t *testing.T) {
	ctx := context.Background()
	a := New(blob.NewMemoryStore())
	b := New(blob.NewMemoryStore())

	e1 := NewEntity()
	e2 := NewEntity()
	attr1 := value.Name("a")
	attr2 := value.Name("b")

	if _, err := a.Assert(ctx, attr1, e1, value.OfInt(1), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Assert(ctx, attr2, e2, value.OfInt(2), nil); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Assert(ctx, attr2, e2, value.OfInt(2), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Assert(ctx, attr1, e1, value.OfInt(1), nil); err != nil {
		t.Fatal(err)
	}

	if a.Revision() != b.Revision() {
		t.Fatalf("two engines asserting the same facts in different orders disagree on revision")
	}
}

func TestCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	alice := NewEntity()
	handle := value.Name("profile/handle")
	bio := value.Name("profile/bio")

	before := e.Revision()

	// The second instruction retracts a value that was never asserted, so
	// the whole batch must fail and leave the engine exactly as it was —
	// including the first instruction's assert.
	err := e.Commit(ctx, []Instruction{
		AssertOp(handle, alice, value.OfString("alice"), nil),
		RetractOp(bio, alice, value.OfString("nope")),
	})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound from the failing instruction, got %v", err)
	}
	if e.Revision() != before {
		t.Fatalf("engine revision changed despite a failed commit")
	}
	if _, ok, _ := e.Current(ctx, handle, alice); ok {
		t.Fatalf("partial commit left the first instruction's assert visible")
	}
}

func TestCommitBatchAppliesAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	alice := NewEntity()
	bob := NewEntity()
	handle := value.Name("profile/handle")

	err := e.Commit(ctx, []Instruction{
		AssertOp(handle, alice, value.OfString("alice"), nil),
		AssertOp(handle, bob, value.OfString("bob"), nil),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	facts, err := e.SelectByAttribute(ctx, handle)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected both instructions applied, got %d facts", len(facts))
	}
}

func TestOpenResolvesNamedCell(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	alice := NewEntity()
	handle := value.Name("profile/handle")

	e, err := Open(ctx, store, "alice-replica", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert: %v", err)
	}
	committed := e.Revision()

	reopened, err := Open(ctx, store, "alice-replica", nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Revision() != committed {
		t.Fatalf("reopened engine revision = %x, want %x", reopened.Revision(), committed)
	}

	got, ok, err := reopened.Current(ctx, handle, alice)
	if err != nil || !ok || got.Str() != "alice" {
		t.Fatalf("reopened engine missing committed fact: got=%+v ok=%v err=%v", got, ok, err)
	}
}

func TestOpenUnknownNameStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()

	e, err := Open(ctx, store, "never-committed", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EAVCount != 0 {
		t.Fatalf("expected a fresh cell to start empty, got %d facts", stats.EAVCount)
	}
}

func TestOpenSpecificRevisionNotFound(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	var bogus value.Hash
	bogus[0] = 0xFF

	if _, err := Open(ctx, store, "whatever", &bogus); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound opening an unknown revision, got %v", err)
	}
}

func TestSubscribeSelectDiffsBySelector(t *testing.T) {
	ctx := context.Background()
	e := New(blob.NewMemoryStore())
	alice := NewEntity()
	bob := NewEntity()
	handle := value.Name("profile/handle")
	bio := value.Name("profile/bio")

	type event struct{ added, removed []Fact }
	events := make(chan event, 8)

	stop := e.SubscribeSelect(ctx, Selector{The: &handle}, func(added, removed []Fact) {
		events <- event{added, removed}
	})
	defer stop()

	if _, err := e.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert handle: %v", err)
	}
	if _, err := e.Assert(ctx, bio, bob, value.OfString("hi"), nil); err != nil {
		t.Fatalf("assert unrelated bio: %v", err)
	}

	select {
	case ev := <-events:
		if len(ev.added) != 1 || ev.added[0].Of != alice {
			t.Fatalf("expected a single add for alice's handle, got %+v", ev.added)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handle assert notification")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected notification for an unrelated attribute: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
