package syncclient

import (
	"context"
	"sync"
	"testing"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/fact"
	"github.com/dialog-db/dialog/value"
)

// fakePointer is an in-memory MutablePointer standing in for a real HTTP
// endpoint, so these tests exercise the CAS/retry logic without a network.
type fakePointer struct {
	mu      sync.Mutex
	set     bool
	rev     value.Hash
	etag    string
	counter int
}

func (p *fakePointer) Get(context.Context) (Pointer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return Pointer{}, ErrNoPointer
	}
	return Pointer{Revision: p.rev, ETag: p.etag}, nil
}

func (p *fakePointer) Put(_ context.Context, rev value.Hash, ifMatch string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set && p.etag != ifMatch {
		return "", ErrConflict
	}
	if !p.set && ifMatch != "" {
		return "", ErrConflict
	}
	p.counter++
	p.etag = etagFromCounter(p.counter)
	p.rev = rev
	p.set = true
	return p.etag, nil
}

func etagFromCounter(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestPushThenPullSeesChanges(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	pointer := &fakePointer{}

	engine1 := fact.New(store)
	client1 := New(engine1, store, pointer)

	alice := fact.NewEntity()
	handle := value.Name("profile/handle")
	if _, err := engine1.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatalf("assert: %v", err)
	}
	if err := client1.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}

	engine2 := fact.New(store)
	client2 := New(engine2, store, pointer)
	if err := client2.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}

	got, ok, err := engine2.Current(ctx, handle, alice)
	if err != nil || !ok {
		t.Fatalf("expected replica 2 to see alice's handle after pull, ok=%v err=%v", ok, err)
	}
	if got.Str() != "alice" {
		t.Fatalf("got %q, want alice", got.Str())
	}
}

func TestPushRetriesThroughConflict(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	pointer := &fakePointer{}

	engine1 := fact.New(store)
	client1 := New(engine1, store, pointer)
	alice := fact.NewEntity()
	handle := value.Name("profile/handle")
	if _, err := engine1.Assert(ctx, handle, alice, value.OfString("alice"), nil); err != nil {
		t.Fatal(err)
	}
	if err := client1.Push(ctx); err != nil {
		t.Fatalf("initial push: %v", err)
	}

	engine2 := fact.New(store)
	client2 := New(engine2, store, pointer)
	if err := client2.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}
	bob := fact.NewEntity()
	if _, err := engine2.Assert(ctx, handle, bob, value.OfString("bob"), nil); err != nil {
		t.Fatal(err)
	}
	if err := client2.Push(ctx); err != nil {
		t.Fatalf("second push: %v", err)
	}

	// client1 doesn't know about bob yet; its next push must lose the CAS
	// race, pull bob in, and retry.
	carol := fact.NewEntity()
	if _, err := engine1.Assert(ctx, handle, carol, value.OfString("carol"), nil); err != nil {
		t.Fatal(err)
	}
	if err := client1.Push(ctx); err != nil {
		t.Fatalf("conflicted push: %v", err)
	}

	for _, want := range []struct {
		e fact.Entity
		v string
	}{{alice, "alice"}, {bob, "bob"}, {carol, "carol"}} {
		got, ok, err := engine1.Current(ctx, handle, want.e)
		if err != nil || !ok {
			t.Fatalf("engine1 missing %v after reconciliation: ok=%v err=%v", want.v, ok, err)
		}
		if got.Str() != want.v {
			t.Fatalf("engine1[%v] = %q, want %q", want.e, got.Str(), want.v)
		}
	}
}
