package fact

import (
	"context"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/prolly"
	"github.com/dialog-db/dialog/value"
	"lukechampine.com/blake3"
)

// cellKey derives the blob key of the mutable pointer a named store resolves
// through. It's a content-addressed store, so there's no room for an
// actual mutable key; instead the cell's current revision lives in the
// blob stored under this derived, fixed key, and Publish overwrites it in
// place each time the named store advances.
func cellKey(name string) []byte {
	h := blake3.Sum256([]byte("dialog/cell/" + name))
	return h[:]
}

// Open resolves name through its persistent cell and returns an Engine
// positioned at the revision it names (spec.md:121's open(name,
// optional_revision) operation).
//
// If revision is nil, Open reads the cell's current tip; a name that has
// never been committed to opens at three empty trees, the same starting
// point as New. If revision is non-nil, Open fetches exactly that
// historical state blob instead of the cell's tip, returning ErrNotFound
// if the store never saw a commit at that revision — this is how a caller
// reopens a prior snapshot without disturbing the cell's current tip.
//
// An engine returned by Open is cell-backed: every successful Commit also
// publishes the new state and advances the cell (see Publish), so
// concurrent Opens of the same name observe each other's writes.
func Open(ctx context.Context, store blob.Store, name string, revision *value.Hash, opts ...Option) (*Engine, error) {
	var eav, aev, vae value.Hash

	if revision != nil {
		stateBytes, err := store.Get(ctx, (*revision)[:])
		if err != nil {
			return nil, ErrNotFound
		}
		eav, aev, vae, err = DecodeRoots(stateBytes)
		if err != nil {
			return nil, err
		}
	} else {
		cellBytes, err := store.Get(ctx, cellKey(name))
		if err != nil {
			eav, aev, vae = prolly.EmptyRoot(), prolly.EmptyRoot(), prolly.EmptyRoot()
		} else {
			rev, err := decodeHash(cellBytes)
			if err != nil {
				return nil, err
			}
			stateBytes, err := store.Get(ctx, rev[:])
			if err != nil {
				return nil, ErrNotFound
			}
			eav, aev, vae, err = DecodeRoots(stateBytes)
			if err != nil {
				return nil, err
			}
		}
	}

	e := OpenWithRoots(store, eav, aev, vae, opts...)
	e.name = name
	return e, nil
}

// Publish durably persists e's current state under its Revision and then
// advances name's cell to point at it, in that order, so a crash between
// the two calls leaves the cell pointing at the previous, still-consistent
// revision (spec.md §4.C's commit atomicity language). Commit calls this
// automatically for cell-backed engines; direct callers only need it when
// publishing an engine built with New/OpenWithRoots under a name for the
// first time.
func Publish(ctx context.Context, store blob.Store, name string, e *Engine) error {
	eav, aev, vae := e.Roots()
	return publishRoots(ctx, store, name, eav, aev, vae)
}

// publishRoots is Publish's lock-free core: Commit already holds e.mu and
// already has the new roots in hand, so it calls this directly rather than
// through Publish, which would re-acquire e.mu via e.Roots() and deadlock.
func publishRoots(ctx context.Context, store blob.Store, name string, eav, aev, vae value.Hash) error {
	rev := RevisionOf(eav, aev, vae)
	if err := store.Set(ctx, rev[:], EncodeRoots(eav, aev, vae)); err != nil {
		return err
	}
	return store.Set(ctx, cellKey(name), rev[:])
}

func decodeHash(buf []byte) (value.Hash, error) {
	if len(buf) != 32 {
		return value.Hash{}, ErrMalformedState
	}
	var h value.Hash
	copy(h[:], buf)
	return h, nil
}
