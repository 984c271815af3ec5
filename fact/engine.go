package fact

import (
	"bytes"
	"context"
	"sync"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/prolly"
	"github.com/dialog-db/dialog/value"
	"go.uber.org/zap"
)

// ChangeKind distinguishes the two notifications Subscribe delivers.
type ChangeKind int

const (
	Asserted ChangeKind = iota
	Retracted
)

// Change is delivered to subscribers on every successful commit.
type Change struct {
	Kind ChangeKind
	Fact Fact
}

// Engine holds the three synchronized indexes over entity/attribute/value
// triples (spec.md §4.C) and the single-writer commit logic that keeps them
// consistent with each other.
type Engine struct {
	mu    sync.RWMutex
	store blob.Store
	eav   *prolly.Tree
	aev   *prolly.Tree
	vae   *prolly.Tree

	eavRoot value.Hash
	aevRoot value.Hash
	vaeRoot value.Hash

	// name is the persistent cell this engine was opened from via Open; it
	// is empty for engines built with New/OpenWithRoots directly, which
	// have no named cell to keep in sync. When set, a successful Commit
	// publishes the new state and advances the cell last, after every
	// sub-root is durably written.
	name string

	log  *zap.Logger
	subs []chan Change
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New opens an empty engine backed by store.
func New(store blob.Store, opts ...Option) *Engine {
	return OpenWithRoots(store, prolly.EmptyRoot(), prolly.EmptyRoot(), prolly.EmptyRoot(), opts...)
}

// OpenWithRoots opens an engine at a previously committed state — used by
// the sync client to rehydrate a replica from a fetched checkpoint rather
// than replaying every assertion.
func OpenWithRoots(store blob.Store, eavRoot, aevRoot, vaeRoot value.Hash, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		eav:     prolly.New(store),
		aev:     prolly.New(store),
		vae:     prolly.New(store),
		eavRoot: eavRoot,
		aevRoot: aevRoot,
		vaeRoot: vaeRoot,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Roots returns the engine's three index roots, as needed by the sync
// client to publish or compare checkpoints.
func (e *Engine) Roots() (eav, aev, vae value.Hash) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eavRoot, e.aevRoot, e.vaeRoot
}

// ReplaceRoots overwrites the engine's index roots wholesale. It exists for
// the sync client: after merging a local and a remote tree, the merged
// result becomes the engine's new working state directly, without
// replaying every assert/retract that produced it.
func (e *Engine) ReplaceRoots(eav, aev, vae value.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eavRoot, e.aevRoot, e.vaeRoot = eav, aev, vae
}

// Revision is the content digest of the engine's current state: Blake3 of
// the three index roots concatenated in EAV, AEV, VAE order. Two engines
// holding the same facts always agree on this value, regardless of the
// order assertions were made in (prolly.Tree's history independence
// carries all the way up).
func (e *Engine) Revision() value.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revisionLocked()
}

func (e *Engine) revisionLocked() value.Hash {
	return RevisionOf(e.eavRoot, e.aevRoot, e.vaeRoot)
}

// currentAt returns the live record for (the, of) as seen from eavRoot,
// rather than the engine's own committed root: Commit evaluates a whole
// instruction batch against its own working roots before any of them
// become visible to other readers, so a later instruction in the same
// batch must see the effect of an earlier one.
func (e *Engine) currentAt(ctx context.Context, eavRoot value.Hash, the value.Attribute, of Entity) (*Fact, error) {
	prefix := append(append([]byte(nil), of[:]...), the.KeyBytes()...)
	lo, hi := prefixRange(prefix)
	c, err := e.eav.Scan(ctx, eavRoot, lo, hi)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	entry, ok, err := c.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	f, err := decodeRecord(entry.Value)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (e *Engine) currentLocked(ctx context.Context, the value.Attribute, of Entity) (*Fact, error) {
	return e.currentAt(ctx, e.eavRoot, the, of)
}

// InstructionKind distinguishes the two kinds of instruction Commit
// accepts.
type InstructionKind int

const (
	AssertInstruction InstructionKind = iota
	RetractInstruction
)

// Instruction is one unit of a Commit batch: either asserting a value for
// (the, of) or retracting it. Build one with AssertOp or RetractOp.
type Instruction struct {
	Kind  InstructionKind
	The   value.Attribute
	Of    Entity
	Is    value.Value
	Cause *value.Hash // only meaningful for AssertInstruction
}

// AssertOp builds an assert Instruction. A nil cause chains to the
// superseded fact's revision automatically, the same as Assert.
func AssertOp(the value.Attribute, of Entity, is value.Value, cause *value.Hash) Instruction {
	return Instruction{Kind: AssertInstruction, The: the, Of: of, Is: is, Cause: cause}
}

// RetractOp builds a retract Instruction.
func RetractOp(the value.Attribute, of Entity, is value.Value) Instruction {
	return Instruction{Kind: RetractInstruction, The: the, Of: of, Is: is}
}

// Assert binds attribute the of entity of to value is. Asserting
// the same (the, of, is) triple twice is a no-op. Asserting a new value for
// an already-bound (the, of) pair implicitly retracts the prior value
// first (spec.md §4.C "single live value per entity/attribute pair") and,
// if the caller didn't supply an explicit cause, chains the new record's
// Cause to the superseded one's revision so history can be walked back.
func (e *Engine) Assert(ctx context.Context, the value.Attribute, of Entity, is value.Value, cause *value.Hash) (value.Hash, error) {
	if err := e.Commit(ctx, []Instruction{AssertOp(the, of, is, cause)}); err != nil {
		return value.Hash{}, err
	}
	return e.Revision(), nil
}

// Retract removes the live (the, of, is) triple. It fails with ErrNotFound
// if (the, of) has no live value, and ErrConflict if the live value doesn't
// match is — a caller acting on a stale read shouldn't silently remove the
// wrong fact.
func (e *Engine) Retract(ctx context.Context, the value.Attribute, of Entity, is value.Value) (value.Hash, error) {
	if err := e.Commit(ctx, []Instruction{RetractOp(the, of, is)}); err != nil {
		return value.Hash{}, err
	}
	return e.Revision(), nil
}

// Commit applies every instruction to all three indexes atomically: it
// works against local copies of the index roots and only swaps them into
// the engine once every instruction in the batch has succeeded, so a
// failure partway through leaves the engine's visible state untouched
// (spec.md §4.C). If this engine was opened from a named cell via Open,
// Commit also persists the new state and advances the cell, in that
// order, so a crash between the two leaves the cell pointing at the prior,
// still-consistent revision rather than an unpublished one.
func (e *Engine) Commit(ctx context.Context, instructions []Instruction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	eavRoot, aevRoot, vaeRoot := e.eavRoot, e.aevRoot, e.vaeRoot
	var changes []Change

	for _, instr := range instructions {
		current, err := e.currentAt(ctx, eavRoot, instr.The, instr.Of)
		if err != nil {
			return err
		}

		switch instr.Kind {
		case AssertInstruction:
			if current != nil && bytes.Equal(current.Is.Encode(), instr.Is.Encode()) {
				continue
			}
			cause := instr.Cause
			if current != nil {
				if eavRoot, aevRoot, vaeRoot, err = e.removeFrom(ctx, eavRoot, aevRoot, vaeRoot, *current); err != nil {
					return err
				}
				if cause == nil {
					rev := current.Revision()
					cause = &rev
				}
			}
			f := Fact{The: instr.The, Of: instr.Of, Is: instr.Is, Cause: cause}
			if eavRoot, aevRoot, vaeRoot, err = e.insertInto(ctx, eavRoot, aevRoot, vaeRoot, f); err != nil {
				return err
			}
			changes = append(changes, Change{Kind: Asserted, Fact: f})

		case RetractInstruction:
			if current == nil {
				return ErrNotFound
			}
			if !bytes.Equal(current.Is.Encode(), instr.Is.Encode()) {
				return ErrConflict
			}
			if eavRoot, aevRoot, vaeRoot, err = e.removeFrom(ctx, eavRoot, aevRoot, vaeRoot, *current); err != nil {
				return err
			}
			changes = append(changes, Change{Kind: Retracted, Fact: *current})
		}
	}

	e.eavRoot, e.aevRoot, e.vaeRoot = eavRoot, aevRoot, vaeRoot

	if e.name != "" {
		if err := publishRoots(ctx, e.store, e.name, eavRoot, aevRoot, vaeRoot); err != nil {
			return err
		}
	}

	for _, c := range changes {
		e.notify(c)
	}
	return nil
}

func (e *Engine) insertInto(ctx context.Context, eavRoot, aevRoot, vaeRoot value.Hash, f Fact) (value.Hash, value.Hash, value.Hash, error) {
	isHash := f.Is.Hash()
	record := encodeRecord(f)

	var err error
	if eavRoot, err = e.eav.Insert(ctx, eavRoot, eavKey(f.The, f.Of, isHash), record); err != nil {
		return value.Hash{}, value.Hash{}, value.Hash{}, err
	}
	if aevRoot, err = e.aev.Insert(ctx, aevRoot, aevKey(f.The, f.Of, isHash), record); err != nil {
		return value.Hash{}, value.Hash{}, value.Hash{}, err
	}
	if vaeRoot, err = e.vae.Insert(ctx, vaeRoot, vaeKey(f.The, f.Of, isHash), record); err != nil {
		return value.Hash{}, value.Hash{}, value.Hash{}, err
	}
	return eavRoot, aevRoot, vaeRoot, nil
}

func (e *Engine) removeFrom(ctx context.Context, eavRoot, aevRoot, vaeRoot value.Hash, f Fact) (value.Hash, value.Hash, value.Hash, error) {
	isHash := f.Is.Hash()

	var err error
	if eavRoot, err = e.eav.Delete(ctx, eavRoot, eavKey(f.The, f.Of, isHash)); err != nil {
		return value.Hash{}, value.Hash{}, value.Hash{}, err
	}
	if aevRoot, err = e.aev.Delete(ctx, aevRoot, aevKey(f.The, f.Of, isHash)); err != nil {
		return value.Hash{}, value.Hash{}, value.Hash{}, err
	}
	if vaeRoot, err = e.vae.Delete(ctx, vaeRoot, vaeKey(f.The, f.Of, isHash)); err != nil {
		return value.Hash{}, value.Hash{}, value.Hash{}, err
	}
	return eavRoot, aevRoot, vaeRoot, nil
}

// Stats reports each index's live fact count and node count, plus the
// engine's current revision. The three fact counts always agree; a
// mismatch would mean the indexes have drifted out of sync, which
// Commit's single-lock batching is meant to make impossible. Counts are
// computed by a single traversal per index (prolly.Tree.Stats), not
// cached — see DESIGN.md for why.
type Stats struct {
	EAVCount int
	AEVCount int
	VAECount int
	EAVNodes int
	AEVNodes int
	VAENodes int
	Revision value.Hash
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	eavStats, err := e.eav.Stats(ctx, e.eavRoot)
	if err != nil {
		return Stats{}, err
	}
	aevStats, err := e.aev.Stats(ctx, e.aevRoot)
	if err != nil {
		return Stats{}, err
	}
	vaeStats, err := e.vae.Stats(ctx, e.vaeRoot)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		EAVCount: eavStats.EntryCount,
		AEVCount: aevStats.EntryCount,
		VAECount: vaeStats.EntryCount,
		EAVNodes: eavStats.NodeCount,
		AEVNodes: aevStats.NodeCount,
		VAENodes: vaeStats.NodeCount,
		Revision: e.revisionLocked(),
	}, nil
}

// Subscribe registers a listener for every future Assert/Retract/Commit.
// The returned channel is buffered; a slow consumer drops notifications
// rather than blocking commits. Call the returned function to
// unsubscribe. This is the low-level primitive SubscribeSelect builds on;
// most callers want SubscribeSelect's filtered, diffed result sets
// instead of raw per-instruction notifications.
func (e *Engine) Subscribe() (<-chan Change, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Change, 16)
	e.subs = append(e.subs, ch)
	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s == ch {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}

func (e *Engine) notify(c Change) {
	for _, ch := range e.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
