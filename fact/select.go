package fact

import (
	"context"

	"github.com/dialog-db/dialog/prolly"
	"github.com/dialog-db/dialog/value"
)

// Select returns every live fact matching the given, optionally nil,
// fields. It picks the narrowest available index for the bound fields
// (spec.md §4.C "selector index selection"):
//
//   - the+of+is all bound: an EAV point lookup — the caller already has
//     everything needed to compute the exact key, so this does a direct
//     Tree.Get instead of scanning a range.
//   - the+of bound, is unbound: an EAV prefix scan over every fact stored
//     for that (the, of) pair — in practice just the one live
//     fact, since Commit retracts the prior value before asserting a new
//     one, but the scan doesn't assume that.
//   - of alone: an EAV prefix scan over every fact about that entity.
//   - the alone: an AEV prefix scan over every entity with that attribute.
//   - is alone: a VAE prefix scan over every entity holding that value.
//   - none bound: a full EAV scan.
func (e *Engine) Select(ctx context.Context, the *value.Attribute, of *Entity, is *value.Value) ([]Fact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch {
	case the != nil && of != nil && is != nil:
		key := eavKey(*the, *of, is.Hash())
		record, err := e.eav.Get(ctx, e.eavRoot, key)
		if err == prolly.ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		f, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		return []Fact{f}, nil
	case the != nil && of != nil:
		prefix := append(append([]byte(nil), of[:]...), the.KeyBytes()...)
		return e.scanEAVPrefix(ctx, prefix)
	case of != nil:
		facts, err := e.scanEAVPrefix(ctx, of[:])
		if err != nil {
			return nil, err
		}
		return filterByValue(facts, is), nil
	case the != nil:
		facts, err := e.scanAEVPrefix(ctx, the.KeyBytes())
		if err != nil {
			return nil, err
		}
		return filterByValue(facts, is), nil
	case is != nil:
		isHash := is.Hash()
		return e.scanVAEPrefix(ctx, isHash[:])
	default:
		return e.scanEAVPrefix(ctx, nil)
	}
}

// SelectByEntity returns every live fact about of.
func (e *Engine) SelectByEntity(ctx context.Context, of Entity) ([]Fact, error) {
	return e.Select(ctx, nil, &of, nil)
}

// SelectByAttribute returns every live fact asserted under the, across all
// entities.
func (e *Engine) SelectByAttribute(ctx context.Context, the value.Attribute) ([]Fact, error) {
	return e.Select(ctx, &the, nil, nil)
}

// SelectByValue returns every live fact currently holding is, across all
// entities and attributes.
func (e *Engine) SelectByValue(ctx context.Context, is value.Value) ([]Fact, error) {
	return e.Select(ctx, nil, nil, &is)
}

// Current returns the live value bound to (the, of), if any.
func (e *Engine) Current(ctx context.Context, the value.Attribute, of Entity) (value.Value, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, err := e.currentLocked(ctx, the, of)
	if err != nil {
		return value.Value{}, false, err
	}
	if f == nil {
		return value.Value{}, false, nil
	}
	return f.Is, true, nil
}

func (e *Engine) scanEAVPrefix(ctx context.Context, prefix []byte) ([]Fact, error) {
	lo, hi := prefixRange(prefix)
	c, err := e.eav.Scan(ctx, e.eavRoot, lo, hi)
	if err != nil {
		return nil, err
	}
	return decodeCursor(c)
}

func (e *Engine) scanAEVPrefix(ctx context.Context, prefix []byte) ([]Fact, error) {
	lo, hi := prefixRange(prefix)
	c, err := e.aev.Scan(ctx, e.aevRoot, lo, hi)
	if err != nil {
		return nil, err
	}
	return decodeCursor(c)
}

func (e *Engine) scanVAEPrefix(ctx context.Context, prefix []byte) ([]Fact, error) {
	lo, hi := prefixRange(prefix)
	c, err := e.vae.Scan(ctx, e.vaeRoot, lo, hi)
	if err != nil {
		return nil, err
	}
	return decodeCursor(c)
}

func decodeCursor(c *prolly.Cursor) ([]Fact, error) {
	defer c.Close()

	var out []Fact
	for {
		entry, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		f, err := decodeRecord(entry.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func filterByValue(facts []Fact, is *value.Value) []Fact {
	if is == nil {
		return facts
	}
	wantHash := is.Hash()
	var out []Fact
	for _, f := range facts {
		if f.Is.Hash() == wantHash {
			out = append(out, f)
		}
	}
	return out
}
