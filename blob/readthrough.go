package blob

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// ReadThroughStore answers Get from a local cache first, falling back to a
// remote archive and populating the cache on a hit (spec.md §4.E "Fetch
// semantics"). Concurrent Gets for the same missing key are coalesced with
// singleflight so a burst of readers descending into the same unresolved
// subtree issues one remote fetch, not N.
type ReadThroughStore struct {
	local  Store
	remote Store
	group  singleflight.Group
}

// NewReadThroughStore builds a read-through store over a local cache and a
// remote archive.
func NewReadThroughStore(local, remote Store) *ReadThroughStore {
	return &ReadThroughStore{local: local, remote: remote}
}

func (s *ReadThroughStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if data, err := s.local.Get(ctx, key); err == nil {
		return data, nil
	} else if err != ErrNotFound {
		return nil, err
	}

	v, err, _ := s.group.Do(string(key), func() (interface{}, error) {
		data, err := s.remote.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := s.local.Set(ctx, key, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Set writes through to both tiers: the remote archive is authoritative,
// the local cache keeps the write warm for subsequent reads.
func (s *ReadThroughStore) Set(ctx context.Context, key []byte, value []byte) error {
	if err := s.remote.Set(ctx, key, value); err != nil {
		return err
	}
	return s.local.Set(ctx, key, value)
}

func (s *ReadThroughStore) Delete(ctx context.Context, key []byte) error {
	return s.local.Delete(ctx, key)
}

func (s *ReadThroughStore) List(ctx context.Context, prefix []byte) ([][]byte, error) {
	return s.local.List(ctx, prefix)
}
