package blob

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// FilesystemStore persists one file per blob under root, named
// base58(key) per spec.md §6's on-disk format.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at dir, creating dir if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapBackend(err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) path(key []byte) string {
	return filepath.Join(s.root, base58.Encode(key))
}

func (s *FilesystemStore) Get(_ context.Context, key []byte) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, WrapBackend(err)
	}
	return data, nil
}

func (s *FilesystemStore) Set(_ context.Context, key []byte, value []byte) error {
	path := s.path(key)
	if _, err := os.Stat(path); err == nil {
		// Idempotent write.
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return WrapBackend(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return WrapBackend(err)
	}
	return nil
}

func (s *FilesystemStore) Delete(_ context.Context, key []byte) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return WrapBackend(err)
	}
	return nil
}

func (s *FilesystemStore) List(_ context.Context, prefix []byte) ([][]byte, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, WrapBackend(err)
	}
	var out [][]byte
	for _, e := range entries {
		decoded, err := base58.Decode(e.Name())
		if err != nil {
			continue // skip non-blob files (e.g. a stray .tmp from an interrupted write)
		}
		// base58 is not prefix-preserving, so filter on the decoded key
		// rather than the encoded filename.
		if len(prefix) == 0 || (len(decoded) >= len(prefix) && bytesEqual(decoded[:len(prefix)], prefix)) {
			out = append(out, decoded)
		}
	}
	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
