package blob

import (
	"context"
	"testing"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	ctx := context.Background()

	key := []byte{1, 2, 3, 4}
	if err := s.Set(ctx, key, []byte("payload")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want payload", got)
	}

	if _, err := s.Get(ctx, []byte{9, 9, 9}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilesystemStoreListFiltersByDecodedPrefix(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	ctx := context.Background()

	keys := [][]byte{{0x01, 0x00}, {0x01, 0x01}, {0x02, 0x00}}
	for _, k := range keys {
		if err := s.Set(ctx, k, []byte("v")); err != nil {
			t.Fatalf("set %x: %v", k, err)
		}
	}

	matched, err := s.List(ctx, []byte{0x01})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 keys with prefix 0x01, got %d", len(matched))
	}
}

func TestFilesystemStoreDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	ctx := context.Background()
	key := []byte("k")
	_ = s.Set(ctx, key, []byte("v"))
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, key); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
