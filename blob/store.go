// Package blob implements the content-addressed byte-blob key/value
// abstraction that prolly tree nodes and fact values are persisted through
// (spec.md §4.A). The store is untyped and does not validate hash≡content;
// upper layers are responsible for that.
package blob

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound indicates the requested key has no blob in the store.
var ErrNotFound = errors.New("blob: not found")

// BackendError wraps a transport/IO fault from a Store implementation, per
// spec.md §7's Backend taxonomy. Use errors.Cause (github.com/pkg/errors) to
// recover the underlying error for retry classification.
type BackendError struct {
	cause error
}

func (e *BackendError) Error() string { return "blob: backend: " + e.cause.Error() }
func (e *BackendError) Unwrap() error { return e.cause }
func (e *BackendError) Cause() error  { return e.cause }

// WrapBackend tags err as a backend fault, unless it already is one.
func WrapBackend(err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{cause: err}
}

// Store is a pluggable content-addressed byte KV. Keys are typically
// 32-byte content hashes, but the store treats them as opaque byte strings.
type Store interface {
	// Get retrieves the blob for key, or ErrNotFound if absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores value under key. Storing the same key twice is a no-op by
	// construction: callers never need to check existence before writing,
	// since content addressing means the same key always implies the same
	// value.
	Set(ctx context.Context, key []byte, value []byte) error

	// Delete removes a blob. Optional: implementations that don't support
	// deletion return ErrNotSupported.
	Delete(ctx context.Context, key []byte) error

	// List enumerates keys with the given prefix. Optional: implementations
	// that don't support enumeration return ErrNotSupported.
	List(ctx context.Context, prefix []byte) ([][]byte, error)
}

// ErrNotSupported indicates an optional Store operation is unavailable on
// this backend.
var ErrNotSupported = errors.New("blob: operation not supported")
