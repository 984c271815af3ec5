package prolly

import "github.com/pkg/errors"

// ErrNotFound is returned by Get when no entry matches the given key.
var ErrNotFound = errors.New("prolly: key not found")

// ErrTree wraps underlying blob-store failures encountered while walking a
// tree, so callers can distinguish "no such key" from "the tree could not
// be read" (spec.md §7 error taxonomy). A missing blob is reported as
// ErrBlobMissing and an unparseable node as ErrDecode, not as ErrTree.
type ErrTree struct {
	cause error
}

func wrapTree(err error) error {
	if err == nil {
		return nil
	}
	return &ErrTree{cause: err}
}

func (e *ErrTree) Error() string { return "prolly: tree error: " + e.cause.Error() }
func (e *ErrTree) Unwrap() error { return e.cause }
func (e *ErrTree) Cause() error  { return e.cause }
