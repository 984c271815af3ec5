package fact

import "github.com/pkg/errors"

// ErrNotFound indicates no live fact matches a lookup or a retract target.
var ErrNotFound = errors.New("fact: not found")

// ErrConflict indicates a retract named a value that no longer matches the
// current one for (the, of): the caller is acting on stale knowledge.
var ErrConflict = errors.New("fact: conflicting value")
