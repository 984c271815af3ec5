package fact

import (
	"context"

	"github.com/dialog-db/dialog/value"
)

// Selector names the fields SubscribeSelect re-runs Select against on every
// notification. A nil field is unbound, exactly as in Select/Current.
type Selector struct {
	The *value.Attribute
	Of  *Entity
	Is  *value.Value
}

// SubscribeSelect runs selector once immediately and again after every
// change notification from Subscribe (one per asserted or retracted fact;
// a commit that changes nothing sends none), diffing the two result sets
// by fact revision hash and
// invoking callback with exactly what changed. It's built on Subscribe's
// raw Change channel: that channel drops notifications under backpressure,
// but because SubscribeSelect always re-runs Select against the engine's
// current state rather than accumulating individual Change values, a
// dropped notification only coalesces two diffs into one — it never
// produces an incorrect one.
//
// The returned function stops the subscription and blocks until its
// background goroutine has exited.
func (e *Engine) SubscribeSelect(ctx context.Context, selector Selector, callback func(added, removed []Fact)) func() {
	changes, unsubscribe := e.Subscribe()

	previous := map[value.Hash]Fact{}
	if initial, err := e.Select(ctx, selector.The, selector.Of, selector.Is); err == nil {
		for _, f := range initial {
			previous[f.Revision()] = f
		}
		if len(initial) > 0 {
			callback(initial, nil)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range changes {
			current, err := e.Select(ctx, selector.The, selector.Of, selector.Is)
			if err != nil {
				continue
			}
			next := make(map[value.Hash]Fact, len(current))
			for _, f := range current {
				next[f.Revision()] = f
			}

			var added, removed []Fact
			for rev, f := range next {
				if _, ok := previous[rev]; !ok {
					added = append(added, f)
				}
			}
			for rev, f := range previous {
				if _, ok := next[rev]; !ok {
					removed = append(removed, f)
				}
			}
			previous = next

			if len(added) > 0 || len(removed) > 0 {
				callback(added, removed)
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}
