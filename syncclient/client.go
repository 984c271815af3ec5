package syncclient

import (
	"context"
	"sync"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/fact"
	"github.com/dialog-db/dialog/merge"
	"github.com/dialog-db/dialog/prolly"
	"github.com/dialog-db/dialog/value"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxPushAttempts bounds how many times Push will retry after losing a
// compare-and-swap race before giving up.
const MaxPushAttempts = 5

// ErrTooManyConflicts is returned by Push when MaxPushAttempts is
// exhausted without landing a compare-and-swap.
var ErrTooManyConflicts = errors.New("syncclient: too many push conflicts")

// Client drives one replica's half of spec.md §4.E: pulling remote changes
// into a local fact.Engine, and pushing local changes out, reconciling
// with merge.Merge whenever a push loses the compare-and-swap race.
type Client struct {
	engine  *fact.Engine
	blobs   blob.Store
	tree    *prolly.Tree
	pointer MutablePointer
	log     *zap.Logger

	mu         sync.Mutex
	checkpoint [3]value.Hash // eav, aev, vae roots of the last successful push; Pull leaves it unchanged
	etag       string
	synced     bool
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a Client over a local engine, the blob store it (and the
// remote) share, and a remote mutable pointer.
func New(engine *fact.Engine, blobs blob.Store, pointer MutablePointer, opts ...Option) *Client {
	emptyRoot := prolly.EmptyRoot()
	c := &Client{
		engine:     engine,
		blobs:      blobs,
		tree:       prolly.New(blobs),
		pointer:    pointer,
		log:        zap.NewNop(),
		checkpoint: [3]value.Hash{emptyRoot, emptyRoot, emptyRoot},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pull fetches the remote's current state and merges it into the local
// engine. It's a no-op if the remote still names the state of the last
// successful push. A pull does not advance the checkpoint, so local changes
// are always merged against the last pushed state.
func (c *Client) Pull(ctx context.Context) error {
	correlationID := uuid.New().String()
	log := c.log.With(zap.String("correlation_id", correlationID), zap.String("op", "pull"))

	ptr, err := c.pointer.Get(ctx)
	if err == ErrNoPointer {
		log.Debug("no remote pointer yet, nothing to pull")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "syncclient: pull")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.synced && ptr.Revision == fact.RevisionOf(c.checkpoint[0], c.checkpoint[1], c.checkpoint[2]) {
		log.Debug("remote unchanged since last sync")
		return nil
	}

	remoteBytes, err := c.blobs.Get(ctx, ptr.Revision[:])
	if err != nil {
		return errors.Wrap(err, "syncclient: fetch remote state")
	}
	remoteEAV, remoteAEV, remoteVAE, err := fact.DecodeRoots(remoteBytes)
	if err != nil {
		return err
	}

	localEAV, localAEV, localVAE := c.engine.Roots()
	checkpointEAV, checkpointAEV, checkpointVAE := c.checkpoint[0], c.checkpoint[1], c.checkpoint[2]

	var (
		mergedEAV, mergedAEV, mergedVAE value.Hash
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		mergedEAV, _, err = merge.Merge(gctx, c.tree, localEAV, remoteEAV, checkpointEAV)
		return err
	})
	g.Go(func() (err error) {
		mergedAEV, _, err = merge.Merge(gctx, c.tree, localAEV, remoteAEV, checkpointAEV)
		return err
	})
	g.Go(func() (err error) {
		mergedVAE, _, err = merge.Merge(gctx, c.tree, localVAE, remoteVAE, checkpointVAE)
		return err
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "syncclient: merge")
	}

	c.engine.ReplaceRoots(mergedEAV, mergedAEV, mergedVAE)
	c.etag = ptr.ETag
	c.synced = true

	mergedRev := fact.RevisionOf(mergedEAV, mergedAEV, mergedVAE)
	if err := c.blobs.Set(ctx, mergedRev[:], fact.EncodeRoots(mergedEAV, mergedAEV, mergedVAE)); err != nil {
		return errors.Wrap(err, "syncclient: persist merged state")
	}

	log.Info("pulled remote changes", zap.String("remote_revision", hashString(ptr.Revision)))
	return nil
}

// Push publishes the local engine's current state to the remote pointer.
// If another writer moved the pointer first, Push pulls their changes,
// merges, and retries, up to MaxPushAttempts times.
func (c *Client) Push(ctx context.Context) error {
	correlationID := uuid.New().String()
	log := c.log.With(zap.String("correlation_id", correlationID), zap.String("op", "push"))

	for attempt := 0; attempt < MaxPushAttempts; attempt++ {
		eav, aev, vae := c.engine.Roots()
		rev := fact.RevisionOf(eav, aev, vae)

		if err := c.blobs.Set(ctx, rev[:], fact.EncodeRoots(eav, aev, vae)); err != nil {
			return errors.Wrap(err, "syncclient: publish state blob")
		}

		c.mu.Lock()
		ifMatch := c.etag
		c.mu.Unlock()

		newEtag, err := c.pointer.Put(ctx, rev, ifMatch)
		if err == nil {
			c.mu.Lock()
			c.etag = newEtag
			c.checkpoint = [3]value.Hash{eav, aev, vae}
			c.synced = true
			c.mu.Unlock()
			log.Info("pushed local changes", zap.String("revision", hashString(rev)))
			return nil
		}
		if err != ErrConflict {
			return errors.Wrap(err, "syncclient: push")
		}

		log.Debug("push lost compare-and-swap, pulling and retrying", zap.Int("attempt", attempt+1))
		if err := c.Pull(ctx); err != nil {
			return errors.Wrap(err, "syncclient: pull during push retry")
		}
	}
	return ErrTooManyConflicts
}

func hashString(h value.Hash) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, len(h)*2)
	for i, b := range h {
		buf[i*2] = hex[b>>4]
		buf[i*2+1] = hex[b&0xF]
	}
	return string(buf)
}
