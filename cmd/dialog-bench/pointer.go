package main

import (
	"context"
	"strconv"
	"sync"

	"github.com/dialog-db/dialog/syncclient"
	"github.com/dialog-db/dialog/value"
)

func mainCtx() context.Context { return context.Background() }

// memoryPointer is an in-process MutablePointer, standing in for a real
// HTTP endpoint in the smoke test: a deployed replica would use
// syncclient.NewHTTPPointer instead.
type memoryPointer struct {
	mu      sync.Mutex
	set     bool
	rev     value.Hash
	etag    string
	counter int
}

func newMemoryPointer() *memoryPointer { return &memoryPointer{} }

func (p *memoryPointer) Get(context.Context) (syncclient.Pointer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return syncclient.Pointer{}, syncclient.ErrNoPointer
	}
	return syncclient.Pointer{Revision: p.rev, ETag: p.etag}, nil
}

func (p *memoryPointer) Put(_ context.Context, rev value.Hash, ifMatch string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set && p.etag != ifMatch {
		return "", syncclient.ErrConflict
	}
	if !p.set && ifMatch != "" {
		return "", syncclient.ErrConflict
	}
	p.counter++
	p.etag = strconv.Itoa(p.counter)
	p.rev = rev
	p.set = true
	return p.etag, nil
}
