// Package syncclient implements the client side of spec.md §4.E: pulling
// and pushing a replica's state against a remote mutable pointer using
// compare-and-swap, and reconciling diverging replicas with the merge
// package when a push loses the race.
package syncclient

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/dialog-db/dialog/value"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pointer is a remote mutable pointer's current value: the revision it
// names, and an opaque ETag used for compare-and-swap on the next Put.
type Pointer struct {
	Revision value.Hash
	ETag     string
}

// ErrConflict is returned by Put when the pointer's current ETag doesn't
// match ifMatch — someone else moved the pointer first.
var ErrConflict = errors.New("syncclient: pointer conflict")

// ErrNoPointer is returned by Get when the remote has no pointer yet (a
// brand-new repository). Callers treat this as starting from the empty
// tree, not as a fatal condition.
var ErrNoPointer = errors.New("syncclient: pointer not found")

// MutablePointer is the minimal compare-and-swap register spec.md §4.E
// requires of a remote: read the current (revision, etag), and attempt to
// move it forward only if the caller's last-known etag still matches.
type MutablePointer interface {
	Get(ctx context.Context) (Pointer, error)
	Put(ctx context.Context, revision value.Hash, ifMatch string) (etag string, err error)
}

// HTTPPointer implements MutablePointer against an HTTP endpoint using
// standard conditional-request semantics: GET returns ETag, PUT requires
// If-Match and reports 412 Precondition Failed on mismatch.
type HTTPPointer struct {
	url    string
	client *retryablehttp.Client
	auth   func(*http.Request) error
	log    *zap.Logger
}

// HTTPPointerOption configures an HTTPPointer.
type HTTPPointerOption func(*HTTPPointer)

func WithPointerAuth(auth func(*http.Request) error) HTTPPointerOption {
	return func(p *HTTPPointer) { p.auth = auth }
}

func WithPointerLogger(log *zap.Logger) HTTPPointerOption {
	return func(p *HTTPPointer) { p.log = log }
}

// NewHTTPPointer builds an HTTPPointer against the given endpoint URL.
func NewHTTPPointer(url string, opts ...HTTPPointerOption) *HTTPPointer {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	p := &HTTPPointer{
		url:    url,
		client: rc,
		auth:   func(*http.Request) error { return nil },
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPPointer) Get(ctx context.Context) (Pointer, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Pointer{}, err
	}
	if err := p.auth(req.Request); err != nil {
		return Pointer{}, errors.Wrap(err, "syncclient: authenticate")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Pointer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Pointer{}, ErrNoPointer
	}
	if resp.StatusCode/100 != 2 {
		return Pointer{}, errors.Errorf("syncclient: pointer get: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Pointer{}, err
	}
	if len(body) != value.HashSize {
		return Pointer{}, errors.Errorf("syncclient: pointer get: expected %d bytes, got %d", value.HashSize, len(body))
	}
	var rev value.Hash
	copy(rev[:], body)
	return Pointer{Revision: rev, ETag: resp.Header.Get("ETag")}, nil
}

func (p *HTTPPointer) Put(ctx context.Context, revision value.Hash, ifMatch string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, p.url, bytes.NewReader(revision[:]))
	if err != nil {
		return "", err
	}
	if err := p.auth(req.Request); err != nil {
		return "", errors.Wrap(err, "syncclient: authenticate")
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	} else {
		req.Header.Set("If-None-Match", "*")
	}

	p.log.Debug("syncclient pointer put", zap.String("url", p.url))
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed {
		return "", ErrConflict
	}
	if resp.StatusCode/100 != 2 {
		return "", errors.Errorf("syncclient: pointer put: unexpected status %d", resp.StatusCode)
	}
	return resp.Header.Get("ETag"), nil
}
