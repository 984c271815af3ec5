package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Authenticator attaches credentials to an outgoing request. None and
// Bearer are implemented; SigV4 is a documented extension point (spec.md
// §1/§6 treat AWS SigV4 signing as an external, out-of-core-scope
// collaborator) — a caller who needs it supplies their own Authenticator.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// NoAuth attaches no credentials.
type NoAuth struct{}

func (NoAuth) Authenticate(*http.Request) error { return nil }

// BearerAuth attaches a static bearer token.
type BearerAuth struct{ Token string }

func (b BearerAuth) Authenticate(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// HTTPStore talks to a blob store over HTTP using the wire surface from
// spec.md §6: GET/PUT on base64url(key) under a bucket/prefix path.
type HTTPStore struct {
	baseURL string // e.g. https://host/bucket/prefix
	client  *retryablehttp.Client
	auth    Authenticator
	log     *zap.Logger
}

// HTTPStoreOption configures an HTTPStore.
type HTTPStoreOption func(*HTTPStore)

func WithAuthenticator(a Authenticator) HTTPStoreOption {
	return func(s *HTTPStore) { s.auth = a }
}

func WithLogger(log *zap.Logger) HTTPStoreOption {
	return func(s *HTTPStore) { s.log = log }
}

func WithMaxRetries(n int) HTTPStoreOption {
	return func(s *HTTPStore) { s.client.RetryMax = n }
}

// NewHTTPStore builds an HTTPStore rooted at baseURL.
func NewHTTPStore(baseURL string, opts ...HTTPStoreOption) *HTTPStore {
	rc := retryablehttp.NewClient()
	rc.Logger = nil // silence retryablehttp's own logger; we log via zap below
	rc.RetryMax = 3
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second

	s := &HTTPStore{
		baseURL: baseURL,
		client:  rc,
		auth:    NoAuth{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStore) url(key []byte) string {
	return fmt.Sprintf("%s/%s", s.baseURL, base64.RawURLEncoding.EncodeToString(key))
}

func (s *HTTPStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url(key), nil)
	if err != nil {
		return nil, WrapBackend(err)
	}
	if err := s.auth.Authenticate(req.Request); err != nil {
		return nil, errors.Wrap(err, "blob: authenticate")
	}

	s.log.Debug("blob http get", zap.String("url", req.URL.String()))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, WrapBackend(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return nil, WrapBackend(errors.Errorf("blob http get: unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapBackend(err)
	}
	return data, nil
}

func (s *HTTPStore) Set(ctx context.Context, key []byte, value []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, s.url(key), bytes.NewReader(value))
	if err != nil {
		return WrapBackend(err)
	}
	if err := s.auth.Authenticate(req.Request); err != nil {
		return errors.Wrap(err, "blob: authenticate")
	}

	s.log.Debug("blob http put", zap.String("url", req.URL.String()), zap.Int("bytes", len(value)))
	resp, err := s.client.Do(req)
	if err != nil {
		return WrapBackend(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return WrapBackend(errors.Errorf("blob http put: unexpected status %d", resp.StatusCode))
	}
	return nil
}

func (s *HTTPStore) Delete(ctx context.Context, key []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, s.url(key), nil)
	if err != nil {
		return WrapBackend(err)
	}
	if err := s.auth.Authenticate(req.Request); err != nil {
		return errors.Wrap(err, "blob: authenticate")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return WrapBackend(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return WrapBackend(errors.Errorf("blob http delete: unexpected status %d", resp.StatusCode))
	}
	return nil
}

// List is not supported over the plain HTTP wire surface: a typical
// S3/R2-style endpoint in this deployment shape has no list API configured.
func (s *HTTPStore) List(context.Context, []byte) ([][]byte, error) {
	return nil, ErrNotSupported
}
