// Package ingest runs the fetch, parse, dedup and store pipeline for
// hackathon sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"hackathonhub.shikanime.studio/internal/config"
)

const (
	defaultUserAgent = "hackathonhub/1.0"
	maxPayloadBytes  = 32 << 20
)

// ErrPayloadTooLarge reports a response body over the fetcher's limit.
var ErrPayloadTooLarge = errors.New("payload too large")

// Fetcher returns the raw payload published at a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError reports a source URL that could not be read. StatusCode is
// set only for non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher reads payloads over HTTP. It never retries.
type HTTPFetcher struct {
	hc        *http.Client
	userAgent string
	maxBytes  int64
}

type FetcherOption func(*HTTPFetcher)

func WithUserAgent(ua string) FetcherOption { return func(f *HTTPFetcher) { f.userAgent = ua } }

func WithHTTPClient(hc *http.Client) FetcherOption { return func(f *HTTPFetcher) { f.hc = hc } }

// WithMaxPayload caps the body size Fetch accepts.
func WithMaxPayload(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewHTTPFetcher returns a fetcher with a traced transport and the given
// timeout.
func NewHTTPFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: defaultUserAgent,
		maxBytes:  maxPayloadBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func NewHTTPFetcherForConfig(cfg *config.Config, opts ...FetcherOption) *HTTPFetcher {
	return NewHTTPFetcher(cfg.GetFetchTimeout(), opts...)
}

// Client exposes the underlying client so page readers can share it.
func (f *HTTPFetcher) Client() *http.Client { return f.hc }

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w: over %d bytes", ErrPayloadTooLarge, f.maxBytes)}
	}
	return body, nil
}
