// Package source contains the marketplace adapters and the fetch
// orchestrator that drives them.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"carwatch/internal/model"
)

// Mobile UA: the marketplaces serve the lighter mobile markup to it.
const userAgent = "Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

// Doer is the interface for performing HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source is one marketplace adapter. Fetch returns the current result set
// for the adapter's fixed search query, normalized into Listings.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Listing, error)
}

// FetchError classifies an adapter failure. Transient failures (network
// errors, rate-limit responses, timeouts) may be retried within a cycle;
// permanent ones (bad query URL, structural parse failure) may not.
type FetchError struct {
	Source    string
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable fetch failure.
func Transient(source string, err error) error {
	return &FetchError{Source: source, Transient: true, Err: err}
}

// Permanent wraps err as a non-retryable fetch failure.
func Permanent(source string, err error) error {
	return &FetchError{Source: source, Transient: false, Err: err}
}

// IsTransient reports whether err may be retried. An exceeded per-call
// deadline counts as transient.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyStatus maps an HTTP response status to a fetch error.
// Rate limiting and server errors are worth retrying, anything else is not.
func classifyStatus(source string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	if status == http.StatusTooManyRequests || status >= 500 {
		return Transient(source, err)
	}
	return Permanent(source, err)
}

func newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7")
	return req, nil
}
