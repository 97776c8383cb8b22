package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx responses
// are reported as *StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// IdentityResolver derives stable product identifiers.
type IdentityResolver interface {
	Canonical(rawURL string) string
	NewID(rawURL string) string
}

// Clock times a run.
type Clock interface {
	Now() time.Time
	Since(start time.Time) time.Duration
}
