package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
)

// FailureKind classifies per-item failures for logging and reporting.
type FailureKind string

// Failure kinds.
const (
	FailureHTTPStatus FailureKind = "http_status"
	FailureTransport  FailureKind = "transport"
	FailureParse      FailureKind = "parse"
	FailureFilesystem FailureKind = "filesystem"
	FailureOther      FailureKind = "other"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// BodyTooLargeError reports a response body longer than the configured cap.
// The truncated body is discarded.
type BodyTooLargeError struct {
	URL   string
	Limit int
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("response body of %s exceeds %d bytes", e.URL, e.Limit)
}

// ParseError reports a page whose structure could not be read.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Failure is the failed half of a per-item result.
type Failure struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.URL, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure classifies err and wraps it with the failing URL.
func NewFailure(rawURL string, err error) *Failure {
	return &Failure{Kind: Classify(err), URL: rawURL, Err: err}
}

// Classify maps an error onto the failure taxonomy.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return FailureHTTPStatus
	}
	var tooLarge *BodyTooLargeError
	if errors.As(err, &tooLarge) {
		return FailureTransport
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return FailureParse
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return FailureFilesystem
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return FailureFilesystem
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return FailureTransport
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Op == "parse" {
			return FailureOther
		}
		return FailureTransport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransport
	}
	return FailureOther
}
