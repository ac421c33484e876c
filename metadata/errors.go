package metadata

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/onnwee/vod-danmaku/danmaku"
)

// ErrFetch wraps every failure to retrieve a document. A missing document is
// not an error and never carries ErrFetch.
var ErrFetch = errors.New("metadata fetch failed")

// ErrParse wraps documents that were retrieved but could not be decoded.
var ErrParse = errors.New("metadata parse failed")

// FetchError is returned for non-2xx responses other than 404.
type FetchError struct {
	UUID   string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("metadata %s: HTTP %d", e.UUID, e.Status)
	}
	return fmt.Sprintf("metadata %s: HTTP %d: %s", e.UUID, e.Status, e.Body)
}

func (e *FetchError) Unwrap() error { return ErrFetch }

// ErrorClass represents whether an error should be retried or not.
type ErrorClass int

const (
	// ErrorClassRetryable indicates the operation should be retried (transient errors).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates the operation should not be retried (permanent errors).
	ErrorClassFatal
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyFetchError decides whether a failed load is worth retrying.
//
// Fatal: cancellation, malformed documents, 4xx other than 408/429.
// Retryable: 5xx, 408, 429, timeouts and connection resets.
// Anything else is unknown and is not retried.
func ClassifyFetchError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassFatal
	}
	var pe *danmaku.ParseError
	if errors.Is(err, ErrParse) || errors.As(err, &pe) {
		return ErrorClassFatal
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status >= 500, fe.Status == http.StatusTooManyRequests, fe.Status == http.StatusRequestTimeout:
			return ErrorClassRetryable
		default:
			return ErrorClassFatal
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrorClassRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// per-attempt timeout; the caller's own deadline is checked by the retry loop
		return ErrorClassRetryable
	}

	lower := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection reset",
		"connection refused",
		"no route to host",
		"network unreachable",
		"temporary failure in name resolution",
		"unexpected eof",
		"broken pipe",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassRetryable
		}
	}
	return ErrorClassUnknown
}

// IsRetryableError checks if an error should trigger retry logic.
func IsRetryableError(err error) bool {
	return ClassifyFetchError(err) == ErrorClassRetryable
}
