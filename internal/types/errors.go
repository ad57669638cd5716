package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrMaxRetries          = errors.New("max retries exceeded")
	ErrUnsupportedEngine   = errors.New("unsupported search engine")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrBrowserClosed       = errors.New("browser has been shut down")
	ErrRuleNotFound        = errors.New("rule not found")
	ErrInvalidRule         = errors.New("invalid rule")
	ErrEmptyKeyword        = errors.New("keyword is required")
)

// NetworkError is returned when no response was received at all
// (DNS failure, refused or reset connection, timeout).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *NetworkError) Retryable() bool { return true }

// HTTPError is returned when a response arrived with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration // from the Retry-After header, if any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error for %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Blocked reports a 403, which usually means anti-bot protection kicked in.
func (e *HTTPError) Blocked() bool { return e.StatusCode == http.StatusForbidden }

// RateLimited reports a 429.
func (e *HTTPError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Retryable reports whether another attempt may succeed. Every HTTP failure
// is retried under the same bounded policy, 403 and 429 included.
func (e *HTTPError) Retryable() bool { return true }

// BrowserInitError is returned when the shared headless browser fails to start.
type BrowserInitError struct {
	Err error
}

func (e *BrowserInitError) Error() string {
	return fmt.Sprintf("browser init failed: %v", e.Err)
}

func (e *BrowserInitError) Unwrap() error { return e.Err }

func (e *BrowserInitError) Retryable() bool { return true }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsRetryable reports whether another attempt after err may succeed. A shut
// down browser and a malformed URL are final; typed errors decide for
// themselves; anything else is retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrBrowserClosed) || errors.Is(err, ErrInvalidURL) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}
