package crystalcache

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed outbound request
type Kind int

const (
	// KindTimeout means the request exceeded its deadline
	KindTimeout Kind = iota + 1
	// KindNetwork means the connection could not be made or broke mid-flight
	KindNetwork
	// KindHTTP means the server answered with a non-2xx status
	KindHTTP
	// KindDecode means the response body was not valid JSON
	KindDecode
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Sentinel errors for errors.Is matching against a RequestError
var (
	ErrTimeout = errors.New("request timed out")
	ErrNetwork = errors.New("network failure")
	ErrHTTP    = errors.New("http error")
	ErrDecode  = errors.New("decode error")
)

// RequestError is returned by the client once retries are exhausted
type RequestError struct {
	Kind       Kind
	Method     string
	URL        string
	Status     int
	StatusText string
	Timeout    time.Duration
	Err        error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("request timed out: %s (%s)", e.URL, e.Timeout)
	case KindHTTP:
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
	case KindNetwork:
		if e.Err != nil {
			return fmt.Sprintf("network failure: %s: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("network failure: %s", e.URL)
	case KindDecode:
		return fmt.Sprintf("decode response: %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("request failed: %s: %v", e.URL, e.Err)
	}
}

// Unwrap returns the underlying transport error, if any
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTP:
		return e.Kind == KindHTTP
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// Retryable reports whether the failure is transient
func (e *RequestError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindNetwork
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(method, url string, timeout time.Duration, inner error) *RequestError {
	return &RequestError{
		Kind:    KindTimeout,
		Method:  method,
		URL:     url,
		Timeout: timeout,
		Err:     inner,
	}
}

// NewNetworkError creates a connection-level error
func NewNetworkError(method, url string, inner error) *RequestError {
	return &RequestError{
		Kind:   KindNetwork,
		Method: method,
		URL:    url,
		Err:    inner,
	}
}

// NewHTTPError creates an error for a non-2xx response
func NewHTTPError(method, url string, status int, statusText string) *RequestError {
	return &RequestError{
		Kind:       KindHTTP,
		Method:     method,
		URL:        url,
		Status:     status,
		StatusText: statusText,
	}
}

// NewDecodeError creates an error for a malformed response body
func NewDecodeError(method, url string, inner error) *RequestError {
	return &RequestError{
		Kind:   KindDecode,
		Method: method,
		URL:    url,
		Err:    inner,
	}
}

// IsRetryable reports whether err is a transient RequestError
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable()
	}
	return false
}
