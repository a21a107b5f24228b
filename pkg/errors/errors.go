// Package errors classifies infrastructure errors for retry decisions.
package errors

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Retryable is implemented by errors that know whether they are transient
type Retryable interface {
	IsRetryable() bool
}

// ErrTransient marks an error as safe to retry
var ErrTransient = errors.New("transient error")

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"eof",
	"too many requests",
	"rate limit",
	"429",
	"502",
	"503",
	"504",
	"service unavailable",
	"bad gateway",
	"header not found",
}

// ShouldRetry reports whether err looks transient.
// Context cancellation is never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Transient wraps err so ShouldRetry reports true
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{e.err, ErrTransient} }
