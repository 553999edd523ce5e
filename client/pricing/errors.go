package pricing

import (
	"errors"
	"fmt"
)

// InvalidInputError is returned when the caller supplies an unusable
// argument. It is never retried.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// UpstreamFetchError is returned when the pricing API could not be reached
// or answered with a non-2xx status. Callers may retry it.
type UpstreamFetchError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pricing upstream: HTTP %d: %s", e.StatusCode, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("pricing upstream: %s: %v", e.Reason, e.Err)
	}
	return "pricing upstream: " + e.Reason
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// IsInvalidInput reports whether err is, or wraps, an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is, or wraps, an UpstreamFetchError.
func IsUpstream(err error) bool {
	var target *UpstreamFetchError
	return errors.As(err, &target)
}
