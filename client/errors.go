package client

import (
	"errors"
	"fmt"
	"time"
)

// DefaultRetryAfter is used when a 429 response carries no parsable
// Retry-After header.
const DefaultRetryAfter = 30 * time.Second

// RateLimitError signals an HTTP 429 from the fullnode. RetryAfter comes
// from the Retry-After header (seconds), or DefaultRetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// FetchError covers every non-429 failure: transport errors, bad status
// codes, undecodable bodies. Status is 0 when no response was received.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch failed: status %d", e.Status)
	}
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a RateLimitError and returns the
// cooldown to apply.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
