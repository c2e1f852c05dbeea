package domain

import (
	"errors"
	"fmt"
)

// ErrUpstream is matched by every UpstreamError via errors.Is.
var ErrUpstream = errors.New("upstream request failed")

// UpstreamError is a non-success HTTP response from the upstream API.
// It is never retried.
type UpstreamError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s %s: %s", e.Method, e.Endpoint, e.Status)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// PartialFetchError records batches that failed while assembling a complete set.
// It is attached to results and logged, not returned as a failure.
type PartialFetchError struct {
	Expected int   `json:"expected"`
	Fetched  int   `json:"fetched"`
	Err      error `json:"-"`
}

func (e *PartialFetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("partial fetch: got %d of %d records", e.Fetched, e.Expected)
	}
	return fmt.Sprintf("partial fetch: got %d of %d records: %v", e.Fetched, e.Expected, e.Err)
}

func (e *PartialFetchError) Unwrap() error {
	return e.Err
}

// Missing returns how many expected records were not fetched.
func (e *PartialFetchError) Missing() int {
	if e == nil || e.Expected < e.Fetched {
		return 0
	}
	return e.Expected - e.Fetched
}
