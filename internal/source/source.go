// Package source retrieves balances snapshots. Every failure it reports is a
// *LoadError; no retry happens here.
package source

import (
	"context"
	"fmt"

	"balances/internal/core"
)

// Fetcher returns one freshly decoded snapshot per call.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (core.Snapshot, error)
}

// Load operations recorded in LoadError.Op.
const (
	OpRequest = "request"
	OpStatus  = "status"
	OpRead    = "read"
	OpDecode  = "decode"
)

// LoadError is a transport failure, a non-success upstream status or a
// malformed body.
type LoadError struct {
	Op     string
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load balances: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("load balances from %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StatusError is wrapped by a LoadError when the upstream answers non-2xx.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Message)
}
