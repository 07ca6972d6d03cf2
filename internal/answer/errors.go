package answer

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned while the pipeline is still being built.
	ErrNotReady = errors.New("pipeline not ready")
	// ErrTimeout matches any UpstreamError caused by a deadline.
	ErrTimeout = errors.New("upstream call timed out")
)

// UpstreamError is a failed call to the vector index or the model.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports deadline failures, including client-side network
// timeouts, as ErrTimeout.
func (e *UpstreamError) Is(target error) bool {
	if target != ErrTimeout {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// Timeout reports whether the failure was a deadline.
func (e *UpstreamError) Timeout() bool { return errors.Is(e, ErrTimeout) }
