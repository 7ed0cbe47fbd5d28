package extract

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned in targeted mode when no entry matches the target.
var ErrNoMatch = errors.New("no entry matches target")

// StreamError reports a failure reading or writing one entry. In sweep mode
// the first StreamError aborts the run.
type StreamError struct {
	// Entry is the archive name of the failing entry.
	Entry string

	// Op is the step that failed: "open", "read", "resolve" or "write".
	Op string

	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entry, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
