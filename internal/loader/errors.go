package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the document does not exist. For per-iteration
	// documents it marks the end of the available data and is not a failure.
	ErrNotFound = errors.New("not found")

	// ErrMalformed means the document exists but lacks required fields or is
	// not valid JSON. Callers treat it like ErrNotFound after logging.
	ErrMalformed = errors.New("malformed document")
)

// TransportError is a network failure or an unexpected HTTP status. It is
// returned to the caller of the top-level operation and never retried.
type TransportError struct {
	Op         string
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAbsent reports whether err means "nothing to load": not found or
// malformed.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed)
}
