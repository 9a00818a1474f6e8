// ABOUTME: Errors contained by the dispatcher: handler failures and bad payloads
// ABOUTME: Both are reported as diagnostics instead of aborting the read loop

package events

import (
	"errors"
	"fmt"
)

var (
	// ErrHandler matches any *HandlerError.
	ErrHandler = errors.New("handler failed")
	// ErrDataIntegrity matches any *DataIntegrityError.
	ErrDataIntegrity = errors.New("malformed event payload")
)

// HandlerError wraps an error returned by, or a panic raised in, one handler.
type HandlerError struct {
	ID       ID
	Selector Selector
	Err      error
	// Panic holds the recovered value when the handler panicked.
	Panic any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s on %s panicked: %v", e.ID, e.Selector, e.Panic)
	}
	return fmt.Sprintf("handler %s on %s: %v", e.ID, e.Selector, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Is matches ErrHandler.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandler
}

// DataIntegrityError describes one record, or the whole payload when Index is
// negative, that could not be read.
type DataIntegrityError struct {
	URI    string
	Index  int
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("%s: payload %s", e.URI, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s: record %d: field %q %s", e.URI, e.Index, e.Field, e.Reason)
	default:
		return fmt.Sprintf("%s: record %d %s", e.URI, e.Index, e.Reason)
	}
}

// Is matches ErrDataIntegrity.
func (e *DataIntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}
