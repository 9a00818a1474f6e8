// ABOUTME: Connection and authentication failures of the event channel
// ABOUTME: Connection errors are retried; authentication errors end the channel

package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection matches any *ConnectionError.
	ErrConnection = errors.New("event channel connection failed")
	// ErrAuthentication matches any *AuthenticationError.
	ErrAuthentication = errors.New("event channel authentication failed")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("event channel closed")
)

// ConnectionError is a transport failure: refused, reset, or dropped.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("event channel connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is matches ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// AuthenticationError means the control plane refused the credential.
type AuthenticationError struct {
	Status int
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("event channel authentication rejected (status %d): %v", e.Status, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }
