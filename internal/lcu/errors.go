// ABOUTME: Typed failures returned by the control-plane request client
// ABOUTME: Each failure kind has a sentinel so callers can match with errors.Is

package lcu

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindUnauthenticated means no credential could be resolved.
	KindUnauthenticated ErrorKind = iota + 1
	// KindUnreachable means the transport failed before a response arrived.
	KindUnreachable
	// KindRejected means the control plane answered with a non-2xx status,
	// including 401 and 403.
	KindRejected
	// KindMalformed means the response body was not valid JSON.
	KindMalformed
)

// Sentinels for errors.Is matching against a *RequestError.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnreachable     = errors.New("control plane unreachable")
	ErrRejected        = errors.New("request rejected")
	ErrMalformed       = errors.New("malformed response")
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindUnreachable:
		return ErrUnreachable
	case KindRejected:
		return ErrRejected
	case KindMalformed:
		return ErrMalformed
	default:
		return nil
	}
}

// RequestError describes why a single request failed. Status is only set for
// KindRejected.
type RequestError struct {
	Kind   ErrorKind
	Method string
	Path   string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *RequestError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of a request failure, or 0 when err is not a *RequestError.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return 0
}
