package contracts

import (
	"errors"
	"fmt"
)

// Errors hosts return from RequestAccess to classify a failure.
var (
	ErrAccessDenied      = errors.New("MIDI access denied")
	ErrAccessUnavailable = errors.New("MIDI access facility unavailable")
)

// AccessErrorKind classifies a failed access request.
type AccessErrorKind int

const (
	AccessUnknown AccessErrorKind = iota
	AccessDenied
	AccessUnavailable
)

func (k AccessErrorKind) String() string {
	switch k {
	case AccessDenied:
		return "denied"
	case AccessUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// AccessError is a classified failure of the access facility.
type AccessError struct {
	Kind AccessErrorKind
	Err  error
}

// NewAccessError classifies err by the sentinel errors it wraps.
func NewAccessError(err error) *AccessError {
	kind := AccessUnknown
	switch {
	case errors.Is(err, ErrAccessDenied):
		kind = AccessDenied
	case errors.Is(err, ErrAccessUnavailable):
		kind = AccessUnavailable
	}
	return &AccessError{Kind: kind, Err: err}
}

func (e *AccessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("MIDI access %s", e.Kind)
	}
	return fmt.Sprintf("MIDI access %s: %v", e.Kind, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
