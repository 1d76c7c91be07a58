package contracts

import (
	"context"
	"time"
)

// MIDIPermissionName is the token passed to PermissionQuerier.
const MIDIPermissionName = "midi"

// Host is the boundary with the platform MIDI facility.
type Host interface {
	// Negotiate is called exactly once, at startup.
	Negotiate() Capability
}

// Capability is the result of negotiating with a Host. Optional facilities
// are nil when the host does not provide them.
type Capability struct {
	Available   bool
	Reason      string            // Why the capability is unavailable.
	Permissions PermissionQuerier // nil when the host cannot query permissions.
	Access      AccessRequester   // nil when the capability is absent.
}

// Unavailable builds a Capability reporting the MIDI facility as absent.
func Unavailable(reason string) Capability {
	return Capability{Reason: reason}
}

// PermissionState is the host's tri-state answer to a permission query.
type PermissionState int

const (
	PermissionPrompt PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (p PermissionState) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "prompt"
	}
}

// PermissionQuerier asks the host for the current grant state without
// exercising the permission.
type PermissionQuerier interface {
	QueryPermission(ctx context.Context, name string) (PermissionState, error)
}

// AccessRequest carries the caller's intent to the access facility.
type AccessRequest struct {
	PromptAllowed bool   // False when the request is made without user action.
	SessionID     string // Correlation id for logs.
}

// AccessRequester acquires the MIDI facility. The platform alone decides
// whether a native prompt is shown.
type AccessRequester interface {
	RequestAccess(ctx context.Context, req AccessRequest) (Access, error)
}

// Access is a live handle to the MIDI facility.
type Access interface {
	Inputs() ([]DeviceInfo, error) // Currently enumerated inputs.
	// Subscribe registers a hot-plug handler. Events may arrive on any goroutine.
	Subscribe(handler func(HotPlugEvent)) (unsubscribe func())
	Close() error
}

// HotPlugKind classifies hot-plug notifications.
type HotPlugKind int

const (
	// DevicesChanged signals that the set of inputs may have changed.
	DevicesChanged HotPlugKind = iota
	// FacilityFailed signals that the MIDI facility itself stopped working.
	FacilityFailed
)

func (k HotPlugKind) String() string {
	if k == FacilityFailed {
		return "facility-failed"
	}
	return "devices-changed"
}

// HotPlugEvent is a discrete notification from the access handle.
type HotPlugEvent struct {
	Kind HotPlugKind
	At   time.Time
}
