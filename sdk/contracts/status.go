package contracts

// Reason explains why a MIDI input is not usable. It is ReasonNone whenever
// the status is connected.
type Reason string

const (
	ReasonNone               Reason = "none"
	ReasonUnsupported        Reason = "unsupported"
	ReasonPermissionPending  Reason = "permission-pending"
	ReasonNoInputs           Reason = "no-inputs"
	ReasonDeviceDisconnected Reason = "device-disconnected"
	ReasonAccessDenied       Reason = "access-denied"
)

// ConnectivityStatus is the single externally observed value of a Monitor.
// Each update fully replaces the previous one.
type ConnectivityStatus struct {
	Connected bool   `json:"connected" yaml:"connected"`
	Reason    Reason `json:"reason" yaml:"reason"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"` // Human-readable explanation, empty when connected.
	Inputs    int    `json:"inputs" yaml:"inputs"`                     // Input count of the most recent enumeration.
}

// Valid reports whether the status honours the connected/reason invariant.
func (s ConnectivityStatus) Valid() bool {
	if s.Connected {
		return s.Reason == ReasonNone
	}
	return s.Reason != ReasonNone && s.Reason != ""
}

// State is the internal state of the connectivity state machine.
type State int

const (
	StateUnsupported State = iota
	StateAwaitingUser
	StateConnecting
	StateConnected
	StateNoInputs
	StateDenied
	StateDisconnected
)

var stateNames = map[State]string{
	StateUnsupported:  "unsupported",
	StateAwaitingUser: "awaiting-user",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateNoInputs:     "no-inputs",
	StateDenied:       "denied",
	StateDisconnected: "disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// HasSession reports whether an access session is open in this state.
func (s State) HasSession() bool {
	return s == StateConnected || s == StateNoInputs || s == StateDisconnected
}
