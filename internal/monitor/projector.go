package monitor

import "github.com/leandrodaf/midimonitor/sdk/contracts"

// Default explanations, matching the labels the application shows.
const (
	DetailUnsupported       = "MIDI not supported"
	DetailAwaitingUser      = "Connect MIDI"
	DetailConnecting        = "Requesting MIDI access"
	DetailNoInputs          = "No MIDI input found, plug in a device"
	DetailDisconnected      = "MIDI device disconnected"
	DetailAccessDenied      = "Failed to access MIDI"
	DetailFacilityFailed    = "MIDI facility failed"
	DetailAccessUnavailable = "MIDI facility unavailable"
)

var stateReasons = map[contracts.State]contracts.Reason{
	contracts.StateUnsupported:  contracts.ReasonUnsupported,
	contracts.StateAwaitingUser: contracts.ReasonPermissionPending,
	contracts.StateConnecting:   contracts.ReasonPermissionPending,
	contracts.StateConnected:    contracts.ReasonNone,
	contracts.StateNoInputs:     contracts.ReasonNoInputs,
	contracts.StateDenied:       contracts.ReasonAccessDenied,
	contracts.StateDisconnected: contracts.ReasonDeviceDisconnected,
}

var stateDetails = map[contracts.State]string{
	contracts.StateUnsupported:  DetailUnsupported,
	contracts.StateAwaitingUser: DetailAwaitingUser,
	contracts.StateConnecting:   DetailConnecting,
	contracts.StateNoInputs:     DetailNoInputs,
	contracts.StateDenied:       DetailAccessDenied,
	contracts.StateDisconnected: DetailDisconnected,
}

// project maps a state machine state to the status seen by presentation.
// An empty detail is replaced by the state's default text.
func project(state contracts.State, detail string, inputs int) contracts.ConnectivityStatus {
	reason, ok := stateReasons[state]
	if !ok {
		reason = contracts.ReasonAccessDenied
	}
	if reason == contracts.ReasonNone {
		return contracts.ConnectivityStatus{Connected: true, Reason: contracts.ReasonNone, Inputs: inputs}
	}
	if detail == "" {
		detail = stateDetails[state]
	}
	return contracts.ConnectivityStatus{Connected: false, Reason: reason, Detail: detail, Inputs: inputs}
}
