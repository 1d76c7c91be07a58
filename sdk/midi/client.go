// Package midi is the entry point of the MIDI connectivity monitor SDK.
package midi

import (
	"github.com/leandrodaf/midimonitor/internal/monitor"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// NewMonitor creates a connectivity monitor with the specified options.
// It applies default options, resolves the platform host and starts the
// monitor. The returned monitor never prompts the user on its own; call
// Connect in response to a user action.
//
// Returns:
//   - contracts.Monitor: The running monitor. Call Close when done.
//   - error: ErrUnsupportedDriver when an unknown driver name was given.
func NewMonitor(opts ...contracts.Option) (contracts.Monitor, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	host, err := resolveHost(&options)
	if err != nil {
		return nil, err
	}

	return monitor.New(host, monitor.Config{
		Logger:            options.Logger,
		PermissionTimeout: options.PermissionTimeout,
	}), nil
}

// NewHost resolves the platform host the same way NewMonitor does, for
// callers that need direct access to the host, such as device listings.
func NewHost(opts ...contracts.Option) (contracts.Host, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return resolveHost(&options)
}
