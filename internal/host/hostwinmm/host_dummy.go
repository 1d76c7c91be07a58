//go:build !windows
// +build !windows

package hostwinmm

import (
	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

type dummyHost struct {
	logger contracts.Logger
}

// New initializes a dummy winmm host for non-Windows systems.
func New(options *contracts.MonitorOptions) contracts.Host {
	options.Logger.Info("Using dummy winmm host for non-Windows system")
	return &dummyHost{
		logger: options.Logger,
	}
}

// Negotiate logs a warning and reports winmm as unavailable on this platform.
func (h *dummyHost) Negotiate() contracts.Capability {
	h.logger.Warn("Negotiate called on dummy winmm host")
	return contracts.Unavailable("winmm is not available on this platform")
}
