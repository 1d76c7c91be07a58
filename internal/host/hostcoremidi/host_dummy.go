//go:build !darwin
// +build !darwin

package hostcoremidi

import "github.com/leandrodaf/midimonitor/sdk/contracts"

type DummyHost struct {
	logger contracts.Logger
}

func New(options *contracts.MonitorOptions) contracts.Host {
	options.Logger.Info("Using dummy CoreMIDI host for non-macOS system")
	return &DummyHost{
		logger: options.Logger,
	}
}

func (h *DummyHost) Negotiate() contracts.Capability {
	h.logger.Warn("Negotiate called on dummy CoreMIDI host")
	return contracts.Unavailable("CoreMIDI is not available on this platform")
}
