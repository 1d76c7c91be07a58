//go:build !portmidi
// +build !portmidi

package hostportmidi

import "github.com/leandrodaf/midimonitor/sdk/contracts"

type dummyHost struct {
	logger contracts.Logger
}

// New returns a host reporting PortMidi as unavailable. Build with
// -tags portmidi to enable it.
func New(options *contracts.MonitorOptions) contracts.Host {
	options.Logger.Info("Using dummy PortMidi host; build with -tags portmidi")
	return &dummyHost{logger: options.Logger}
}

func (h *dummyHost) Negotiate() contracts.Capability {
	h.logger.Warn("Negotiate called on dummy PortMidi host")
	return contracts.Unavailable("PortMidi support not compiled in")
}
