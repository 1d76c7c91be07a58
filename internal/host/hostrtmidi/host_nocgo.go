//go:build !cgo
// +build !cgo

package hostrtmidi

import "github.com/leandrodaf/midimonitor/sdk/contracts"

type dummyHost struct {
	logger contracts.Logger
}

// New returns a host reporting rtmidi as unavailable; rtmidi needs cgo.
func New(options *contracts.MonitorOptions) contracts.Host {
	options.Logger.Info("Using dummy rtmidi host for a build without cgo")
	return &dummyHost{logger: options.Logger}
}

func (h *dummyHost) Negotiate() contracts.Capability {
	h.logger.Warn("Negotiate called on dummy rtmidi host")
	return contracts.Unavailable("rtmidi requires cgo")
}
