package monitor

import (
	"fmt"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// probe negotiates with the host once and reports whether a MIDI access
// facility exists. Absence is a normal outcome, never an error.
func probe(host contracts.Host, logger contracts.Logger) (c contracts.Capability) {
	if host == nil {
		return contracts.Unavailable("no MIDI host configured")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("MIDI host negotiation panicked", logger.Field().String("panic", fmt.Sprint(r)))
			c = contracts.Unavailable("MIDI host negotiation failed")
		}
	}()

	c = host.Negotiate()
	if !c.Available {
		if c.Reason == "" {
			c.Reason = "MIDI not supported"
		}
		return c
	}
	if c.Access == nil {
		return contracts.Unavailable("MIDI host exposes no access facility")
	}
	return c
}
