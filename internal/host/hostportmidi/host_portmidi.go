//go:build portmidi
// +build portmidi

// Package hostportmidi exposes MIDI inputs through PortMidi.
package hostportmidi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midimonitor/internal/host/hotplug"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"github.com/rakyll/portmidi"
)

// PortMidi is process-global, so every host shares one lock.
var pmMu sync.Mutex

// Host negotiates access through PortMidi.
type Host struct {
	logger   contracts.Logger
	interval time.Duration
}

// New creates a PortMidi host.
func New(options *contracts.MonitorOptions) contracts.Host {
	return &Host{logger: options.Logger, interval: options.PollInterval}
}

// Negotiate checks that PortMidi initializes.
func (h *Host) Negotiate() contracts.Capability {
	pmMu.Lock()
	defer pmMu.Unlock()
	if err := portmidi.Initialize(); err != nil {
		h.logger.Warn("PortMidi unavailable", h.logger.Field().Error("error", err))
		return contracts.Unavailable(fmt.Sprintf("PortMidi unavailable: %v", err))
	}
	if err := portmidi.Terminate(); err != nil {
		h.logger.Debug("PortMidi terminate failed", h.logger.Field().Error("error", err))
	}
	return contracts.Capability{
		Available:   true,
		Permissions: hotplug.GrantedPermissions{},
		Access:      h,
	}
}

// RequestAccess initializes PortMidi for the lifetime of the session.
func (h *Host) RequestAccess(ctx context.Context, req contracts.AccessRequest) (contracts.Access, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pmMu.Lock()
	err := portmidi.Initialize()
	pmMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: portmidi: %v", contracts.ErrAccessUnavailable, err)
	}
	h.logger.Info("PortMidi access granted", h.logger.Field().String("sessionID", req.SessionID))

	release := func() error {
		pmMu.Lock()
		defer pmMu.Unlock()
		return portmidi.Terminate()
	}
	return hotplug.NewAccess(listInputs, h.interval, h.logger, release), nil
}

// listInputs re-initializes PortMidi because its device list is a snapshot
// taken at Initialize.
func listInputs() ([]contracts.DeviceInfo, error) {
	pmMu.Lock()
	defer pmMu.Unlock()

	if err := portmidi.Terminate(); err != nil {
		return nil, fmt.Errorf("portmidi terminate: %w", err)
	}
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("portmidi initialize: %w", err)
	}

	var devices []contracts.DeviceInfo
	for i := 0; i < portmidi.CountDevices(); i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info == nil || !info.IsInputAvailable {
			continue
		}
		devices = append(devices, contracts.DeviceInfo{
			Name:       info.Name,
			EntityName: info.Interface,
		})
	}
	return devices, nil
}
