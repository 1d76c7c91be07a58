//go:build cgo
// +build cgo

// Package hostrtmidi exposes MIDI inputs through gomidi's rtmidi driver.
package hostrtmidi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/leandrodaf/midimonitor/internal/host/hotplug"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ExcludedPatterns lists virtual or system ports that never count as a
// usable input.
var ExcludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

// Host negotiates MIDI access through rtmidi. Each access session owns its
// own driver instance.
type Host struct {
	logger   contracts.Logger
	interval time.Duration
}

// New creates an rtmidi host.
func New(options *contracts.MonitorOptions) contracts.Host {
	return &Host{logger: options.Logger, interval: options.PollInterval}
}

// Negotiate checks that an rtmidi driver can be created.
func (h *Host) Negotiate() contracts.Capability {
	drv, err := rtmididrv.New()
	if err != nil {
		h.logger.Warn("rtmidi driver unavailable", h.logger.Field().Error("error", err))
		return contracts.Unavailable(fmt.Sprintf("rtmidi unavailable: %v", err))
	}
	if err := drv.Close(); err != nil {
		h.logger.Debug("closing probe driver failed", h.logger.Field().Error("error", err))
	}
	return contracts.Capability{
		Available:   true,
		Permissions: hotplug.GrantedPermissions{},
		Access:      h,
	}
}

// RequestAccess opens a fresh rtmidi driver.
func (h *Host) RequestAccess(ctx context.Context, req contracts.AccessRequest) (contracts.Access, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: rtmidi: %v", contracts.ErrAccessUnavailable, err)
	}
	h.logger.Info("rtmidi driver opened", h.logger.Field().String("sessionID", req.SessionID))

	var mu sync.Mutex
	list := func() ([]contracts.DeviceInfo, error) {
		mu.Lock()
		defer mu.Unlock()
		ins, err := drv.Ins()
		if err != nil {
			return nil, fmt.Errorf("list rtmidi inputs: %w", err)
		}
		return toDeviceInfo(ins, h.logger), nil
	}
	release := func() error {
		mu.Lock()
		defer mu.Unlock()
		return drv.Close()
	}
	return hotplug.NewAccess(list, h.interval, h.logger, release), nil
}

func toDeviceInfo(ins []drivers.In, logger contracts.Logger) []contracts.DeviceInfo {
	devices := make([]contracts.DeviceInfo, 0, len(ins))
	for _, in := range ins {
		name := in.String()
		if excluded(name) {
			logger.Debug("rtmidi input excluded", logger.Field().String("device", name))
			continue
		}
		devices = append(devices, contracts.DeviceInfo{
			Name:       name,
			EntityName: fmt.Sprintf("port %d", in.Number()),
		})
	}
	return devices
}

func excluded(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range ExcludedPatterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
