//go:build windows
// +build windows

// Package hostwinmm exposes MIDI inputs through the Windows multimedia API.
package hostwinmm

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/leandrodaf/midimonitor/internal/host/hotplug"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"golang.org/x/sys/windows"
)

const mmsyserrNoError = 0

// Struct representing MIDI device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
)

// Host negotiates access through winmm. winmm has no device-arrival
// callback for inputs, so hot-plug is polled.
type Host struct {
	logger   contracts.Logger
	interval time.Duration
}

// New creates a winmm host.
func New(options *contracts.MonitorOptions) contracts.Host {
	options.Logger.Info("MIDI host created for Windows")
	return &Host{logger: options.Logger, interval: options.PollInterval}
}

// Negotiate checks that winmm.dll and its MIDI input entry points load.
func (h *Host) Negotiate() contracts.Capability {
	if err := loadProcs(); err != nil {
		h.logger.Warn("winmm unavailable", h.logger.Field().Error("error", err))
		return contracts.Unavailable(err.Error())
	}
	return contracts.Capability{
		Available:   true,
		Permissions: hotplug.GrantedPermissions{},
		Access:      h,
	}
}

func loadProcs() error {
	if err := winmm.Load(); err != nil {
		return fmt.Errorf("load winmm.dll: %w", err)
	}
	if err := procMidiInGetNumDevs.Find(); err != nil {
		return fmt.Errorf("find midiInGetNumDevs: %w", err)
	}
	if err := procMidiInGetDevCaps.Find(); err != nil {
		return fmt.Errorf("find midiInGetDevCapsW: %w", err)
	}
	return nil
}

// RequestAccess returns a polled access handle over midiInGetNumDevs.
func (h *Host) RequestAccess(ctx context.Context, req contracts.AccessRequest) (contracts.Access, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := loadProcs(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrAccessUnavailable, err)
	}
	h.logger.Info("winmm access granted", h.logger.Field().String("sessionID", req.SessionID))
	list := func() ([]contracts.DeviceInfo, error) {
		return listDevices(h.logger), nil
	}
	return hotplug.NewAccess(list, h.interval, h.logger, nil), nil
}

// listDevices lists the available MIDI input devices
func listDevices(logger contracts.Logger) []contracts.DeviceInfo {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != mmsyserrNoError {
			// The device vanished between the count and the query.
			logger.Debug("Failed to get information for MIDI device", logger.Field().Int("deviceID", int(i)))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices
}
