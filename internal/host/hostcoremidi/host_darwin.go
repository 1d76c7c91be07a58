//go:build darwin
// +build darwin

// Package hostcoremidi exposes MIDI sources through macOS CoreMIDI.
package hostcoremidi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midimonitor/internal/host/hotplug"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// ErrCreateClient is returned when the CoreMIDI client cannot be created.
var ErrCreateClient = errors.New("error creating CoreMIDI client")

// Host negotiates access through a CoreMIDI client. CoreMIDI has no
// source-change callback in go-coremidi, so hot-plug is polled.
type Host struct {
	logger     contracts.Logger
	clientName string
	interval   time.Duration

	mu     sync.Mutex
	client coremidi.Client
	ready  bool
}

// New creates a CoreMIDI host. The client is registered lazily.
func New(options *contracts.MonitorOptions) contracts.Host {
	return &Host{
		logger:     options.Logger,
		clientName: options.ClientName,
		interval:   options.PollInterval,
	}
}

// Negotiate registers the CoreMIDI client; failure means MIDI is unusable.
func (h *Host) Negotiate() contracts.Capability {
	if err := h.ensureClient(); err != nil {
		h.logger.Warn("CoreMIDI unavailable", h.logger.Field().Error("error", err))
		return contracts.Unavailable(err.Error())
	}
	h.logger.Info("CoreMIDI client successfully created", h.logger.Field().String("clientName", h.clientName))
	return contracts.Capability{
		Available:   true,
		Permissions: hotplug.GrantedPermissions{},
		Access:      h,
	}
}

func (h *Host) ensureClient() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready {
		return nil
	}
	client, err := coremidi.NewClient(h.clientName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateClient, err)
	}
	h.client = client
	h.ready = true
	return nil
}

// RequestAccess verifies the source list can be read and returns a polled
// access handle.
func (h *Host) RequestAccess(ctx context.Context, req contracts.AccessRequest) (contracts.Access, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.ensureClient(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrAccessUnavailable, err)
	}
	if _, err := listSources(); err != nil {
		return nil, err
	}
	h.logger.Info("CoreMIDI access granted", h.logger.Field().String("sessionID", req.SessionID))
	return hotplug.NewAccess(listSources, h.interval, h.logger, nil), nil
}

func listSources() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		sourceEntity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         source.Name(),
			EntityName:   sourceEntity.Name(),
			Manufacturer: sourceEntity.Manufacturer(),
		}
	}
	return devices, nil
}
