package midi

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/leandrodaf/midimonitor/internal/host/hostcoremidi"
	"github.com/leandrodaf/midimonitor/internal/host/hostportmidi"
	"github.com/leandrodaf/midimonitor/internal/host/hostrtmidi"
	"github.com/leandrodaf/midimonitor/internal/host/hostwinmm"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// ErrUnsupportedDriver is returned when the requested host driver is unknown.
var ErrUnsupportedDriver = errors.New("unsupported MIDI driver")

// hostInitializers maps driver names to host constructors. Drivers that are
// not built for the current platform return a host whose capability is
// unavailable rather than failing here.
var hostInitializers = map[string]func(*contracts.MonitorOptions) contracts.Host{
	contracts.DriverRtMidi:   hostrtmidi.New,
	contracts.DriverCoreMIDI: hostcoremidi.New,
	contracts.DriverWinMM:    hostwinmm.New,
	contracts.DriverPortMidi: hostportmidi.New,
}

// autoDrivers picks the native driver per operating system.
var autoDrivers = map[string]string{
	"darwin":  contracts.DriverCoreMIDI,
	"windows": contracts.DriverWinMM,
}

// Drivers returns the accepted driver names, sorted.
func Drivers() []string {
	names := []string{contracts.DriverAuto}
	for name := range hostInitializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// driverFor resolves DriverAuto for goos.
func driverFor(name, goos string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" && name != contracts.DriverAuto {
		return name
	}
	if d, ok := autoDrivers[goos]; ok {
		return d
	}
	return contracts.DriverRtMidi
}

// resolveHost returns the explicit host if one was injected, otherwise the
// host for the configured driver.
func resolveHost(opts *contracts.MonitorOptions) (contracts.Host, error) {
	if opts.Host != nil {
		return opts.Host, nil
	}

	driver := driverFor(opts.Driver, runtime.GOOS)
	initializer, exists := hostInitializers[driver]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, opts.Driver)
	}
	opts.Logger.Debug("Using MIDI host driver", opts.Logger.Field().String("driver", driver))
	return initializer(opts), nil
}
