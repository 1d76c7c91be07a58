package midi

import (
	"time"

	"github.com/leandrodaf/midimonitor/internal/logger"
	"github.com/leandrodaf/midimonitor/internal/monitor"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// Defaults applied by applyDefaultOptions.
const (
	DefaultClientName   = "GO MIDI Client"
	DefaultPollInterval = time.Second
)

// applyDefaultOptions sets default values for MonitorOptions if not explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) (contracts.MonitorOptions, error) {
	options := &contracts.MonitorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.Driver == "" {
		options.Driver = contracts.DriverAuto
	}
	if options.ClientName == "" {
		options.ClientName = DefaultClientName
	}
	if options.PermissionTimeout <= 0 {
		options.PermissionTimeout = monitor.DefaultPermissionTimeout
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
