package contracts

import "time"

// Driver names accepted by WithDriver.
const (
	DriverAuto     = "auto"
	DriverRtMidi   = "rtmidi"
	DriverCoreMIDI = "coremidi"
	DriverWinMM    = "winmm"
	DriverPortMidi = "portmidi"
)

// MonitorOptions defines the configuration options for the connectivity monitor.
type MonitorOptions struct {
	Logger            Logger        // Logger for state transitions and host failures.
	LogLevel          LogLevel      // Level of logging to use.
	LogFilePath       string        // File path for logging if file logging is enabled.
	Host              Host          // Explicit host; overrides Driver when set.
	Driver            string        // Host driver name, DriverAuto picks one per OS.
	ClientName        string        // Client name announced to the MIDI subsystem.
	PermissionTimeout time.Duration // Upper bound for the startup permission query.
	PollInterval      time.Duration // Hot-plug polling interval for polling hosts.
}

// Option is a function that modifies MonitorOptions.
type Option func(*MonitorOptions)

// WithLogger sets the logger for the monitor.
func WithLogger(l Logger) Option {
	return func(opts *MonitorOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the monitor.
func WithLogLevel(level LogLevel) Option {
	return func(opts *MonitorOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs log output to a file.
func WithLogFile(path string) Option {
	return func(opts *MonitorOptions) {
		opts.LogFilePath = path
	}
}

// WithHost injects the platform host, bypassing driver selection.
func WithHost(h Host) Option {
	return func(opts *MonitorOptions) {
		opts.Host = h
	}
}

// WithDriver selects the host driver by name.
func WithDriver(name string) Option {
	return func(opts *MonitorOptions) {
		opts.Driver = name
	}
}

// WithClientName sets the client name used when registering with the MIDI subsystem.
func WithClientName(name string) Option {
	return func(opts *MonitorOptions) {
		opts.ClientName = name
	}
}

// WithPermissionTimeout bounds the startup permission query.
func WithPermissionTimeout(d time.Duration) Option {
	return func(opts *MonitorOptions) {
		opts.PermissionTimeout = d
	}
}

// WithPollInterval sets how often polling hosts recount inputs.
func WithPollInterval(d time.Duration) Option {
	return func(opts *MonitorOptions) {
		opts.PollInterval = d
	}
}
