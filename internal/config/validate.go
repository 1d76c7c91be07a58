package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

var knownDrivers = map[string]bool{
	contracts.DriverAuto:     true,
	contracts.DriverRtMidi:   true,
	contracts.DriverCoreMIDI: true,
	contracts.DriverWinMM:    true,
	contracts.DriverPortMidi: true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
	"fatal":   true,
}

var validOutputs = map[string]bool{
	OutputText: true,
	OutputYAML: true,
	OutputJSON: true,
}

const (
	minPermissionTimeout = 100 * time.Millisecond
	maxPermissionTimeout = 30 * time.Second
	minPollInterval      = 100 * time.Millisecond
	maxPollInterval      = time.Minute
)

// Validate checks the config for invalid values and returns all errors found.
// Out-of-range durations are clamped and still reported. Unknown enumerated
// values are reset to their defaults.
func (c *Config) Validate() []error {
	var errs []error
	def := Default()

	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if !knownDrivers[c.Driver] {
		errs = append(errs, fmt.Errorf("unknown driver %q, using %q", c.Driver, def.Driver))
		c.Driver = def.Driver
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid, using %q", c.LogLevel, def.LogLevel))
		c.LogLevel = def.LogLevel
	}

	c.Output = strings.ToLower(c.Output)
	if !validOutputs[c.Output] {
		errs = append(errs, fmt.Errorf("output %q is not one of text, yaml, json", c.Output))
		c.Output = def.Output
	}

	if strings.TrimSpace(c.ClientName) == "" {
		errs = append(errs, fmt.Errorf("client_name is empty, using %q", def.ClientName))
		c.ClientName = def.ClientName
	}

	c.PermissionTimeout, errs = clamp("permission_timeout", c.PermissionTimeout, minPermissionTimeout, maxPermissionTimeout, errs)
	c.PollInterval, errs = clamp("poll_interval", c.PollInterval, minPollInterval, maxPollInterval, errs)

	return errs
}

func clamp(key string, d, lo, hi time.Duration, errs []error) (time.Duration, []error) {
	switch {
	case d < lo:
		return lo, append(errs, fmt.Errorf("%s %v is below minimum %v, clamping", key, d, lo))
	case d > hi:
		return hi, append(errs, fmt.Errorf("%s %v exceeds maximum %v, clamping", key, d, hi))
	}
	return d, errs
}
