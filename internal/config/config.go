// Package config loads midimon's settings from a yaml file, MIDIMON_
// environment variables and command-line flags.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Output formats accepted by the CLI.
const (
	OutputText = "text"
	OutputYAML = "yaml"
	OutputJSON = "json"
)

// EnvPrefix is prepended to every environment variable, e.g. MIDIMON_DRIVER.
const EnvPrefix = "MIDIMON"

type Config struct {
	Driver            string        `mapstructure:"driver"`
	ClientName        string        `mapstructure:"client_name"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFile           string        `mapstructure:"log_file"`
	PermissionTimeout time.Duration `mapstructure:"permission_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Output            string        `mapstructure:"output"`
}

func Default() *Config {
	return &Config{
		Driver:            contracts.DriverAuto,
		ClientName:        "GO MIDI Client",
		LogLevel:          "info",
		PermissionTimeout: 2 * time.Second,
		PollInterval:      time.Second,
		Output:            OutputText,
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"driver":    "driver",
	"log-level": "log_level",
	"log-file":  "log_file",
	"output":    "output",
}

// Load reads cfgFile, or midimon.yaml from the user config directory or the
// working directory when cfgFile is empty. A missing default file is not an
// error. Flags that were set explicitly override file and environment values.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	v := viper.New()

	v.SetDefault("driver", cfg.Driver)
	v.SetDefault("client_name", cfg.ClientName)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("permission_timeout", cfg.PermissionTimeout)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("output", cfg.Output)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("midimon")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options converts the configuration into monitor options.
func (c *Config) Options() []contracts.Option {
	opts := []contracts.Option{
		contracts.WithDriver(c.Driver),
		contracts.WithClientName(c.ClientName),
		contracts.WithLogLevel(contracts.ParseLogLevel(c.LogLevel)),
		contracts.WithPermissionTimeout(c.PermissionTimeout),
		contracts.WithPollInterval(c.PollInterval),
	}
	if c.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(c.LogFile))
	}
	return opts
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, strings.ToLower(EnvPrefix))
}
