package main

import (
	"fmt"
	"os"
	"time"

	"github.com/leandrodaf/midimonitor/internal/config"
	"github.com/leandrodaf/midimonitor/internal/logger"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string

	watchConnect  bool
	statusConnect bool
	statusWait    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "midimon",
	Short:         "MIDI input connectivity monitor",
	Long:          `midimon reports whether a usable MIDI input is connected and follows hot-plug changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every connectivity change until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, watchConnect)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the connectivity status once it settles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, statusConnect, statusWait)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Request MIDI access and list the available inputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDevices(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "midimon v%s\n", version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/midimon/midimon.yaml)")
	flags.String("driver", contracts.DriverAuto, "MIDI driver: auto, rtmidi, coremidi, winmm, portmidi")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.StringP("output", "o", config.OutputText, "output format: text, yaml, json")

	watchCmd.Flags().BoolVar(&watchConnect, "connect", false, "request MIDI access immediately")
	statusCmd.Flags().BoolVar(&statusConnect, "connect", false, "request MIDI access before reporting")
	statusCmd.Flags().DurationVar(&statusWait, "wait", 2*time.Second, "how long to wait for the status to settle")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger shared by the
// monitor and the host.
func setup(cmd *cobra.Command) (*config.Config, contracts.Logger, []contracts.Option, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewZapLogger()
	for _, verr := range cfg.Validate() {
		log.Warn("Invalid configuration value", log.Field().Error("error", verr))
	}

	opts := append([]contracts.Option{contracts.WithLogger(log)}, cfg.Options()...)
	return cfg, log, opts, nil
}

func syncLogger(log contracts.Logger) {
	if s, ok := log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
