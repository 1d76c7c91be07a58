package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"github.com/leandrodaf/midimonitor/sdk/midi"
	"github.com/spf13/cobra"
)

// accessTimeout bounds the explicit access request made by devices.
const accessTimeout = 30 * time.Second

func runWatch(cmd *cobra.Command, connect bool) error {
	cfg, log, opts, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(log)

	mon, err := midi.NewMonitor(opts...)
	if err != nil {
		return err
	}
	defer mon.Close()

	r := newRenderer(cfg.Output, cmd.OutOrStdout())
	r.clock = time.Now

	unsubscribe := mon.Watch(r.Status)
	defer unsubscribe()

	if connect {
		mon.Connect()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("Shutting down MIDI monitor")
	return nil
}

func runStatus(cmd *cobra.Command, connect bool, wait time.Duration) error {
	cfg, log, opts, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(log)

	mon, err := midi.NewMonitor(opts...)
	if err != nil {
		return err
	}
	defer mon.Close()

	changes := make(chan contracts.ConnectivityStatus, 16)
	unsubscribe := mon.Watch(func(s contracts.ConnectivityStatus) {
		select {
		case changes <- s:
		default:
		}
	})
	defer unsubscribe()

	if connect {
		mon.Connect()
	}

	status := awaitSettled(cmd.Context(), mon.Status(), changes, wait)
	return newRenderer(cfg.Output, cmd.OutOrStdout()).Render(status)
}

// awaitSettled returns the first status that is no longer pending, or the
// latest one once wait elapses.
func awaitSettled(ctx context.Context, current contracts.ConnectivityStatus, changes <-chan contracts.ConnectivityStatus, wait time.Duration) contracts.ConnectivityStatus {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for current.Reason == contracts.ReasonPermissionPending {
		select {
		case s := <-changes:
			current = s
		case <-timer.C:
			return current
		case <-ctx.Done():
			return current
		}
	}
	return current
}

func runDevices(cmd *cobra.Command) error {
	cfg, log, opts, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(log)

	host, err := midi.NewHost(opts...)
	if err != nil {
		return err
	}

	capability := host.Negotiate()
	if !capability.Available || capability.Access == nil {
		return fmt.Errorf("MIDI not supported: %s", capability.Reason)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), accessTimeout)
	defer cancel()

	access, err := capability.Access.RequestAccess(ctx, contracts.AccessRequest{
		PromptAllowed: true,
		SessionID:     uuid.NewString(),
	})
	if err != nil {
		if errors.Is(err, contracts.ErrAccessDenied) {
			return fmt.Errorf("MIDI access denied: %w", err)
		}
		return fmt.Errorf("failed to access MIDI: %w", err)
	}
	defer func() {
		if cerr := access.Close(); cerr != nil {
			log.Warn("Closing MIDI access failed", log.Field().Error("error", cerr))
		}
	}()

	inputs, err := access.Inputs()
	if err != nil {
		return fmt.Errorf("failed to list MIDI inputs: %w", err)
	}
	return newRenderer(cfg.Output, cmd.OutOrStdout()).Devices(inputs)
}
