package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leandrodaf/midimonitor/internal/logger"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"github.com/leandrodaf/midimonitor/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()

	monitor, err := midi.NewMonitor(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI monitor", log.Field().Error("error", err))
		return
	}
	defer monitor.Close()

	monitor.Watch(func(status contracts.ConnectivityStatus) {
		if status.Connected {
			fmt.Printf("✓ MIDI Ready (%d inputs)\n", status.Inputs)
			return
		}
		fmt.Printf("%s [%s]\n", status.Detail, status.Reason)
	})

	// Stands in for a "Connect MIDI" button press.
	monitor.Connect()

	fmt.Println("Watching MIDI inputs... Press Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
