// Package hotplug turns a polled input enumeration into discrete hot-plug
// events for hosts whose MIDI API has no change notifications.
package hotplug

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// DefaultInterval is used when a zero interval is requested.
const DefaultInterval = time.Second

// MaxConsecutiveFailures is how many enumeration errors in a row escalate to
// a FacilityFailed event.
const MaxConsecutiveFailures = 3

// ListFunc enumerates the inputs currently visible to the host.
type ListFunc func() ([]contracts.DeviceInfo, error)

// Watcher polls a ListFunc and notifies its handler whenever the set of
// inputs changes. A Watcher stops after emitting FacilityFailed.
type Watcher struct {
	list     ListFunc
	interval time.Duration
	logger   contracts.Logger
	handler  func(contracts.HotPlugEvent)

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start begins polling. The initial enumeration is taken synchronously so
// that only later changes produce events.
func Start(list ListFunc, interval time.Duration, logger contracts.Logger, handler func(contracts.HotPlugEvent)) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Watcher{
		list:     list,
		interval: interval,
		logger:   logger,
		handler:  handler,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	last, err := list()
	if err != nil {
		logger.Warn("initial input enumeration failed", logger.Field().Error("error", err))
	}
	go w.loop(fingerprint(last))
	return w
}

// Stop halts polling. It does not wait for the poll goroutine, so it is safe
// to call from inside the handler; use Done to wait. Calling it more than
// once is harmless.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// Done is closed once the poll goroutine has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) loop(last string) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		devices, err := w.list()
		if err != nil {
			failures++
			w.logger.Warn("input enumeration failed",
				w.logger.Field().Error("error", err),
				w.logger.Field().Int("consecutiveFailures", failures))
			if failures >= MaxConsecutiveFailures {
				w.emit(contracts.HotPlugEvent{Kind: contracts.FacilityFailed, At: time.Now()})
				return
			}
			continue
		}
		failures = 0

		current := fingerprint(devices)
		if current == last {
			continue
		}
		w.logger.Debug("input set changed", w.logger.Field().Int("inputs", len(devices)))
		last = current
		w.emit(contracts.HotPlugEvent{Kind: contracts.DevicesChanged, At: time.Now()})
	}
}

func (w *Watcher) emit(ev contracts.HotPlugEvent) {
	select {
	case <-w.stop:
		return
	default:
	}
	w.handler(ev)
}

// fingerprint identifies an enumeration by its sorted device names, so that
// a swap of one device for another with the same count is still a change.
func fingerprint(devices []contracts.DeviceInfo) string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.EntityName + "/" + d.Name
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}
