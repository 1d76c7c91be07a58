package hotplug

import (
	"errors"
	"sync"
	"time"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// ErrAccessClosed is returned by Inputs after Close.
var ErrAccessClosed = errors.New("MIDI access already closed")

// Access implements contracts.Access for hosts that can only enumerate
// inputs. Every Subscribe gets its own Watcher.
type Access struct {
	list     ListFunc
	interval time.Duration
	logger   contracts.Logger
	release  func() error

	mu       sync.Mutex
	closed   bool
	watchers map[*Watcher]struct{}
}

// NewAccess builds a polled access handle. release, if not nil, is called
// once on Close after all watchers have been stopped.
func NewAccess(list ListFunc, interval time.Duration, logger contracts.Logger, release func() error) *Access {
	return &Access{
		list:     list,
		interval: interval,
		logger:   logger,
		release:  release,
		watchers: make(map[*Watcher]struct{}),
	}
}

// Inputs enumerates the current inputs.
func (a *Access) Inputs() ([]contracts.DeviceInfo, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil, ErrAccessClosed
	}
	return a.list()
}

// Subscribe starts a poller delivering hot-plug events to handler.
func (a *Access) Subscribe(handler func(contracts.HotPlugEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return func() {}
	}

	w := Start(a.list, a.interval, a.logger, handler)
	a.watchers[w] = struct{}{}
	return func() {
		a.mu.Lock()
		delete(a.watchers, w)
		a.mu.Unlock()
		w.Stop()
	}
}

// Close stops every poller, waits for them to exit and releases the host
// resources.
func (a *Access) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	watchers := a.watchers
	a.watchers = nil
	a.mu.Unlock()

	for w := range watchers {
		w.Stop()
		<-w.Done()
	}
	if a.release != nil {
		return a.release()
	}
	return nil
}
