package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// Verdict is the Permission Oracle's answer: whether an automatic, promptless
// connection attempt is known to be safe.
type Verdict int

const (
	Undetermined Verdict = iota
	Granted
)

func (v Verdict) String() string {
	if v == Granted {
		return "granted"
	}
	return "undetermined"
}

// DefaultPermissionTimeout bounds the startup permission query.
const DefaultPermissionTimeout = 2 * time.Second

// queryPermission asks the host's permission facility about MIDI. Every
// failure, including a missing facility, a timeout or a panic, collapses to
// Undetermined.
func queryPermission(ctx context.Context, q contracts.PermissionQuerier, timeout time.Duration, logger contracts.Logger) Verdict {
	if q == nil {
		logger.Debug("permission query facility unavailable")
		return Undetermined
	}
	if timeout <= 0 {
		timeout = DefaultPermissionTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		state contracts.PermissionState
		err   error
	}
	ch := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: fmt.Errorf("permission query panicked: %v", r)}
			}
		}()
		state, err := q.QueryPermission(ctx, contracts.MIDIPermissionName)
		ch <- answer{state, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			logger.Debug("permission query failed", logger.Field().Error("error", a.err))
			return Undetermined
		}
		logger.Debug("permission query answered", logger.Field().String("permission", a.state.String()))
		if a.state == contracts.PermissionGranted {
			return Granted
		}
		return Undetermined
	case <-ctx.Done():
		logger.Debug("permission query abandoned", logger.Field().Error("error", ctx.Err()))
		return Undetermined
	}
}
