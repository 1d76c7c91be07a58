package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

var errNilAccess = errors.New("host returned no access handle")

// session owns the live access handle and its hot-plug subscription.
type session struct {
	id          string
	access      contracts.Access
	unsubscribe func()
	inputs      int // Count from the enumeration taken when the session opened.

	closeOnce sync.Once
	closeErr  error
}

// openSession acquires the MIDI facility, registers handler for hot-plug
// events and enumerates the inputs. The handler is registered before the
// enumeration so that no change can slip between the two.
func openSession(ctx context.Context, requester contracts.AccessRequester, req contracts.AccessRequest, handler func(contracts.HotPlugEvent)) (*session, *contracts.AccessError) {
	if requester == nil {
		return nil, contracts.NewAccessError(contracts.ErrAccessUnavailable)
	}

	access, err := requestAccess(ctx, requester, req)
	if err != nil {
		return nil, contracts.NewAccessError(err)
	}
	if access == nil {
		return nil, contracts.NewAccessError(errNilAccess)
	}

	s := &session{id: req.SessionID, access: access}
	s.unsubscribe = access.Subscribe(handler)

	devices, err := access.Inputs()
	if err != nil {
		_ = s.close()
		return nil, contracts.NewAccessError(fmt.Errorf("enumerate inputs: %w", err))
	}
	s.inputs = len(devices)
	return s, nil
}

func requestAccess(ctx context.Context, requester contracts.AccessRequester, req contracts.AccessRequest) (access contracts.Access, err error) {
	defer func() {
		if r := recover(); r != nil {
			access, err = nil, fmt.Errorf("access request panicked: %v", r)
		}
	}()
	return requester.RequestAccess(ctx, req)
}

// count re-enumerates the inputs in full.
func (s *session) count() (int, error) {
	devices, err := s.access.Inputs()
	if err != nil {
		return 0, err
	}
	return len(devices), nil
}

// close releases the hot-plug subscription before the handle.
func (s *session) close() error {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.closeErr = s.access.Close()
	})
	return s.closeErr
}
