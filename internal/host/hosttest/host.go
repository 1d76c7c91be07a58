// Package hosttest provides a scripted, in-memory MIDI host for tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// Host is a scriptable contracts.Host. The zero value is not usable; call New.
type Host struct {
	mu sync.Mutex

	capable        bool
	reason         string
	noPermissions  bool
	permission     contracts.PermissionState
	permissionErr  error
	permissionWait chan struct{}
	negotiations   int

	// Access scripting. Each RequestAccess consumes the next scripted outcome;
	// when none is queued the request succeeds with defaultInputs.
	outcomes      []outcome
	defaultInputs int
	requests      []contracts.AccessRequest
	inFlight      int
	maxInFlight   int
	accesses      []*Access
	requested     chan contracts.AccessRequest
	enumGate      chan struct{}
}

type outcome struct {
	err     error
	inputs  int
	release chan struct{}
}

// New returns a capable host without a permission-query facility.
func New() *Host {
	return &Host{
		capable:       true,
		noPermissions: true,
		requested:     make(chan contracts.AccessRequest, 64),
	}
}

// Incapable makes Negotiate report the MIDI facility as absent.
func (h *Host) Incapable(reason string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capable = false
	h.reason = reason
	return h
}

// WithPermission installs a permission querier answering state, err.
func (h *Host) WithPermission(state contracts.PermissionState, err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.noPermissions = false
	h.permission = state
	h.permissionErr = err
	return h
}

// BlockPermission makes permission queries wait until the returned func is
// called or the query context ends.
func (h *Host) BlockPermission() (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.noPermissions = false
	ch := make(chan struct{})
	h.permissionWait = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// WithInputs sets the input count used when no outcome is queued.
func (h *Host) WithInputs(n int) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultInputs = n
	return h
}

// Succeed queues a successful access with n inputs.
func (h *Host) Succeed(n int) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, outcome{inputs: n})
	return h
}

// Fail queues a failed access returning err.
func (h *Host) Fail(err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, outcome{err: err})
	return h
}

// Hold queues a successful access with n inputs that stays pending until the
// returned func is called, like a native consent dialog left open.
func (h *Host) Hold(n int) (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{})
	h.outcomes = append(h.outcomes, outcome{inputs: n, release: ch})
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// HoldFailure queues a pending access that fails with err once released.
func (h *Host) HoldFailure(err error) (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{})
	h.outcomes = append(h.outcomes, outcome{err: err, release: ch})
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// HoldEnumeration makes the first Inputs call of the next granted access
// wait until the returned func is called, leaving the session subscribed
// but not yet counted.
func (h *Host) HoldEnumeration() (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{})
	h.enumGate = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Negotiate implements contracts.Host.
func (h *Host) Negotiate() contracts.Capability {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.negotiations++
	if !h.capable {
		return contracts.Unavailable(h.reason)
	}
	c := contracts.Capability{Available: true, Access: requester{h}}
	if !h.noPermissions {
		c.Permissions = querier{h}
	}
	return c
}

// Negotiations returns how many times Negotiate was called.
func (h *Host) Negotiations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.negotiations
}

// Requests returns a copy of every access request seen so far.
func (h *Host) Requests() []contracts.AccessRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]contracts.AccessRequest, len(h.requests))
	copy(out, h.requests)
	return out
}

// MaxInFlight returns the highest number of concurrently pending requests.
func (h *Host) MaxInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxInFlight
}

// Requested delivers every access request as it arrives.
func (h *Host) Requested() <-chan contracts.AccessRequest {
	return h.requested
}

// LastAccess returns the most recently granted access handle, or nil.
func (h *Host) LastAccess() *Access {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.accesses) == 0 {
		return nil
	}
	return h.accesses[len(h.accesses)-1]
}

// Accesses returns every granted access handle.
func (h *Host) Accesses() []*Access {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Access, len(h.accesses))
	copy(out, h.accesses)
	return out
}

type querier struct{ h *Host }

func (q querier) QueryPermission(ctx context.Context, name string) (contracts.PermissionState, error) {
	q.h.mu.Lock()
	wait := q.h.permissionWait
	state, err := q.h.permission, q.h.permissionErr
	q.h.mu.Unlock()

	if name != contracts.MIDIPermissionName {
		return contracts.PermissionPrompt, fmt.Errorf("unsupported permission name %q", name)
	}
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return contracts.PermissionPrompt, ctx.Err()
		}
	}
	return state, err
}

type requester struct{ h *Host }

func (r requester) RequestAccess(ctx context.Context, req contracts.AccessRequest) (contracts.Access, error) {
	h := r.h
	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
	next := outcome{inputs: h.defaultInputs}
	if len(h.outcomes) > 0 {
		next = h.outcomes[0]
		h.outcomes = h.outcomes[1:]
	}
	h.mu.Unlock()

	select {
	case h.requested <- req:
	default:
	}

	defer func() {
		h.mu.Lock()
		h.inFlight--
		h.mu.Unlock()
	}()

	if next.release != nil {
		<-next.release
	}
	if next.err != nil {
		return nil, next.err
	}

	a := newAccess(next.inputs)
	h.mu.Lock()
	a.gate, h.enumGate = h.enumGate, nil
	h.accesses = append(h.accesses, a)
	h.mu.Unlock()
	return a, nil
}

// Access is a scripted contracts.Access.
type Access struct {
	mu             sync.Mutex
	inputs         []contracts.DeviceInfo
	inputsErr      error
	handlers       map[int]func(contracts.HotPlugEvent)
	everRegistered []func(contracts.HotPlugEvent)
	nextHandler    int
	subscribes     int
	closed         bool
	enumerations   int
	gate           chan struct{}
}

func newAccess(n int) *Access {
	a := &Access{handlers: make(map[int]func(contracts.HotPlugEvent))}
	a.inputs = devices(n)
	return a
}

func devices(n int) []contracts.DeviceInfo {
	out := make([]contracts.DeviceInfo, n)
	for i := range out {
		out[i] = contracts.DeviceInfo{
			Name:         fmt.Sprintf("Test Keyboard %d", i+1),
			Manufacturer: "hosttest",
			EntityName:   fmt.Sprintf("Port %d", i+1),
		}
	}
	return out
}

// Inputs implements contracts.Access.
func (a *Access) Inputs() ([]contracts.DeviceInfo, error) {
	a.mu.Lock()
	gate := a.gate
	a.gate = nil
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.enumerations++
	if a.inputsErr != nil {
		return nil, a.inputsErr
	}
	out := make([]contracts.DeviceInfo, len(a.inputs))
	copy(out, a.inputs)
	return out, nil
}

// Subscribe implements contracts.Access.
func (a *Access) Subscribe(handler func(contracts.HotPlugEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscribes++
	id := a.nextHandler
	a.nextHandler++
	a.handlers[id] = handler
	a.everRegistered = append(a.everRegistered, handler)
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.handlers, id)
	}
}

// Close implements contracts.Access.
func (a *Access) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// SetInputs replaces the enumerated inputs with n devices without notifying.
func (a *Access) SetInputs(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputs = devices(n)
	a.inputsErr = nil
}

// FailInputs makes subsequent enumerations return err.
func (a *Access) FailInputs(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputsErr = err
}

// Plug sets the input count to n and fires a DevicesChanged event.
func (a *Access) Plug(n int) {
	a.SetInputs(n)
	a.Fire(contracts.DevicesChanged)
}

// Fire delivers an event of kind to every registered handler, synchronously.
// Handlers registered after Fire starts are not called.
func (a *Access) Fire(kind contracts.HotPlugKind) {
	a.mu.Lock()
	handlers := make([]func(contracts.HotPlugEvent), 0, len(a.handlers))
	for _, h := range a.handlers {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()

	ev := contracts.HotPlugEvent{Kind: kind, At: time.Now()}
	for _, h := range handlers {
		h(ev)
	}
}

// FireStale delivers an event to every handler ever registered, including
// unsubscribed ones, simulating notifications already in flight at teardown.
func (a *Access) FireStale(kind contracts.HotPlugKind) {
	a.mu.Lock()
	handlers := make([]func(contracts.HotPlugEvent), len(a.everRegistered))
	copy(handlers, a.everRegistered)
	a.mu.Unlock()

	ev := contracts.HotPlugEvent{Kind: kind, At: time.Now()}
	for _, h := range handlers {
		h(ev)
	}
}

// Handlers returns how many hot-plug handlers are registered.
func (a *Access) Handlers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handlers)
}

// Subscribes returns how many times Subscribe was called.
func (a *Access) Subscribes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subscribes
}

// Closed reports whether Close was called.
func (a *Access) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Enumerations returns how many times Inputs was called.
func (a *Access) Enumerations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enumerations
}
