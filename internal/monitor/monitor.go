// Package monitor implements the MIDI connectivity state machine.
//
// All state transitions happen on a single event goroutine. The permission
// query, access requests and host hot-plug notifications run elsewhere and
// only ever post events to that goroutine, so re-enumerations never overlap
// and at most one access request is in flight.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// Config holds the monitor's dependencies.
type Config struct {
	Logger            contracts.Logger
	PermissionTimeout time.Duration
}

type eventKind int

const (
	evPermission eventKind = iota
	evOpened
	evHotPlug
	// evFlush is acknowledged once every earlier event has been handled.
	evFlush
	// evReplay delivers the current status to one subscriber.
	evReplay
)

type event struct {
	kind       eventKind
	generation uint64
	verdict    Verdict
	session    *session
	err        *contracts.AccessError
	hotplug    contracts.HotPlugEvent
	ack        chan struct{}
	subID      uint64
}

// Monitor is the connectivity state machine. It implements contracts.Monitor.
type Monitor struct {
	logger            contracts.Logger
	permissionTimeout time.Duration
	capability        contracts.Capability

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan event
	connects  chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.RWMutex
	state   contracts.State
	status  contracts.ConnectivityStatus
	subs    map[uint64]func(contracts.ConnectivityStatus)
	nextSub uint64

	// Owned by the event goroutine.
	session        *session
	generation     uint64
	pendingRecount bool
	pendingFailure bool
}

var _ contracts.Monitor = (*Monitor)(nil)

// New probes host and starts the event goroutine. The returned monitor is
// either terminally Unsupported or AwaitingUser; in the latter case the
// permission oracle is consulted in the background and, if it reports the
// permission as granted, a promptless connection is attempted.
func New(host contracts.Host, cfg Config) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		logger:            cfg.Logger,
		permissionTimeout: cfg.PermissionTimeout,
		ctx:               ctx,
		cancel:            cancel,
		events:            make(chan event, 16),
		connects:          make(chan struct{}, 1),
		done:              make(chan struct{}),
		subs:              make(map[uint64]func(contracts.ConnectivityStatus)),
	}

	m.capability = probe(host, m.logger)
	if !m.capability.Available {
		m.logger.Info("MIDI capability unavailable", m.logger.Field().String("reason", m.capability.Reason))
		m.state = contracts.StateUnsupported
		m.status = project(contracts.StateUnsupported, m.capability.Reason, 0)
		go m.run()
		return m
	}

	m.logger.Info("MIDI capability available",
		m.logger.Field().Bool("permissionQuery", m.capability.Permissions != nil))
	m.state = contracts.StateAwaitingUser
	m.status = project(contracts.StateAwaitingUser, "", 0)

	go m.run()
	go func() {
		verdict := queryPermission(m.ctx, m.capability.Permissions, m.permissionTimeout, m.logger)
		m.post(event{kind: evPermission, verdict: verdict})
	}()
	return m
}

// Status returns the current connectivity status.
func (m *Monitor) Status() contracts.ConnectivityStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// State returns the current state machine state.
func (m *Monitor) State() contracts.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers onChange for every subsequent status change. Callbacks
// run on the event goroutine, in order; they must not block and must not
// call Close.
func (m *Monitor) Subscribe(onChange func(contracts.ConnectivityStatus)) func() {
	if onChange == nil {
		return func() {}
	}
	_, unsubscribe := m.subscribe(onChange)
	return unsubscribe
}

// Watch is Subscribe preceded by one delivery of the current status. That
// first call is made on the event goroutine, so it never arrives after a
// newer change; it may repeat a status just delivered. Watch must not be
// called from a callback.
func (m *Monitor) Watch(onChange func(contracts.ConnectivityStatus)) func() {
	if onChange == nil {
		return func() {}
	}
	id, unsubscribe := m.subscribe(onChange)
	if !m.post(event{kind: evReplay, subID: id}) {
		m.logger.Debug("status replay skipped: monitor closed")
	}
	return unsubscribe
}

func (m *Monitor) subscribe(onChange func(contracts.ConnectivityStatus)) (uint64, func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = onChange
	m.mu.Unlock()

	var once sync.Once
	return id, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Connect asks for the access session to be opened. Calls made while a
// request is already queued or in flight coalesce into it.
func (m *Monitor) Connect() {
	select {
	case m.connects <- struct{}{}:
	default:
		m.logger.Debug("connect coalesced with a queued request")
	}
}

// Close tears the monitor down: the hot-plug subscription is released, the
// access handle closed and no callback fires after Close returns. Access
// requests still pending in the host are closed when they complete.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
	})
	<-m.done
	return nil
}

// post hands ev to the event goroutine. It reports false once the monitor
// is closed.
func (m *Monitor) post(ev event) bool {
	select {
	case <-m.ctx.Done():
		return false
	default:
	}
	select {
	case m.events <- ev:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Monitor) run() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			m.teardown()
			return
		case <-m.connects:
			m.handleConnect()
		case ev := <-m.events:
			switch ev.kind {
			case evPermission:
				m.handlePermission(ev.verdict)
			case evOpened:
				m.handleOpened(ev)
			case evHotPlug:
				m.handleHotPlug(ev)
			case evFlush:
				close(ev.ack)
			case evReplay:
				m.replay(ev.subID)
			}
		}
	}
}

func (m *Monitor) handleConnect() {
	switch state := m.state; {
	case state == contracts.StateUnsupported:
		m.logger.Debug("connect ignored: MIDI unsupported")
	case state == contracts.StateConnecting:
		m.logger.Debug("connect ignored: access request already in flight")
	case state.HasSession():
		m.logger.Debug("connect on open session, recounting inputs", m.logger.Field().String("sessionID", m.session.id))
		m.recount()
	default:
		m.beginOpen(true)
	}
}

func (m *Monitor) replay(id uint64) {
	m.mu.RLock()
	fn, ok := m.subs[id]
	status := m.status
	m.mu.RUnlock()
	if ok {
		fn(status)
	}
}

func (m *Monitor) handlePermission(v Verdict) {
	if m.state != contracts.StateAwaitingUser {
		m.logger.Debug("permission verdict ignored",
			m.logger.Field().String("verdict", v.String()),
			m.logger.Field().String("state", m.state.String()))
		return
	}
	if v != Granted {
		m.logger.Debug("permission undetermined, awaiting user")
		return
	}
	m.beginOpen(false)
}

// beginOpen starts the single in-flight access request.
func (m *Monitor) beginOpen(promptAllowed bool) {
	m.generation++
	gen := m.generation
	m.pendingRecount, m.pendingFailure = false, false

	req := contracts.AccessRequest{PromptAllowed: promptAllowed, SessionID: uuid.NewString()}
	m.logger.Info("requesting MIDI access",
		m.logger.Field().String("sessionID", req.SessionID),
		m.logger.Field().Bool("promptAllowed", promptAllowed))
	m.transition(contracts.StateConnecting, "", 0)

	handler := func(ev contracts.HotPlugEvent) {
		if !m.post(event{kind: evHotPlug, generation: gen, hotplug: ev}) {
			m.logger.Debug("hot-plug event dropped after close", m.logger.Field().String("sessionID", req.SessionID))
		}
	}

	go func() {
		s, err := openSession(m.ctx, m.capability.Access, req, handler)
		if !m.post(event{kind: evOpened, generation: gen, session: s, err: err}) && s != nil {
			m.logger.Debug("access granted after close, releasing", m.logger.Field().String("sessionID", req.SessionID))
			_ = s.close()
		}
	}()
}

func (m *Monitor) handleOpened(ev event) {
	if ev.generation != m.generation || m.state != contracts.StateConnecting {
		if ev.session != nil {
			_ = ev.session.close()
		}
		return
	}

	if ev.err != nil {
		m.openFailed(ev.err)
		return
	}

	m.session = ev.session
	m.logger.Info("MIDI access granted",
		m.logger.Field().String("sessionID", m.session.id),
		m.logger.Field().Int("inputs", m.session.inputs))

	failed, recount := m.pendingFailure, m.pendingRecount
	m.pendingRecount, m.pendingFailure = false, false

	// A failure reported while connecting wins over the opening count.
	if failed {
		m.facilityFailed(nil)
		return
	}
	m.apply(m.session.inputs)
	if recount {
		m.recount()
	}
}

func (m *Monitor) openFailed(err *contracts.AccessError) {
	fields := []contracts.Field{
		m.logger.Field().String("kind", err.Kind.String()),
		m.logger.Field().Error("error", err.Err),
	}
	detail := DetailAccessDenied
	switch err.Kind {
	case contracts.AccessDenied:
		m.logger.Warn("MIDI access denied", fields...)
	case contracts.AccessUnavailable:
		detail = DetailAccessUnavailable
		m.logger.Warn("MIDI access facility unavailable", fields...)
	default:
		m.logger.Error("MIDI access failed unexpectedly", fields...)
	}
	m.transition(contracts.StateDenied, detail, 0)
}

func (m *Monitor) handleHotPlug(ev event) {
	if ev.generation != m.generation {
		m.logger.Debug("hot-plug event from a previous session dropped")
		return
	}

	if m.state == contracts.StateConnecting {
		if ev.hotplug.Kind == contracts.FacilityFailed {
			m.pendingFailure = true
		} else {
			m.pendingRecount = true
		}
		return
	}
	if m.session == nil {
		m.logger.Debug("hot-plug event without an open session dropped")
		return
	}

	if ev.hotplug.Kind == contracts.FacilityFailed {
		m.facilityFailed(nil)
		return
	}
	m.recount()
}

// recount performs a full re-enumeration of the open session.
func (m *Monitor) recount() {
	n, err := m.session.count()
	if err != nil {
		m.facilityFailed(err)
		return
	}
	m.apply(n)
}

// apply moves a session-holding (or connecting) state according to the
// latest input count.
func (m *Monitor) apply(n int) {
	next := m.state
	switch m.state {
	case contracts.StateConnecting, contracts.StateNoInputs, contracts.StateDisconnected:
		if n > 0 {
			next = contracts.StateConnected
		} else if m.state == contracts.StateConnecting {
			next = contracts.StateNoInputs
		}
	case contracts.StateConnected:
		if n == 0 {
			next = contracts.StateDisconnected
		}
	default:
		return
	}
	m.transition(next, "", n)
}

func (m *Monitor) facilityFailed(err error) {
	id := ""
	if m.session != nil {
		id = m.session.id
	}
	fields := []contracts.Field{m.logger.Field().String("sessionID", id)}
	if err != nil {
		fields = append(fields, m.logger.Field().Error("error", err))
	}
	m.logger.Error("MIDI facility failed, closing session", fields...)
	m.closeSession()
	m.transition(contracts.StateDenied, DetailFacilityFailed, 0)
}

func (m *Monitor) closeSession() {
	if m.session == nil {
		return
	}
	if err := m.session.close(); err != nil {
		m.logger.Warn("closing MIDI access failed",
			m.logger.Field().String("sessionID", m.session.id),
			m.logger.Field().Error("error", err))
	}
	m.session = nil
}

func (m *Monitor) teardown() {
	m.closeSession()
	m.logger.Debug("MIDI monitor closed")
}

// transition replaces the current state and status and notifies subscribers
// when the status changed.
func (m *Monitor) transition(next contracts.State, detail string, inputs int) {
	status := project(next, detail, inputs)

	m.mu.Lock()
	prev := m.state
	changed := status != m.status
	m.state = next
	m.status = status
	var subs []func(contracts.ConnectivityStatus)
	if changed {
		subs = make([]func(contracts.ConnectivityStatus), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	if prev != next {
		m.logger.Info("MIDI connectivity state changed",
			m.logger.Field().String("from", prev.String()),
			m.logger.Field().String("to", next.String()),
			m.logger.Field().Int("inputs", inputs))
	}
	for _, fn := range subs {
		fn(status)
	}
}
