package monitor

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midimonitor/internal/host/hosttest"
	"github.com/leandrodaf/midimonitor/internal/logger"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

const waitTimeout = 2 * time.Second

func newMonitor(t *testing.T, host contracts.Host) *Monitor {
	t.Helper()
	m := New(host, Config{Logger: logger.NewNopLogger(), PermissionTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// eventually polls cond until it holds or the wait timeout expires.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitStatus(t *testing.T, m *Monitor, want contracts.ConnectivityStatus) {
	t.Helper()
	eventually(t, fmt.Sprintf("status {connected:%v reason:%s}", want.Connected, want.Reason), func() bool {
		got := m.Status()
		return got.Connected == want.Connected && got.Reason == want.Reason
	})
}

func waitState(t *testing.T, m *Monitor, want contracts.State) {
	t.Helper()
	eventually(t, "state "+want.String(), func() bool { return m.State() == want })
}

// settle waits until the monitor has handled every queued connect and event
// and is no longer waiting on an access request.
func settle(t *testing.T, m *Monitor) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if len(m.connects) > 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		ack := make(chan struct{})
		if !m.post(event{kind: evFlush, ack: ack}) {
			return
		}
		select {
		case <-ack:
		case <-time.After(waitTimeout):
			t.Fatal("timed out flushing monitor events")
		}
		if m.State() != contracts.StateConnecting && len(m.connects) == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for the monitor to settle")
}

var (
	connected          = contracts.ConnectivityStatus{Connected: true, Reason: contracts.ReasonNone}
	unsupported        = contracts.ConnectivityStatus{Reason: contracts.ReasonUnsupported}
	permissionPending  = contracts.ConnectivityStatus{Reason: contracts.ReasonPermissionPending}
	noInputs           = contracts.ConnectivityStatus{Reason: contracts.ReasonNoInputs}
	deviceDisconnected = contracts.ConnectivityStatus{Reason: contracts.ReasonDeviceDisconnected}
	accessDenied       = contracts.ConnectivityStatus{Reason: contracts.ReasonAccessDenied}
)

func TestScenarioA_CapabilityAbsent(t *testing.T) {
	host := hosttest.New().Incapable("WebMIDI not supported")
	m := newMonitor(t, host)

	got := m.Status()
	if got.Connected || got.Reason != contracts.ReasonUnsupported {
		t.Fatalf("Status() = %+v, want unsupported", got)
	}
	if got.Detail != "WebMIDI not supported" {
		t.Errorf("Detail = %q, want host reason", got.Detail)
	}

	for i := 0; i < 5; i++ {
		m.Connect()
	}
	time.Sleep(20 * time.Millisecond)

	if got := m.State(); got != contracts.StateUnsupported {
		t.Fatalf("State() = %v, want unsupported", got)
	}
	if n := len(host.Requests()); n != 0 {
		t.Fatalf("access requested %d times on an unsupported host", n)
	}
}

func TestScenarioB_UndeterminedThenUserConnects(t *testing.T) {
	host := hosttest.New().WithPermission(contracts.PermissionPrompt, nil).Succeed(2)
	m := newMonitor(t, host)

	if got := m.Status(); got.Connected || got.Reason != contracts.ReasonPermissionPending {
		t.Fatalf("initial Status() = %+v, want permission-pending", got)
	}
	settle(t, m)
	if got := m.State(); got != contracts.StateAwaitingUser {
		t.Fatalf("State() after oracle = %v, want awaiting-user", got)
	}
	if n := len(host.Requests()); n != 0 {
		t.Fatalf("access requested %d times without user action", n)
	}

	m.Connect()
	waitStatus(t, m, connected)
	if got := m.Status(); got.Inputs != 2 || got.Detail != "" {
		t.Fatalf("Status() = %+v, want 2 inputs and no detail", got)
	}
	reqs := host.Requests()
	if len(reqs) != 1 || !reqs[0].PromptAllowed {
		t.Fatalf("requests = %+v, want one prompt-allowed request", reqs)
	}
}

func TestScenarioC_UnplugAndReplug(t *testing.T) {
	host := hosttest.New().Succeed(1)
	m := newMonitor(t, host)

	m.Connect()
	waitStatus(t, m, connected)

	access := host.LastAccess()
	access.Plug(0)
	waitStatus(t, m, deviceDisconnected)
	if got := m.State(); got != contracts.StateDisconnected {
		t.Fatalf("State() = %v, want disconnected", got)
	}

	access.Plug(1)
	waitStatus(t, m, connected)
}

func TestScenarioD_DeniedThenRetrySucceeds(t *testing.T) {
	host := hosttest.New().Fail(contracts.ErrAccessDenied).Succeed(1)
	m := newMonitor(t, host)

	m.Connect()
	waitStatus(t, m, accessDenied)
	if got := m.Status().Detail; got != DetailAccessDenied {
		t.Errorf("Detail = %q, want %q", got, DetailAccessDenied)
	}

	m.Connect()
	waitStatus(t, m, connected)
	if n := len(host.Requests()); n != 2 {
		t.Fatalf("access requested %d times, want 2", n)
	}
}

func TestScenarioE_NoInputsStaysSubscribed(t *testing.T) {
	host := hosttest.New().Succeed(0)
	m := newMonitor(t, host)

	m.Connect()
	waitStatus(t, m, noInputs)

	access := host.LastAccess()
	if access.Handlers() != 1 {
		t.Fatalf("handlers = %d, want 1", access.Handlers())
	}
	access.Plug(0)
	settle(t, m)
	if got := m.State(); got != contracts.StateNoInputs {
		t.Fatalf("State() = %v, want no-inputs after empty hot-plug", got)
	}

	access.Plug(3)
	waitStatus(t, m, connected)
	if got := m.Status().Inputs; got != 3 {
		t.Fatalf("Inputs = %d, want 3", got)
	}
}

func TestGrantedPermissionConnectsWithoutPrompt(t *testing.T) {
	for _, inputs := range []int{0, 2} {
		t.Run(fmt.Sprintf("%d inputs", inputs), func(t *testing.T) {
			host := hosttest.New().WithPermission(contracts.PermissionGranted, nil).Succeed(inputs)
			m := newMonitor(t, host)

			want := connected
			if inputs == 0 {
				want = noInputs
			}
			waitStatus(t, m, want)

			reqs := host.Requests()
			if len(reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(reqs))
			}
			if reqs[0].PromptAllowed {
				t.Fatal("automatic connection requested a prompt")
			}
			if reqs[0].SessionID == "" {
				t.Error("request carries no session id")
			}
		})
	}
}

func TestOracleFailuresNeverAutoConnect(t *testing.T) {
	tests := []struct {
		name string
		host *hosttest.Host
	}{
		{"no query facility", hosttest.New()},
		{"query error", hosttest.New().WithPermission(contracts.PermissionGranted, errors.New("unsupported permission"))},
		{"prompt", hosttest.New().WithPermission(contracts.PermissionPrompt, nil)},
		{"denied", hosttest.New().WithPermission(contracts.PermissionDenied, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMonitor(t, tt.host)
			settle(t, m)
			time.Sleep(10 * time.Millisecond)
			if got := m.Status(); got != project(contracts.StateAwaitingUser, "", 0) {
				t.Fatalf("Status() = %+v, want awaiting user", got)
			}
			if n := len(tt.host.Requests()); n != 0 {
				t.Fatalf("access requested %d times", n)
			}
		})
	}
}

func TestOracleTimeoutCollapsesToUndetermined(t *testing.T) {
	host := hosttest.New()
	release := host.BlockPermission()
	defer release()

	m := New(host, Config{Logger: logger.NewNopLogger(), PermissionTimeout: 20 * time.Millisecond})
	defer m.Close()

	time.Sleep(60 * time.Millisecond)
	settle(t, m)
	if got := m.State(); got != contracts.StateAwaitingUser {
		t.Fatalf("State() = %v, want awaiting-user", got)
	}
	if n := len(host.Requests()); n != 0 {
		t.Fatalf("access requested %d times", n)
	}
}

func TestConnectWhileConnectingOpensOnce(t *testing.T) {
	host := hosttest.New()
	release := host.Hold(1)
	m := newMonitor(t, host)

	m.Connect()
	waitState(t, m, contracts.StateConnecting)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Connect()
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	if n := len(host.Requests()); n != 1 {
		t.Fatalf("access requested %d times while one was pending, want 1", n)
	}

	release()
	waitStatus(t, m, connected)
	if got := host.MaxInFlight(); got != 1 {
		t.Fatalf("max in-flight requests = %d, want 1", got)
	}
	if n := len(host.Requests()); n != 1 {
		t.Fatalf("access requested %d times in total, want 1", n)
	}
}

func TestConnectOnOpenSessionKeepsSingleSubscription(t *testing.T) {
	host := hosttest.New().Succeed(1)
	m := newMonitor(t, host)

	m.Connect()
	waitStatus(t, m, connected)
	access := host.LastAccess()

	// The device went away without a notification; a connect recounts.
	access.SetInputs(0)
	m.Connect()
	waitStatus(t, m, deviceDisconnected)

	for i := 0; i < 5; i++ {
		m.Connect()
		settle(t, m)
	}

	if n := len(host.Requests()); n != 1 {
		t.Fatalf("access requested %d times, want 1", n)
	}
	if got := access.Subscribes(); got != 1 {
		t.Fatalf("Subscribe called %d times, want 1", got)
	}
	if got := access.Handlers(); got != 1 {
		t.Fatalf("handlers = %d, want 1", got)
	}
}

func TestHotPlugSequencesTrackLastCount(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 10; run++ {
		host := hosttest.New().Succeed(rng.Intn(3))
		m := newMonitor(t, host)

		m.Connect()
		settle(t, m)
		access := host.LastAccess()

		for step := 0; step < 30; step++ {
			n := rng.Intn(3)
			access.Plug(n)
			settle(t, m)

			got := m.Status()
			if got.Connected != (n > 0) {
				t.Fatalf("run %d step %d: count %d but Status() = %+v", run, step, n, got)
			}
			if !got.Valid() {
				t.Fatalf("run %d step %d: invalid status %+v", run, step, got)
			}
			if got.Inputs != n {
				t.Fatalf("run %d step %d: Inputs = %d, want %d", run, step, got.Inputs, n)
			}
		}
		_ = m.Close()
	}
}

func TestNoInputsAndDisconnectedReasonsDiffer(t *testing.T) {
	host := hosttest.New().Succeed(0)
	m := newMonitor(t, host)
	m.Connect()
	waitStatus(t, m, noInputs)

	access := host.LastAccess()
	access.Plug(1)
	waitStatus(t, m, connected)
	access.Plug(0)
	waitStatus(t, m, deviceDisconnected)
}

func TestUnknownAndUnavailableFailuresPresentAsDenied(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		detail string
	}{
		{"unknown", errors.New("NotSupportedError"), DetailAccessDenied},
		{"unavailable", contracts.ErrAccessUnavailable, DetailAccessUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := hosttest.New().Fail(tt.err).Succeed(1)
			m := newMonitor(t, host)

			m.Connect()
			waitStatus(t, m, accessDenied)
			if got := m.Status().Detail; got != tt.detail {
				t.Fatalf("Detail = %q, want %q", got, tt.detail)
			}

			m.Connect()
			waitStatus(t, m, connected)
		})
	}
}

func TestFacilityFailureClosesSession(t *testing.T) {
	host := hosttest.New().Succeed(2).Succeed(1)
	m := newMonitor(t, host)

	m.Connect()
	waitStatus(t, m, connected)
	first := host.LastAccess()

	first.Fire(contracts.FacilityFailed)
	waitStatus(t, m, accessDenied)
	if got := m.Status().Detail; got != DetailFacilityFailed {
		t.Fatalf("Detail = %q, want %q", got, DetailFacilityFailed)
	}
	if !first.Closed() || first.Handlers() != 0 {
		t.Fatalf("failed session not released: closed=%v handlers=%d", first.Closed(), first.Handlers())
	}

	// Late events from the dead session must not revive it.
	first.SetInputs(4)
	first.FireStale(contracts.DevicesChanged)
	settle(t, m)
	if got := m.State(); got != contracts.StateDenied {
		t.Fatalf("State() = %v after stale event, want denied", got)
	}

	m.Connect()
	waitStatus(t, m, connected)
	if len(host.Accesses()) != 2 {
		t.Fatalf("accesses = %d, want 2", len(host.Accesses()))
	}
}

func TestEnumerationErrorDuringHotPlugIsFacilityFailure(t *testing.T) {
	host := hosttest.New().Succeed(1)
	m := newMonitor(t, host)
	m.Connect()
	waitStatus(t, m, connected)

	access := host.LastAccess()
	access.FailInputs(errors.New("device list unavailable"))
	access.Fire(contracts.DevicesChanged)
	waitStatus(t, m, accessDenied)
	if !access.Closed() {
		t.Fatal("session not closed after enumeration failure")
	}
}

func TestCloseReleasesSessionAndDropsLateEvents(t *testing.T) {
	host := hosttest.New().Succeed(1)
	m := New(host, Config{Logger: logger.NewNopLogger()})

	var mu sync.Mutex
	var seen []contracts.ConnectivityStatus
	m.Subscribe(func(s contracts.ConnectivityStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	m.Connect()
	waitStatus(t, m, connected)
	access := host.LastAccess()

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !access.Closed() || access.Handlers() != 0 {
		t.Fatalf("session not released: closed=%v handlers=%d", access.Closed(), access.Handlers())
	}

	mu.Lock()
	before := len(seen)
	mu.Unlock()

	access.SetInputs(0)
	access.FireStale(contracts.DevicesChanged)
	m.Connect()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	after := len(seen)
	mu.Unlock()
	if after != before {
		t.Fatalf("callbacks after Close: %d new", after-before)
	}
	if got := m.Status(); !got.Connected {
		t.Fatalf("Status() changed after Close: %+v", got)
	}
}

func TestAccessGrantedAfterCloseIsReleased(t *testing.T) {
	host := hosttest.New()
	release := host.Hold(1)
	m := New(host, Config{Logger: logger.NewNopLogger()})

	m.Connect()
	<-host.Requested()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	release()
	eventually(t, "late access to be closed", func() bool {
		a := host.LastAccess()
		return a != nil && a.Closed() && a.Handlers() == 0
	})
}

func TestHotPlugDuringConnectingIsNotLost(t *testing.T) {
	host := hosttest.New()
	release := host.Hold(1)
	m := newMonitor(t, host)

	m.Connect()
	<-host.Requested()
	release()

	// The session is subscribed and enumerated but its opened event may
	// still be queued.
	eventually(t, "subscribed access handle", func() bool {
		a := host.LastAccess()
		return a != nil && a.Handlers() == 1 && a.Enumerations() >= 1
	})
	host.LastAccess().Plug(0)

	waitStatus(t, m, deviceDisconnected)
}

func TestFacilityFailureDuringConnectingNeverShowsConnected(t *testing.T) {
	host := hosttest.New().WithInputs(1)
	release := host.HoldEnumeration()
	m := newMonitor(t, host)

	var mu sync.Mutex
	var seen []contracts.ConnectivityStatus
	m.Subscribe(func(s contracts.ConnectivityStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	m.Connect()
	eventually(t, "subscribed access handle", func() bool {
		a := host.LastAccess()
		return a != nil && a.Handlers() == 1
	})
	a := host.LastAccess()
	// Queued ahead of the opened event, which waits on the enumeration.
	a.Fire(contracts.FacilityFailed)
	release()

	waitStatus(t, m, accessDenied)
	settle(t, m)

	mu.Lock()
	defer mu.Unlock()
	for i, s := range seen {
		if s.Connected {
			t.Fatalf("change %d reported connected on a failed facility: %+v", i, seen)
		}
	}
	if last := seen[len(seen)-1]; last.Detail != DetailFacilityFailed {
		t.Fatalf("last change = %+v, want detail %q", last, DetailFacilityFailed)
	}
	if !a.Closed() || a.Handlers() != 0 {
		t.Fatalf("failed session not released: closed=%v handlers=%d", a.Closed(), a.Handlers())
	}
}

func TestWatchDeliversCurrentStatusFirst(t *testing.T) {
	host := hosttest.New()
	release := host.Hold(1)
	m := newMonitor(t, host)

	m.Connect()
	<-host.Requested()
	waitState(t, m, contracts.StateConnecting)

	ch := make(chan contracts.ConnectivityStatus, 16)
	unsubscribe := m.Watch(func(s contracts.ConnectivityStatus) { ch <- s })
	defer unsubscribe()

	select {
	case got := <-ch:
		if got.Reason != contracts.ReasonPermissionPending || got.Detail != DetailConnecting {
			t.Fatalf("first delivery = %+v, want the connecting status", got)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the current status")
	}

	release()
	select {
	case got := <-ch:
		if !got.Connected || got.Inputs != 1 {
			t.Fatalf("second delivery = %+v, want connected with 1 input", got)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the connected status")
	}
}

func TestWatchNeverEndsOnStaleStatus(t *testing.T) {
	for i := 0; i < 20; i++ {
		host := hosttest.New()
		release := host.Hold(1)
		m := newMonitor(t, host)

		m.Connect()
		<-host.Requested()

		var mu sync.Mutex
		var last contracts.ConnectivityStatus
		go release()
		m.Watch(func(s contracts.ConnectivityStatus) {
			mu.Lock()
			last = s
			mu.Unlock()
		})

		waitStatus(t, m, connected)
		settle(t, m)
		mu.Lock()
		got := last
		mu.Unlock()
		if got != m.Status() {
			t.Fatalf("run %d: last delivery %+v, current status %+v", i, got, m.Status())
		}
		_ = m.Close()
	}
}

func TestWatchAfterCloseDeliversNothing(t *testing.T) {
	m := newMonitor(t, hosttest.New())
	_ = m.Close()

	called := false
	m.Watch(func(contracts.ConnectivityStatus) { called = true })()
	if called {
		t.Fatal("callback after Close")
	}
}

func TestSubscribeReceivesEveryChangeInOrder(t *testing.T) {
	host := hosttest.New().Succeed(1)
	m := newMonitor(t, host)

	ch := make(chan contracts.ConnectivityStatus, 16)
	unsubscribe := m.Subscribe(func(s contracts.ConnectivityStatus) { ch <- s })

	m.Connect()
	waitStatus(t, m, connected)
	host.LastAccess().Plug(0)
	waitStatus(t, m, deviceDisconnected)

	want := []contracts.Reason{
		contracts.ReasonPermissionPending, // connecting: detail changes
		contracts.ReasonNone,
		contracts.ReasonDeviceDisconnected,
	}
	for i, reason := range want {
		select {
		case got := <-ch:
			if got.Reason != reason {
				t.Fatalf("change %d reason = %s, want %s", i, got.Reason, reason)
			}
			if !got.Valid() {
				t.Fatalf("change %d invalid: %+v", i, got)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("timed out waiting for change %d", i)
		}
	}

	unsubscribe()
	unsubscribe()
	host.LastAccess().Plug(2)
	waitStatus(t, m, connected)
	select {
	case got := <-ch:
		t.Fatalf("callback after unsubscribe: %+v", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeNilIsNoop(t *testing.T) {
	m := newMonitor(t, hosttest.New())
	m.Subscribe(nil)()
}

func TestInitialStatusIsPermissionPending(t *testing.T) {
	m := newMonitor(t, hosttest.New())
	if got := m.Status(); got.Connected || got.Reason != permissionPending.Reason {
		t.Fatalf("Status() = %+v, want permission-pending", got)
	}
}

func TestNilHostIsUnsupported(t *testing.T) {
	m := newMonitor(t, nil)
	if got := m.Status(); got.Reason != unsupported.Reason {
		t.Fatalf("Status() = %+v, want unsupported", got)
	}
	m.Connect()
	time.Sleep(10 * time.Millisecond)
	if got := m.State(); got != contracts.StateUnsupported {
		t.Fatalf("State() = %v, want unsupported", got)
	}
}
