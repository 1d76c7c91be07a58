package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leandrodaf/midimonitor/internal/config"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"gopkg.in/yaml.v3"
)

var ready = contracts.ConnectivityStatus{Connected: true, Reason: contracts.ReasonNone, Inputs: 2}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		status contracts.ConnectivityStatus
		want   []string
	}{
		{ready, []string{"✓ MIDI Ready", "2 inputs"}},
		{contracts.ConnectivityStatus{Reason: contracts.ReasonPermissionPending, Detail: "Connect MIDI"}, []string{"Connect MIDI"}},
		{contracts.ConnectivityStatus{Reason: contracts.ReasonAccessDenied, Detail: "Failed to access MIDI"}, []string{"✗ Failed to access MIDI", "access-denied"}},
	}
	for _, tt := range tests {
		got := statusLine(tt.status)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("statusLine(%+v) = %q, missing %q", tt.status, got, w)
			}
		}
	}
}

func TestRendererSkipsRepeatedStatus(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(config.OutputText, &buf)

	r.Status(ready)
	r.Status(ready)
	r.Status(contracts.ConnectivityStatus{Reason: contracts.ReasonDeviceDisconnected, Detail: "MIDI input disconnected"})

	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", lines, buf.String())
	}
}

func TestRendererJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := newRenderer(config.OutputJSON, &buf).Render(ready); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var got contracts.ConnectivityStatus
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != ready {
		t.Fatalf("got %+v, want %+v", got, ready)
	}
}

func TestRendererYAMLDevices(t *testing.T) {
	var buf bytes.Buffer
	devices := []contracts.DeviceInfo{{Name: "Keystation", Manufacturer: "M-Audio", EntityName: "USB"}}
	if err := newRenderer(config.OutputYAML, &buf).Devices(devices); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "---\n") {
		t.Fatalf("missing document separator:\n%s", buf.String())
	}
	var got []contracts.DeviceInfo
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 1 || got[0] != devices[0] {
		t.Fatalf("got %+v, want %+v", got, devices)
	}
}

func TestRendererTextDevices(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(config.OutputText, &buf)
	if err := r.Devices(nil); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if !strings.Contains(buf.String(), "No MIDI inputs found") {
		t.Fatalf("got %q", buf.String())
	}

	buf.Reset()
	if err := r.Devices([]contracts.DeviceInfo{{Name: "Keystation", Manufacturer: "M-Audio"}}); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	for _, w := range []string{"NAME", "Keystation", "M-Audio"} {
		if !strings.Contains(buf.String(), w) {
			t.Errorf("table missing %q:\n%s", w, buf.String())
		}
	}
}

func TestAwaitSettled(t *testing.T) {
	pending := contracts.ConnectivityStatus{Reason: contracts.ReasonPermissionPending, Detail: "Connect MIDI"}

	changes := make(chan contracts.ConnectivityStatus, 1)
	changes <- ready
	if got := awaitSettled(context.Background(), pending, changes, time.Second); got != ready {
		t.Errorf("got %+v, want the settled status", got)
	}

	idle := make(chan contracts.ConnectivityStatus)
	if got := awaitSettled(context.Background(), pending, idle, 10*time.Millisecond); got != pending {
		t.Errorf("got %+v, want pending after the wait", got)
	}

	if got := awaitSettled(context.Background(), ready, idle, time.Hour); got != ready {
		t.Errorf("a settled status must return immediately, got %+v", got)
	}
}
