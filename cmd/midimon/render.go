package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/leandrodaf/midimonitor/internal/config"
	"github.com/leandrodaf/midimonitor/sdk/contracts"
	"gopkg.in/yaml.v3"
)

var (
	readyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ade80"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15"))
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// renderer writes statuses and device lists in the configured format.
// Status is safe for concurrent use and skips a status identical to the
// last one it wrote.
type renderer struct {
	format string
	out    io.Writer
	clock  func() time.Time

	mu      sync.Mutex
	last    contracts.ConnectivityStatus
	written bool
}

func newRenderer(format string, out io.Writer) *renderer {
	return &renderer{format: format, out: out}
}

// Status renders s unless it repeats the previous status.
func (r *renderer) Status(s contracts.ConnectivityStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written && s == r.last {
		return
	}
	r.last, r.written = s, true
	_ = r.render(s)
}

// Render writes s unconditionally.
func (r *renderer) Render(s contracts.ConnectivityStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.render(s)
}

func (r *renderer) render(s contracts.ConnectivityStatus) error {
	switch r.format {
	case config.OutputYAML:
		return r.yamlDoc(s)
	case config.OutputJSON:
		return json.NewEncoder(r.out).Encode(s)
	}

	line := statusLine(s)
	if r.clock != nil {
		line = dimStyle.Render(r.clock().Format("15:04:05")) + "  " + line
	}
	_, err := fmt.Fprintln(r.out, line)
	return err
}

// Devices writes the input list.
func (r *renderer) Devices(devices []contracts.DeviceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if devices == nil {
		devices = []contracts.DeviceInfo{}
	}
	switch r.format {
	case config.OutputYAML:
		return r.yamlDoc(devices)
	case config.OutputJSON:
		return json.NewEncoder(r.out).Encode(devices)
	}

	if len(devices) == 0 {
		_, err := fmt.Fprintln(r.out, problemStyle.Render("No MIDI inputs found"))
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "MANUFACTURER", "ENTITY").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, d := range devices {
		t.Row(d.Name, d.Manufacturer, d.EntityName)
	}
	_, err := fmt.Fprintln(r.out, t.String())
	return err
}

func (r *renderer) yamlDoc(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if _, err := io.WriteString(r.out, "---\n"); err != nil {
		return err
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// statusLine is the one-line text rendering of s.
func statusLine(s contracts.ConnectivityStatus) string {
	switch s.Reason {
	case contracts.ReasonNone:
		return readyStyle.Render("✓ MIDI Ready") + "  " + dimStyle.Render(plural(s.Inputs, "input"))
	case contracts.ReasonPermissionPending:
		return pendingStyle.Render(s.Detail)
	default:
		return problemStyle.Render("✗ "+s.Detail) + "  " + dimStyle.Render(string(s.Reason))
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %s", n, noun+"s")
}
