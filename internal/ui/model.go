// ABOUTME: Bubbletea model for the device monitor TUI
// ABOUTME: Defines display state and update logic
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/sounddevice/pkg/metrics"
)

// Model represents the TUI state
type Model struct {
	// Device
	snap    metrics.Snapshot
	hasSnap bool

	// Activity
	mode       string
	level      float32
	lastChange string
	changes    int

	// Controls
	gain     int
	controls *Controls

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case ChangeMsg:
		m.lastChange = msg.Kind.String()
		m.changes++
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStreams())
	b.WriteString(m.renderActivity())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders identity and state
func (m Model) renderHeader() string {
	if !m.hasSnap {
		return "┌─ Sound Device ───────────────────────────────────────┐\n" +
			"│ Waiting for device...                                │\n"
	}

	icon := "✗"
	state := "Unavailable"
	switch {
	case m.snap.Running:
		icon, state = "▶", "Running"
	case m.snap.Valid:
		icon, state = "■", "Stopped"
	}

	return fmt.Sprintf(`┌─ Sound Device ───────────────────────────────────────┐
│ Device: %-44s │
│ Vendor: %-44s │
│ State:  %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(m.snap.Name, 44), truncate(m.snap.Manufacturer+" ("+m.snap.Backend+")", 44), icon, state)
}

// renderStreams renders the native stream configurations
func (m Model) renderStreams() string {
	if !m.hasSnap {
		return ""
	}
	return fmt.Sprintf("│ Input:  %-44s │\n│ Output: %-44s │\n│ Rates:  %-44s │\n",
		streamText(m.snap.Input), streamText(m.snap.Output), truncate(ratesText(m.snap.SampleRates), 44))
}

// renderActivity renders mode, level and gain
func (m Model) renderActivity() string {
	level := int(m.level * 100)
	return fmt.Sprintf("│                                                      │\n"+
		"│ Mode:   %-44s │\n"+
		"│ Level:  [%s] %3d%%%-23s │\n"+
		"│ Gain:   [%s] %3d%%%-23s │\n",
		truncate(m.mode, 44),
		renderBar(level, 100, 20), level, "",
		renderBar(m.gain, 100, 20), m.gain, "")
}

// renderStats renders CPU usage and callback counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ CPU:    %5.1f%% (avg %5.1f%%)%-25s │
│ Calls:  %-10d Silence: %-8d Errors: %-8d │
│                                                      │
`, m.snap.CPU*100, m.snap.AverageCPU*100, "",
		m.snap.Callbacks, m.snap.Fallbacks, m.snap.DelegateErrors)
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   ID: %-46s │
│   Guard misses: %-36d │
│   Changes: %-4d last: %-30s │
`, truncate(m.snap.ID, 46), m.snap.GuardMisses, m.changes, truncate(m.lastChange, 30))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Start/Stop  ↑/↓:Gain  d:Debug  q:Quit          │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(Command{Kind: CommandQuit})
		return m, tea.Quit
	case " ":
		m.controls.send(Command{Kind: CommandToggle})
	case "up":
		m.gain = min(m.gain+5, 100)
		m.controls.send(Command{Kind: CommandGain, Gain: m.gain})
	case "down":
		m.gain = max(m.gain-5, 0)
		m.controls.send(Command{Kind: CommandGain, Gain: m.gain})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Snapshot != nil {
		m.snap = *msg.Snapshot
		m.hasSnap = true
	}
	if msg.Mode != "" {
		m.mode = msg.Mode
	}
	if msg.Level != nil {
		m.level = max(0, min(1, *msg.Level))
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func streamText(s metrics.Stream) string {
	if s.Channels == 0 {
		return "none"
	}
	return fmt.Sprintf("%s %dHz %s (period %d)", channelName(s.Channels), s.SampleRate, s.SampleFormat, s.PeriodFrames)
}

func ratesText(rates []int) string {
	if len(rates) == 0 {
		return "unknown"
	}
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = fmt.Sprint(r)
	}
	return strings.Join(parts, ", ")
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}
