// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and carries user commands back out
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
	"github.com/Resonate-Protocol/sounddevice/pkg/metrics"
)

// CommandKind is what the user asked for
type CommandKind int

const (
	// CommandToggle starts a stopped device or stops a running one
	CommandToggle CommandKind = iota
	// CommandGain sets the output gain to Gain percent
	CommandGain
	// CommandQuit ends the program
	CommandQuit
)

// Command is a user request from the TUI
type Command struct {
	Kind CommandKind
	Gain int
}

// Controls carries commands from the TUI to the program driving the device
type Controls struct {
	Commands chan Command
}

// NewControls creates a new command channel
func NewControls() *Controls {
	return &Controls{Commands: make(chan Command, 10)}
}

// send never blocks the UI; commands are dropped when nobody listens
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

// StatusMsg updates TUI state. Nil fields are left unchanged.
type StatusMsg struct {
	Snapshot *metrics.Snapshot
	Mode     string
	Level    *float32
}

// ChangeMsg reports a device change notification
type ChangeMsg struct {
	Kind device.ChangeKind
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, gain int) Model {
	return Model{
		gain:     gain,
		mode:     "idle",
		controls: controls,
	}
}

// Run creates the TUI program. The caller runs it and feeds it StatusMsg
// and ChangeMsg through Send.
func Run(controls *Controls, gain int) *tea.Program {
	return tea.NewProgram(NewModel(controls, gain), tea.WithAltScreen())
}
