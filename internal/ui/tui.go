// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

// TUI runs the player interface and forwards stream callbacks to it
type TUI struct {
	program *tea.Program
}

// New creates a TUI for ctrl
func New(ctrl Controller, source, output string) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(ctrl, source, output), tea.WithAltScreen()),
	}
}

// Run blocks until the user quits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit stops the program
func (t *TUI) Quit() {
	t.program.Quit()
}

// FramePlaying reports the frame now playing. ref is disposed.
func (t *TUI) FramePlaying(ref *mvx.FrameRef) {
	nr := ref.Number()
	ref.Dispose()
	t.program.Send(StatusMsg{Frame: &nr})
}

// PlaybackEnded reports the last frame has started
func (t *TUI) PlaybackEnded() {
	t.program.Send(StatusMsg{Ended: true})
}

// PlaybackRestarted reports playback wrapped to an earlier frame
func (t *TUI) PlaybackRestarted() {
	t.program.Send(StatusMsg{Restarted: true})
}

// Error reports a stream error
func (t *TUI) Error(err error) {
	t.program.Send(StatusMsg{Err: err})
}
