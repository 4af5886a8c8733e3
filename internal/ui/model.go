// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mvxplay/mvxplay-go/pkg/audio/player"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
	"github.com/mvxplay/mvxplay-go/pkg/stream"
)

const (
	volumeStep = 0.05
	speedStep  = 0.25
	seekSecs   = 5
	refresh    = 250 * time.Millisecond
)

// Controller is the playback surface the TUI drives, normally a *stream.Stream
type Controller interface {
	Info() mvx.SourceInfo
	Stats() stream.Stats
	Seek(frame int) error
	Pause()
	Resume()
	IsPaused() bool
	SetVolume(v float32)
	Volume() float32
	SetMuted(muted bool)
	Muted() bool
	SetSpeed(speed float64)
	Speed() float64
}

// Model represents the TUI state
type Model struct {
	ctrl Controller

	// Stream
	source string
	info   mvx.SourceInfo
	output string

	// Playback
	frame     int
	ended     bool
	restarts  int
	paused    bool
	volume    float32
	muted     bool
	speed     float64
	lastError string

	// Stats
	stats stream.Stats

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// StatusMsg reports stream callbacks to the TUI
type StatusMsg struct {
	Frame     *int
	Ended     bool
	Restarted bool
	Err       error
}

// NewModel creates a new TUI model
func NewModel(ctrl Controller, source, output string) Model {
	m := Model{
		ctrl:   ctrl,
		source: source,
		output: output,
		frame:  -1,
		volume: 1,
		speed:  1,
	}
	m.sync()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.sync()
		return m, tick()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// sync copies controller state into the model
func (m *Model) sync() {
	if m.ctrl == nil {
		return
	}
	m.info = m.ctrl.Info()
	m.stats = m.ctrl.Stats()
	m.paused = m.ctrl.IsPaused()
	m.volume = m.ctrl.Volume()
	m.muted = m.ctrl.Muted()
	m.speed = m.ctrl.Speed()
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Frame != nil {
		m.frame = *msg.Frame
		m.ended = false
	}
	if msg.Ended {
		m.ended = true
	}
	if msg.Restarted {
		m.restarts++
	}
	if msg.Err != nil {
		m.lastError = msg.Err.Error()
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "q" || msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.ctrl == nil {
		return m, nil
	}

	switch msg.String() {
	case " ", "p":
		if m.ctrl.IsPaused() {
			m.ctrl.Resume()
		} else {
			m.ctrl.Pause()
		}
	case "left":
		m.seek(-m.seekFrames())
	case "right":
		m.seek(m.seekFrames())
	case "home":
		m.seek(-m.frame)
	case "up", "+", "=":
		m.ctrl.SetVolume(clamp32(m.ctrl.Volume()+volumeStep, 0, 1))
	case "down", "-":
		m.ctrl.SetVolume(clamp32(m.ctrl.Volume()-volumeStep, 0, 1))
	case "m":
		m.ctrl.SetMuted(!m.ctrl.Muted())
	case "]":
		m.ctrl.SetSpeed(clamp64(m.ctrl.Speed()+speedStep, 0, player.MaxSpeed))
	case "[":
		m.ctrl.SetSpeed(clamp64(m.ctrl.Speed()-speedStep, 0, player.MaxSpeed))
	case "d":
		m.showDebug = !m.showDebug
	}

	m.sync()
	return m, nil
}

func (m Model) seekFrames() int {
	fps := m.info.FPS
	if fps <= 0 {
		fps = mvx.DefaultFPS
	}
	return int(fps * seekSecs)
}

// seek moves by delta frames from the frame now playing
func (m *Model) seek(delta int) {
	target := m.frame + delta
	if target < 0 {
		target = 0
	}
	if m.info.FrameCount > 0 && target >= m.info.FrameCount {
		target = m.info.FrameCount - 1
	}
	if err := m.ctrl.Seek(target); err != nil {
		m.lastError = err.Error()
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Width(9)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	helpStyle = lipgloss.NewStyle().Faint(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderControls(),
		m.renderStats(),
	}
	if m.showDebug {
		sections = append(sections, m.renderDebug())
	}
	if m.lastError != "" {
		sections = append(sections, warnStyle.Render("Error: "+truncate(m.lastError, 60)))
	}
	sections = append(sections, m.renderHelp())

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// renderHeader renders the source description
func (m Model) renderHeader() string {
	title := m.info.Title
	if title == "" {
		title = "(untitled)"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("MVX Player"),
		row("Source", truncate(m.source, 50)),
		row("Title", truncate(title, 50)),
		row("Output", m.output),
		"",
	)
}

// renderProgress renders the frame now playing
func (m Model) renderProgress() string {
	state := "Playing"
	switch {
	case m.ended:
		state = "Ended"
	case m.paused:
		state = "Paused"
	case m.frame < 0:
		state = "Buffering"
	}

	frame := "-"
	if m.frame >= 0 {
		frame = fmt.Sprintf("%d / %d", m.frame, m.info.FrameCount)
	}

	bar := ""
	if m.info.FrameCount > 0 && m.frame >= 0 {
		bar = renderBar(m.frame+1, m.info.FrameCount, 30)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		row("State", state),
		row("Frame", frame),
		row("", bar),
		row("Time", fmt.Sprintf("%s (%.2f fps, %d restarts)", m.position(), m.info.FPS, m.restarts)),
		"",
	)
}

// position converts the frame now playing to media time
func (m Model) position() time.Duration {
	if m.frame < 0 || m.info.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(m.frame) / m.info.FPS * float64(time.Second)).Round(10 * time.Millisecond)
}

// renderControls renders volume, mute and speed
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}
	vol := int(m.volume*100 + 0.5)

	return lipgloss.JoinVertical(lipgloss.Left,
		row("Volume", fmt.Sprintf("[%s] %d%%%s", renderBar(vol, 100, 10), vol, muteIcon)),
		row("Speed", fmt.Sprintf("%.2fx", m.speed)),
		row("Buffer", fmt.Sprintf("%dms (%d frames)", m.stats.Queued.Milliseconds(), m.stats.Tracked)),
		"",
	)
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return row("Stats", fmt.Sprintf("Read: %d  Played: %d  Skipped: %d  Dropped: %d",
		m.stats.FramesRead, m.stats.FramesPlayed,
		m.stats.FramesSkipped+m.stats.FramesSilent, m.stats.Player.Overflowed))
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	p := m.stats.Pool
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		row("Pool", fmt.Sprintf("slots %d  free %d  lent %d  allocs %d  grows %d  dups %d",
			p.Slots, p.Free, p.Lent, p.Allocs, p.Grows, p.DupReturns)),
		row("Player", fmt.Sprintf("enqueued %d  consumed %d  underruns %d",
			m.stats.Player.Enqueued, m.stats.Player.Consumed, m.stats.Player.Underruns)),
		row("Errors", fmt.Sprintf("%d", m.stats.Errors)),
	)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "\n" + helpStyle.Render("space:Pause  ←/→:Seek  ↑/↓:Volume  m:Mute  [/]:Speed  d:Debug  q:Quit")
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func clamp32(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func clamp64(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
