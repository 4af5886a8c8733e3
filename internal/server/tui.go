// ABOUTME: Server TUI for displaying connected clients and stream progress
// ABOUTME: Renders a live session table with bubbletea and lipgloss
package server

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name     string
	Port     int
	Title    string
	Frames   int
	FPS      float64
	Sessions []SessionInfo
}

// ServerTUI manages the server TUI
type ServerTUI struct {
	program *tea.Program
	model   dashboard
	updates chan ServerStatus
	quit    chan struct{}
}

// dashboard is the bubbletea model behind ServerTUI
type dashboard struct {
	status  ServerStatus
	started time.Time
	now     time.Time
	leaving bool
	quit    chan<- struct{}
}

type clockMsg time.Time

type statusMsg ServerStatus

func (d dashboard) Init() tea.Cmd {
	return clock()
}

func clock() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func (d dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			d.leaving = true
			select {
			case d.quit <- struct{}{}:
			default:
			}
			return d, tea.Quit
		}
	case clockMsg:
		d.now = time.Time(msg)
		return d, clock()
	case statusMsg:
		d.status = ServerStatus(msg)
	}
	return d, nil
}

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Width(11)

	cellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	columnStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("220"))

	mutedStyle = lipgloss.NewStyle().Faint(true)
)

// session table columns
var columns = []struct {
	title string
	width int
}{
	{"CLIENT", 24},
	{"FRAME", 8},
	{"SENT", 8},
	{"CONNECTED", 10},
}

func (d dashboard) View() string {
	if d.leaving {
		return "Shutting down server...\n"
	}

	now := d.now
	if now.IsZero() {
		now = time.Now()
	}

	info := lipgloss.JoinVertical(lipgloss.Left,
		keyStyle.Render("listening")+cellStyle.Render(fmt.Sprintf(":%d%s", d.status.Port, StreamPath)),
		keyStyle.Render("uptime")+cellStyle.Render(now.Sub(d.started).Round(time.Second).String()),
		keyStyle.Render("clip")+cellStyle.Render(d.clip()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		bannerStyle.Render("mvx-serve · "+d.status.Name),
		"",
		info,
		"",
		d.table(),
		"",
		mutedStyle.Render("q quit"),
	)
}

func (d dashboard) clip() string {
	if d.status.Frames == 0 || d.status.FPS <= 0 {
		return d.status.Title
	}
	length := time.Duration(float64(d.status.Frames) / d.status.FPS * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%s · %d frames @ %.2f fps (%s)", d.status.Title, d.status.Frames, d.status.FPS, length)
}

// table renders one row per connected session
func (d dashboard) table() string {
	var b strings.Builder
	for _, col := range columns {
		b.WriteString(columnStyle.Width(col.width).Render(col.title))
	}
	b.WriteString("\n")

	if len(d.status.Sessions) == 0 {
		b.WriteString(mutedStyle.Render("waiting for clients"))
		return b.String()
	}

	for _, sess := range d.status.Sessions {
		frame := "-"
		if sess.Frame >= 0 {
			frame = fmt.Sprint(sess.Frame)
		}
		cells := []string{
			fitWidth(sess.Name, columns[0].width-1),
			frame,
			fmt.Sprint(sess.Sent),
			sess.Connected.Round(time.Second).String(),
		}
		for i, cell := range cells {
			b.WriteString(cellStyle.Width(columns[i].width).Render(cell))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func fitWidth(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// NewServerTUI creates a new server TUI
func NewServerTUI(serverName string, port int) *ServerTUI {
	quit := make(chan struct{}, 1)
	t := &ServerTUI{
		model: dashboard{
			status:  ServerStatus{Name: serverName, Port: port, Title: "no clients"},
			started: time.Now(),
			quit:    quit,
		},
		updates: make(chan ServerStatus, 10),
		quit:    quit,
	}
	t.program = tea.NewProgram(t.model, tea.WithAltScreen())
	return t
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update queues a status refresh, dropping it if the TUI is behind
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.program.Quit()
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quit
}
