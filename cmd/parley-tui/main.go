// parley-tui is a terminal chat client for parleyd. It speaks the WebSocket
// streaming protocol and renders deltas as they arrive.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/util"
	"github.com/parleyhq/parley/orchestrator"
)

type theme struct {
	user   lipgloss.Style
	agent  lipgloss.Style
	tool   lipgloss.Style
	errSty lipgloss.Style
	status lipgloss.Style
}

func newTheme() theme {
	return theme{
		user:   lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1")).Bold(true),
		agent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#01cdfe")).Bold(true),
		tool:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166")),
		errSty: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff71ce")),
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
	}
}

type eventMsg struct {
	event orchestrator.Event
	ok    bool
}

type model struct {
	conn   *websocket.Conn
	events chan orchestrator.Event

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	theme    theme

	lines     []string
	streaming string
	agentName string
	waiting   bool
	isGroup   bool
	modelID   string
	status    string
	ready     bool
}

func newModel(conn *websocket.Conn, modelID string, isGroup bool) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Say something..."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	return model{
		conn:     conn,
		events:   make(chan orchestrator.Event, 32),
		viewport: vp,
		input:    input,
		spinner:  sp,
		theme:    newTheme(),
		modelID:  modelID,
		isGroup:  isGroup,
		status:   "connected",
	}
}

// readPump forwards server frames into the event channel until the
// connection drops.
func (m model) readPump() {
	defer close(m.events)
	for {
		var ev orchestrator.Event
		if err := m.conn.ReadJSON(&ev); err != nil {
			return
		}
		m.events <- ev
	}
}

func waitForEvent(events chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return eventMsg{event: ev, ok: ok}
	}
}

func (m model) Init() tea.Cmd {
	go m.readPump()
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.input.Width = msg.Width - 4
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				break
			}
			m.input.SetValue("")
			m.lines = append(m.lines, m.theme.user.Render("you")+" "+text)
			m.waiting = true
			m.status = "thinking..."
			m.refresh()
			return m, tea.Batch(m.send(text), m.spinner.Tick)
		}

	case eventMsg:
		if !msg.ok {
			m.status = "disconnected"
			m.waiting = false
			m.refresh()
			return m, nil
		}
		m.applyEvent(msg.event)
		m.refresh()
		cmds = append(cmds, waitForEvent(m.events))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.waiting {
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) applyEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventAgentTurnStart:
		m.flushStreaming()
		m.agentName = ev.AgentName
		m.status = ev.AgentName + " is typing..."

	case orchestrator.EventChunk:
		m.streaming += ev.Delta

	case orchestrator.EventToolCall:
		m.flushStreaming()
		m.lines = append(m.lines, m.theme.tool.Render(fmt.Sprintf("⚙ %s %s", ev.ToolName, ev.ToolArgs)))

	case orchestrator.EventToolResult:
		result := ev.ToolResult
		if len(result) > 200 {
			result = result[:200] + "..."
		}
		m.lines = append(m.lines, m.theme.tool.Render("→ "+result))

	case orchestrator.EventAgentTurnEnd:
		m.flushStreaming()

	case orchestrator.EventDone:
		m.flushStreaming()
		m.waiting = false
		m.status = "connected"

	case orchestrator.EventError:
		m.flushStreaming()
		m.lines = append(m.lines, m.theme.errSty.Render("error: "+ev.Error))
		m.waiting = false
		m.status = "connected"
	}
}

func (m *model) flushStreaming() {
	if m.streaming == "" {
		return
	}
	name := m.agentName
	if name == "" {
		name = "assistant"
	}
	m.lines = append(m.lines, m.theme.agent.Render(name)+" "+m.streaming)
	m.streaming = ""
}

func (m *model) refresh() {
	content := strings.Join(m.lines, "\n\n")
	if m.streaming != "" {
		name := m.agentName
		if name == "" {
			name = "assistant"
		}
		content += "\n\n" + m.theme.agent.Render(name) + " " + m.streaming
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m model) send(text string) tea.Cmd {
	conn := m.conn
	frame := map[string]any{
		"type":     "message",
		"content":  text,
		"model":    m.modelID,
		"is_group": m.isGroup,
	}
	return func() tea.Msg {
		_ = conn.WriteJSON(frame)
		return nil
	}
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}
	statusLine := m.status
	if m.waiting {
		statusLine = m.spinner.View() + " " + statusLine
	}
	return m.viewport.View() + "\n" +
		m.theme.status.Render(statusLine) + "\n" +
		m.input.View()
}

func main() {
	var (
		serverURL      = flag.String("server", envOr("PARLEY_URL", "127.0.0.1:8321"), "parleyd host:port")
		conversationID = flag.String("conversation", "", "conversation id (new when empty)")
		modelID        = flag.String("model", envOr("PARLEY_DEFAULT_MODEL", "gemini/gemini-2.5-flash"), "provider/model")
		group          = flag.Bool("group", false, "talk to every active agent")
	)
	flag.Parse()

	convID := *conversationID
	if convID == "" {
		convID = util.NewID()
	}

	url := fmt.Sprintf("ws://%s/ws/chat/%s", strings.TrimPrefix(*serverURL, "http://"), convID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(newModel(conn, *modelID, *group), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
