package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nordbot/internal/domain"
	"nordbot/internal/service"
	"nordbot/internal/session"
)

// Asker is the TUI-facing subset of the answer orchestrator.
type Asker interface {
	Ask(ctx context.Context, sess *session.Session, question string) (string, error)
}

// answerMsg carries the outcome of one turn back into Update.
type answerMsg struct {
	question string
	answer   string
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	asker    Asker
	sess     *session.Session
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	status   string
	errText  string
	busy     bool
	ready    bool
}

// New creates a chat model bound to one session.
func New(ctx context.Context, asker Asker, sess *session.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	ti.SetValue(sess.Input())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		asker:    asker,
		sess:     sess,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		status:   "Enter: ask  Ctrl+R: reset chat  Ctrl+C: quit",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + 1 + qh // header, input line, status
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = service.FormatError(msg.err)
			m.status = "Last question failed; edit it or press Enter to retry."
		} else {
			m.errText = ""
			m.input.Reset()
			m.sess.SetInput("")
			m.status = "Answered."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.busy = true
			m.errText = ""
			m.sess.SetInput(q)
			m.status = "Loading..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.askCmd(q))
		case "ctrl+r":
			if m.busy {
				return m, nil
			}
			m.sess.Reset()
			m.input.Reset()
			m.errText = ""
			m.status = "Chat reset."
			m.refresh()
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) askCmd(q string) tea.Cmd {
	ctx, asker, sess := m.ctx, m.asker, m.sess
	return func() tea.Msg {
		answer, err := asker.Ask(ctx, sess, q)
		return answerMsg{question: q, answer: answer, err: err}
	}
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("NordBot")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.sess.Transcript(), m.errText, m.viewport.Width-4))
	m.viewport.GotoBottom()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle         = lipgloss.NewStyle().Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const emptyTranscript = "Ask about the Nord Electro 6, Piano 5, Stage 3 or Stage 4, or about tone and patch creation."

func renderTranscript(entries []domain.TranscriptEntry, errText string, width int) string {
	if len(entries) == 0 && errText == "" {
		return emptyTranscript
	}
	body := lipgloss.NewStyle()
	if width > 0 {
		body = body.Width(width)
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.Role == domain.RoleUser {
			b.WriteString(userStyle.Render("You"))
		} else {
			b.WriteString(assistantStyle.Render("NordBot"))
		}
		b.WriteString("\n")
		b.WriteString(body.Render(e.Content))
	}
	if errText != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(errorStyle.Render(errText))
	}
	return b.String()
}
