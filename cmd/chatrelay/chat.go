package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/a-h/chatrelay/client"
	"github.com/a-h/chatrelay/conversation"
	"github.com/a-h/chatrelay/models"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type ChatCommand struct {
	RelayURL       string `help:"The URL of the chat relay." env:"RELAY_URL" default:"http://localhost:9020"`
	RelayAPIKey    string `help:"The API key for the chat relay." env:"RELAY_API_KEY" default:""`
	Verbosity      string `help:"How much detail to ask for." env:"VERBOSITY" default:"balanced" enum:"balanced,concise,detailed"`
	ResponseFormat string `help:"The format of the answers." env:"RESPONSE_FORMAT" default:"markdown" enum:"plaintext,markdown"`
	LogLevel       string `help:"The log level to use." env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`
	LogFile        string `help:"The file to write logs to. Logs are discarded if not set, because the terminal is in use." env:"LOG_FILE" default:""`
}

func (c ChatCommand) Run(ctx context.Context) (err error) {
	var logOutput io.Writer = io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOutput = f
	}
	log := newLogger(logOutput, c.LogLevel)

	opts := conversation.DefaultOptions
	opts.Verbosity = models.Verbosity(c.Verbosity)
	opts.ResponseFormat = models.ResponseFormat(c.ResponseFormat)

	// The program must exist before the first change is sent to it, but the
	// model needs the conversation, so the callback captures p.
	var p *tea.Program
	conv := conversation.New(log, client.New(c.RelayURL, c.RelayAPIKey),
		conversation.WithOptions(opts),
		conversation.WithOnChange(func(transcript []models.ChatMessage) {
			p.Send(transcriptMsg(transcript))
		}),
	)
	p = tea.NewProgram(newModel(ctx, conv), tea.WithContext(ctx))
	if _, err = p.Run(); err != nil {
		return err
	}
	return nil
}

// Dracula color scheme.
var (
	Background  = lipgloss.Color("#282a36")
	CurrentLine = lipgloss.Color("#44475a")
	Comment     = lipgloss.Color("#6272a4")
	Cyan        = lipgloss.Color("#8be9fd")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
)

var headerStyle = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Margin(1).Padding(1, 2)

const header = `chatrelay

Type a message and press enter. Press esc to quit.`

var (
	userStyle      = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink)
	assistantStyle = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Foreground(Cyan)
	statusStyle    = lipgloss.NewStyle().Foreground(Comment).PaddingLeft(1)
	errorStyle     = lipgloss.NewStyle().Foreground(Red).PaddingLeft(1)
)

const defaultWidth = 80

// transcriptMsg carries a copy of the transcript after each change.
type transcriptMsg []models.ChatMessage

// submitResultMsg is sent when a submission has finished.
type submitResultMsg struct {
	err error
}

type model struct {
	viewport   viewport.Model
	textarea   textarea.Model
	spinner    spinner.Model
	renderer   *glamour.TermRenderer
	width      int
	transcript []models.ChatMessage
	busy       bool
	err        error
	ctx        context.Context
	conv       *conversation.Conversation
}

func newRenderer(width int) *glamour.TermRenderer {
	// Use a fixed style to avoid querying the terminal for its background color.
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(width-8, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

func newModel(ctx context.Context, conv *conversation.Conversation) model {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 4000

	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(defaultWidth, 20)
	vp.SetContent(headerStyle.Render(header))

	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Purple)

	return model{
		ctx:      ctx,
		conv:     conv,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		renderer: newRenderer(defaultWidth),
		width:    defaultWidth,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.conv.Submit(m.ctx, text)
		return submitResultMsg{err: err}
	}
}

func formatMessage(r *glamour.TermRenderer, width int, msg models.ChatMessage) string {
	if msg.Role == models.RoleAssistant && r != nil {
		rendered, err := r.Render(msg.Content)
		if err == nil {
			return rendered
		}
	}
	wrapped := wordwrap.String(strings.TrimSpace(msg.Content), max(width-4, 20))
	if msg.Role == models.RoleUser {
		return userStyle.Render(wrapped)
	}
	return assistantStyle.Render(wrapped)
}

func (m *model) refresh() {
	if len(m.transcript) == 0 {
		m.viewport.SetContent(headerStyle.Render(header))
		return
	}
	var sb strings.Builder
	for _, cm := range m.transcript {
		sb.WriteString(formatMessage(m.renderer, m.width, cm))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case transcriptMsg:
		m.transcript = msg
		m.refresh()
		return m, nil
	case submitResultMsg:
		m.busy = false
		m.err = msg.err
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 4
		m.textarea.SetWidth(msg.Width)
		m.renderer = newRenderer(msg.Width)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			v := m.textarea.Value()

			if strings.TrimSpace(v) == "" || m.busy {
				// Don't send empty messages, or messages while waiting for a reply.
				return m, nil
			}

			m.textarea.Reset()
			m.busy = true
			m.err = nil
			return m, tea.Batch(m.submit(v), m.spinner.Tick)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		default:
			// Send all other keypresses to the textarea.
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			return m, cmd
		}

	case cursor.BlinkMsg:
		// Textarea should also process cursor blinks.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m model) status() string {
	switch {
	case m.busy:
		return statusStyle.Render(m.spinner.View() + " Thinking...")
	case m.err != nil:
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return ""
}

func (m model) View() string {
	return fmt.Sprintf("%s\n%s\n%s",
		m.viewport.View(),
		m.status(),
		m.textarea.View(),
	) + "\n\n"
}
