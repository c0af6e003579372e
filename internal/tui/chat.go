// Package tui provides the interactive chat interface for Specter.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg streams one orchestration progress event into the chat view.
type ProgressMsg struct {
	Type    string
	TaskID  string
	Message string
}

// AnswerMsg delivers the final answer for the in-flight turn.
type AnswerMsg struct {
	Answer       string
	InputTokens  int64
	OutputTokens int64
}

// TurnFailedMsg signals that the in-flight turn aborted.
type TurnFailedMsg struct {
	Err error
}

// ChatConfig configures the chat application.
type ChatConfig struct {
	SessionID string
	Model     string
	// ShowToolLog streams per-task progress lines into the transcript.
	ShowToolLog bool
}

// lineKind classifies transcript lines for styling.
type lineKind int

const (
	lineUser lineKind = iota
	lineAnswer
	lineProgress
	lineError
	lineNotice
)

type chatLine struct {
	kind lineKind
	text string
	at   time.Time
}

// ChatApp is the bubbletea model for the interactive chat session.
type ChatApp struct {
	cfg      ChatConfig
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	lines    []chatLine
	busy     bool
	quitting bool
	ready    bool
	width    int
	height   int

	inputTokens  int64
	outputTokens int64

	onSubmit func(text string)
	onReset  func()
}

// NewChat creates a new chat application.
func NewChat(cfg ChatConfig) *ChatApp {
	ti := textinput.New()
	ti.Placeholder = "Ask about the sample, or /reset to start over..."
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &ChatApp{
		cfg:     cfg,
		input:   ti,
		spinner: sp,
	}
}

// SetSubmitHandler registers the callback invoked when the user submits a
// request. The callback must not block; results come back via AnswerMsg
// or TurnFailedMsg.
func (a *ChatApp) SetSubmitHandler(fn func(text string)) {
	a.onSubmit = fn
}

// SetResetHandler registers the callback invoked on /reset.
func (a *ChatApp) SetResetHandler(fn func()) {
	a.onReset = fn
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		case "enter":
			return a, a.submit()
		}

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)

	case ProgressMsg:
		if a.cfg.ShowToolLog {
			a.append(lineProgress, progressText(msg))
		}
		return a, nil

	case AnswerMsg:
		a.busy = false
		a.inputTokens = msg.InputTokens
		a.outputTokens = msg.OutputTokens
		a.append(lineAnswer, msg.Answer)
		return a, nil

	case TurnFailedMsg:
		a.busy = false
		a.append(lineError, msg.Err.Error())
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit handles the enter key: slash commands run locally, everything
// else goes to the orchestrator.
func (a *ChatApp) submit() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return nil
	}

	if text == "/reset" {
		if a.busy {
			a.append(lineNotice, "cannot reset while a turn is running")
			return nil
		}
		a.input.Reset()
		a.lines = nil
		a.inputTokens = 0
		a.outputTokens = 0
		a.refreshViewport()
		if a.onReset != nil {
			a.onReset()
		}
		a.append(lineNotice, "session reset")
		return nil
	}

	if a.busy {
		a.append(lineNotice, "a turn is already running; wait for it to finish")
		return nil
	}

	a.input.Reset()
	a.busy = true
	a.append(lineUser, text)

	if a.onSubmit != nil {
		a.onSubmit(text)
	}
	return a.spinner.Tick
}

func (a *ChatApp) append(kind lineKind, text string) {
	a.lines = append(a.lines, chatLine{kind: kind, text: text, at: time.Now()})
	a.refreshViewport()
}

func (a *ChatApp) resize(width, height int) {
	a.width = width
	a.height = height
	a.input.Width = width - 6

	vpHeight := height - 6
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !a.ready {
		a.viewport = viewport.New(width, vpHeight)
		a.ready = true
	} else {
		a.viewport.Width = width
		a.viewport.Height = vpHeight
	}
	a.refreshViewport()
}

func (a *ChatApp) refreshViewport() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

func progressText(msg ProgressMsg) string {
	line := msg.Type
	if msg.TaskID != "" {
		line += " " + msg.TaskID
	}
	if msg.Message != "" {
		line += ": " + msg.Message
	}
	return line
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}
	if !a.ready {
		return "Starting..."
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		a.viewHeader(),
		a.viewport.View(),
		a.viewStatus(),
		a.viewInput())
}
