package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	headerMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")).
			Italic(true)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// viewHeader renders the title bar with session and model info.
func (a *ChatApp) viewHeader() string {
	title := headerStyle.Render("specter")
	meta := headerMetaStyle.Render(fmt.Sprintf("  session %s  %s", a.cfg.SessionID, a.cfg.Model))
	return title + meta
}

// renderTranscript renders all chat lines for the viewport.
func (a *ChatApp) renderTranscript() string {
	if len(a.lines) == 0 {
		return progressStyle.Render("Type a request to start analyzing.")
	}

	var b strings.Builder
	for _, line := range a.lines {
		switch line.kind {
		case lineUser:
			b.WriteString(userStyle.Render("you> ") + line.text)
		case lineAnswer:
			b.WriteString(answerStyle.Render(line.text))
		case lineProgress:
			b.WriteString(progressStyle.Render("  · " + line.text))
		case lineError:
			b.WriteString(errorStyle.Render("error: " + line.text))
		case lineNotice:
			b.WriteString(noticeStyle.Render(line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// viewStatus renders the status line: spinner while a turn runs, token
// totals when idle.
func (a *ChatApp) viewStatus() string {
	if a.busy {
		return statusStyle.Render(a.spinner.View() + " analyzing...")
	}
	if a.inputTokens > 0 || a.outputTokens > 0 {
		return statusStyle.Render(fmt.Sprintf("tokens: %d in / %d out", a.inputTokens, a.outputTokens))
	}
	return statusStyle.Render("ready")
}

// viewInput renders the bordered input field.
func (a *ChatApp) viewInput() string {
	width := a.width - 2
	if width < 20 {
		width = 20
	}
	return inputBoxStyle.Width(width).Render(a.input.View())
}

// NewChatProgram creates a bubbletea program wrapping a new chat app. The
// returned program receives messages via Send().
func NewChatProgram(cfg ChatConfig) (*tea.Program, *ChatApp) {
	app := NewChat(cfg)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
