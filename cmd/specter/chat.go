package main

import (
	"context"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spectersec/specter/internal/orchestrator"
	"github.com/spectersec/specter/internal/tui"
)

// runChat launches the interactive chat TUI. User turns are submitted to
// the orchestrator asynchronously; progress events stream into the chat
// view as they happen.
func runChat() error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Suppress log output while the TUI owns the terminal.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, app := tui.NewChatProgram(tui.ChatConfig{
		SessionID:   eng.session.ID,
		Model:       string(eng.client.Model()),
		ShowToolLog: eng.cfg.TUI.ShowToolLog,
	})

	app.SetSubmitHandler(func(text string) {
		go func() {
			answer, err := eng.orchestrator.RunTurn(ctx, text, eng.session)
			if err != nil {
				program.Send(tui.TurnFailedMsg{Err: err})
				return
			}
			in, out := eng.client.Tracker().Total()
			program.Send(tui.AnswerMsg{
				Answer:       answer,
				InputTokens:  in,
				OutputTokens: out,
			})
		}()
	})

	app.SetResetHandler(func() {
		eng.session.Reset()
		eng.client.Tracker().Reset()
	})

	go forwardEvents(ctx, eng.events, program)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

func forwardEvents(ctx context.Context, events <-chan orchestrator.Event, program *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			program.Send(tui.ProgressMsg{
				Type:    string(ev.Type),
				TaskID:  ev.TaskID,
				Message: ev.Message,
			})
		}
	}
}
