package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectersec/specter/internal/orchestrator"
)

var askQuiet bool

var askCmd = &cobra.Command{
	Use:   "ask <request...>",
	Short: "Run a single analysis request and print the answer",
	Long: `Run one analysis request through the full pipeline without the
interactive chat: plan, execute, verify, report.

Examples:
  specter ask "extract and deobfuscate strings from sample.exe"
  specter ask --quiet "what C2 infrastructure does the sample contact?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "Suppress progress output")
}

func runAsk(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range eng.events {
			if !askQuiet {
				printEvent(ev)
			}
		}
	}()

	answer, err := eng.orchestrator.RunTurn(ctx, request, eng.session)
	close(eng.events)
	<-done
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(answer)

	if !askQuiet {
		in, out := eng.client.Tracker().Total()
		color.New(color.Faint).Fprintf(os.Stderr, "\n%d API calls, %d in / %d out tokens\n",
			eng.client.Tracker().Calls(), in, out)
	}
	return nil
}

// printEvent writes one progress line to stderr so stdout stays clean for
// the answer.
func printEvent(ev orchestrator.Event) {
	var c *color.Color
	switch ev.Type {
	case orchestrator.EventTaskFailed, orchestrator.EventTurnFailed:
		c = color.New(color.FgRed)
	case orchestrator.EventTaskDone, orchestrator.EventAnswerReady:
		c = color.New(color.FgGreen)
	case orchestrator.EventRetry:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.Faint)
	}

	line := string(ev.Type)
	if ev.TaskID != "" {
		line += " " + ev.TaskID
	}
	if ev.Message != "" {
		line += ": " + ev.Message
	}
	c.Fprintln(os.Stderr, line)
}
