// Package report synthesizes the final user-facing answer from recorded
// task outputs.
package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// reporterInstructions is the system prompt for the reporting agent.
const reporterInstructions = `You are the reporter for a malware analysis workbench.

Write the final answer to the user using only the recorded task outputs.

Style:
- technical, clear, concise
- separate confirmed findings from unknowns when the evidence is incomplete
- do not invent tool results or evidence`

// Reporter writes final answers. The full accumulated output sequence is
// its only evidence source.
type Reporter struct {
	backend llm.Generator
}

// New creates a Reporter bound to the given backend.
func New(backend llm.Generator) *Reporter {
	return &Reporter{backend: backend}
}

// reporterInput is the structured request handed to the reporting agent.
type reporterInput struct {
	UserRequest string                    `json:"user_request"`
	TaskOutputs []models.TaskOutputRecord `json:"task_outputs"`
	OutputStyle string                    `json:"output_style,omitempty"`
	Notes       string                    `json:"notes"`
}

// Write produces the turn's final answer from all accumulated outputs.
func (r *Reporter) Write(ctx context.Context, userRequest, outputStyle string, sess *session.Session) (string, error) {
	input := reporterInput{
		UserRequest: userRequest,
		TaskOutputs: sess.State.Outputs(),
		OutputStyle: outputStyle,
		Notes:       "Write the final response for the user. Use only supported information from task outputs.",
	}

	prompt, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode reporter input: %w", err)
	}

	resp, err := r.backend.Generate(ctx, llm.Request{
		Instructions: reporterInstructions,
		Prompt:       string(prompt),
		History:      sess.Histories.Get(models.RoleReporter),
	})
	if err != nil {
		return "", fmt.Errorf("reporter call: %w", err)
	}
	sess.Histories.Replace(models.RoleReporter, resp.History)

	return resp.Output, nil
}
