// Package verify reviews just-executed batches against the user request
// and plan.
package verify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// verifierInstructions is the system prompt for the verification agent.
const verifierInstructions = `You are the verifier for a malware analysis workbench.

You review worker outputs for:
- unsupported claims
- missing evidence
- contradictions
- obvious gaps relative to the user request

Judge only the task outputs you are given, not the whole run.
Do not write the final user-facing answer.

Respond with a single JSON object, no prose:
{
  "approved": true or false,
  "issues": [
    {"task_id": "...", "severity": "low|medium|high", "problem": "...", "required_fix": "..."}
  ],
  "retry_tasks": [
    {"task_id": "...", "role": "static" or "dynamic", "objective": "precise rework objective"}
  ]
}

Propose retry_tasks only when rework would materially improve the answer.`

// Verifier judges executed batches. It holds no per-session state; the
// session is threaded through each call.
type Verifier struct {
	backend llm.Generator
}

// New creates a Verifier bound to the given backend.
func New(backend llm.Generator) *Verifier {
	return &Verifier{backend: backend}
}

// verifierInput is the structured request handed to the verification agent.
type verifierInput struct {
	UserRequest    string                    `json:"user_request"`
	Plan           models.ExecutionPlan      `json:"plan"`
	JustRanTaskIDs []string                  `json:"just_ran_task_ids"`
	TaskOutputs    []models.TaskOutputRecord `json:"task_outputs"`
}

// Review judges the most recent batch: only records whose task ID is in
// justRan are shown to the agent.
func (v *Verifier) Review(ctx context.Context, userRequest string, plan models.ExecutionPlan, justRan []string, sess *session.Session) (models.VerificationVerdict, error) {
	input := verifierInput{
		UserRequest:    userRequest,
		Plan:           plan,
		JustRanTaskIDs: justRan,
		TaskOutputs:    sess.State.OutputsFor(justRan),
	}

	prompt, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return models.VerificationVerdict{}, fmt.Errorf("encode verifier input: %w", err)
	}

	resp, err := v.backend.Generate(ctx, llm.Request{
		Instructions: verifierInstructions,
		Prompt:       string(prompt),
		History:      sess.Histories.Get(models.RoleVerifier),
	})
	if err != nil {
		return models.VerificationVerdict{}, fmt.Errorf("verifier call: %w", err)
	}
	sess.Histories.Replace(models.RoleVerifier, resp.History)

	payload, err := llm.ExtractJSONObject(resp.Output)
	if err != nil {
		return models.VerificationVerdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	var verdict models.VerificationVerdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return models.VerificationVerdict{}, fmt.Errorf("unmarshal verdict: %w", err)
	}

	return verdict, nil
}
