// Package planner turns a user request into a validated execution plan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spectersec/specter/internal/graph"
	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// Inventory is the registry view the planner needs: which roles have
// providers and what those providers are.
type Inventory interface {
	graph.CapabilityInventory
	Inventory() map[models.Role][]string
	AvailableWorkerRoles() []models.Role
}

// Planner produces validated execution plans. It never attempts to satisfy
// the request itself.
type Planner struct {
	backend  llm.Generator
	registry Inventory
}

// New creates a Planner bound to the given backend and registry.
func New(backend llm.Generator, registry Inventory) *Planner {
	return &Planner{backend: backend, registry: registry}
}

// plannerInput is the structured request handed to the planning agent.
type plannerInput struct {
	UserRequest        string                   `json:"user_request"`
	AvailableWorkers   []models.Role            `json:"available_workers"`
	ToolInventory      map[models.Role][]string `json:"tool_inventory"`
	SharedStateSummary session.Summary          `json:"shared_state_summary"`
}

// Plan asks the planning agent for a task decomposition and validates it.
// Any validation failure aborts before scheduling; it is reported, not
// retried.
func (p *Planner) Plan(ctx context.Context, userRequest string, sess *session.Session) (models.ExecutionPlan, error) {
	input := plannerInput{
		UserRequest:        userRequest,
		AvailableWorkers:   p.registry.AvailableWorkerRoles(),
		ToolInventory:      p.registry.Inventory(),
		SharedStateSummary: sess.State.Summarize(),
	}

	prompt, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("encode planner input: %w", err)
	}

	resp, err := p.backend.Generate(ctx, llm.Request{
		Instructions: plannerInstructions,
		Prompt:       string(prompt),
		History:      sess.Histories.Get(models.RolePlanner),
	})
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("planner call: %w", err)
	}
	sess.Histories.Replace(models.RolePlanner, resp.History)

	payload, err := llm.ExtractJSONObject(resp.Output)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("parse plan: %w", err)
	}

	var plan models.ExecutionPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	if len(plan.Tasks) == 0 {
		return models.ExecutionPlan{}, fmt.Errorf("planner returned an empty task list")
	}
	if plan.FinalOutputStyle == "" {
		plan.FinalOutputStyle = "technical_markdown"
	}

	if err := graph.ValidatePlan(plan, p.registry); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("invalid plan: %w", err)
	}

	return plan, nil
}
