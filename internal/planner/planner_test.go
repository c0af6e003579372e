package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// fakeBackend replays a scripted output and records the requests it saw.
type fakeBackend struct {
	output   string
	err      error
	requests []llm.Request
}

func (f *fakeBackend) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	history := append(session.History(nil), req.History...)
	history = append(history,
		session.Entry{Kind: session.EntryUser, Content: req.Prompt},
		session.Entry{Kind: session.EntryAssistant, Content: f.output},
	)
	return llm.Response{Output: f.output, History: history}, nil
}

type fakeInventory struct {
	static  []string
	dynamic []string
}

func (f fakeInventory) HasCapability(role models.Role) bool {
	switch role {
	case models.RoleStatic:
		return len(f.static) > 0
	case models.RoleDynamic:
		return len(f.dynamic) > 0
	default:
		return false
	}
}

func (f fakeInventory) Inventory() map[models.Role][]string {
	return map[models.Role][]string{
		models.RoleStatic:  f.static,
		models.RoleDynamic: f.dynamic,
	}
}

func (f fakeInventory) AvailableWorkerRoles() []models.Role {
	var roles []models.Role
	for _, r := range models.WorkerRoles() {
		if f.HasCapability(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

const goodPlan = `Here is the decomposition:
{
  "tasks": [
    {"id": "strings", "role": "static", "objective": "extract strings", "can_run_parallel": true},
    {"id": "hashes", "role": "static", "objective": "compute hashes", "can_run_parallel": true}
  ],
  "final_output_style": "technical_markdown"
}`

func TestPlanParsesAndValidates(t *testing.T) {
	backend := &fakeBackend{output: goodPlan}
	p := New(backend, fakeInventory{static: []string{"stringmcp"}})
	sess := session.New(0)

	plan, err := p.Plan(context.Background(), "find strings and hashes of mal.exe", sess)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(plan.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(plan.Tasks))
	}
	if plan.Tasks[0].Role != models.RoleStatic {
		t.Errorf("unexpected role %q", plan.Tasks[0].Role)
	}

	// Planner conversation is saved back under its own role.
	if sess.Histories.Len(models.RolePlanner) == 0 {
		t.Error("expected planner history to be saved")
	}
	if sess.Histories.Len(models.RoleStatic) != 0 {
		t.Error("planner history leaked into worker role")
	}
}

func TestPlanIncludesInventoryAndSummary(t *testing.T) {
	backend := &fakeBackend{output: goodPlan}
	p := New(backend, fakeInventory{static: []string{"stringmcp", "hashdbmcp"}})
	sess := session.New(0)
	sess.State.AddArtifact("/samples/mal.exe")

	if _, err := p.Plan(context.Background(), "triage mal.exe", sess); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(backend.requests) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(backend.requests))
	}
	prompt := backend.requests[0].Prompt
	for _, want := range []string{"triage mal.exe", "stringmcp", "hashdbmcp", "/samples/mal.exe"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("planner prompt missing %q", want)
		}
	}
	if len(backend.requests[0].Providers) != 0 {
		t.Error("planner must not be given providers")
	}
}

func TestPlanRejectsDuplicateIDs(t *testing.T) {
	backend := &fakeBackend{output: `{
		"tasks": [
			{"id": "a", "role": "static", "objective": "x"},
			{"id": "a", "role": "static", "objective": "y"}
		]
	}`}
	p := New(backend, fakeInventory{static: []string{"stringmcp"}})

	_, err := p.Plan(context.Background(), "req", session.New(0))
	if err == nil || !strings.Contains(err.Error(), "duplicate task id") {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	// Validation failures are reported, not retried.
	if len(backend.requests) != 1 {
		t.Errorf("expected exactly 1 backend call, got %d", len(backend.requests))
	}
}

func TestPlanRejectsUnavailableCapability(t *testing.T) {
	backend := &fakeBackend{output: `{
		"tasks": [{"id": "run", "role": "dynamic", "objective": "detonate sample"}]
	}`}
	p := New(backend, fakeInventory{static: []string{"stringmcp"}})

	_, err := p.Plan(context.Background(), "req", session.New(0))
	if err == nil || !strings.Contains(err.Error(), "no providers") {
		t.Fatalf("expected capability rejection, got %v", err)
	}
}

func TestPlanRejectsEmptyTaskList(t *testing.T) {
	backend := &fakeBackend{output: `{"tasks": []}`}
	p := New(backend, fakeInventory{static: []string{"stringmcp"}})

	if _, err := p.Plan(context.Background(), "req", session.New(0)); err == nil {
		t.Fatal("expected error for empty task list")
	}
}

func TestPlanRejectsNonJSONResponse(t *testing.T) {
	backend := &fakeBackend{output: "I could not produce a plan."}
	p := New(backend, fakeInventory{static: []string{"stringmcp"}})

	if _, err := p.Plan(context.Background(), "req", session.New(0)); err == nil {
		t.Fatal("expected parse error")
	}
}
