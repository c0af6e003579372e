// Package dispatch routes tasks to the workers bound to their roles and
// records every execution into shared state.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/provider"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// ErrUnknownRole indicates a task names a role with no bound worker. This
// is a configuration error, fatal to the turn.
var ErrUnknownRole = errors.New("no worker bound to role")

// ProviderSource resolves the capability partition for a worker role at
// execution time, so registry reloads take effect between tasks.
type ProviderSource interface {
	ForRole(role models.Role) []provider.Provider
}

// AuditSink receives the tool-invocation delta after each worker turn.
type AuditSink interface {
	RecordDelta(runID string, role models.Role, prevLen int, h session.History) error
}

// worker is one role's fixed binding: instructions plus capability
// partition.
type worker struct {
	role         models.Role
	instructions string
}

// Dispatcher executes tasks via the closed role-to-worker mapping.
type Dispatcher struct {
	backend     llm.Generator
	providers   ProviderSource
	audit       AuditSink
	taskTimeout time.Duration
	workers     map[models.Role]worker

	// roleLocks serialize worker calls per role: two same-role tasks in
	// one parallel batch must not interleave writes to the shared role
	// history.
	roleLocks map[models.Role]*sync.Mutex
}

// Config configures a Dispatcher.
type Config struct {
	Backend   llm.Generator
	Providers ProviderSource
	// Audit is optional; nil disables tool-invocation logging.
	Audit AuditSink
	// TaskTimeout bounds each worker call. Zero means no bound beyond
	// the caller's context.
	TaskTimeout time.Duration
}

// New creates a Dispatcher. The role mapping is fixed at construction:
// static and dynamic workers, nothing else.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		backend:     cfg.Backend,
		providers:   cfg.Providers,
		audit:       cfg.Audit,
		taskTimeout: cfg.TaskTimeout,
		workers: map[models.Role]worker{
			models.RoleStatic:  {role: models.RoleStatic, instructions: staticInstructions},
			models.RoleDynamic: {role: models.RoleDynamic, instructions: dynamicInstructions},
		},
		roleLocks: map[models.Role]*sync.Mutex{
			models.RoleStatic:  {},
			models.RoleDynamic: {},
		},
	}
}

// workerInput is the structured request handed to a worker agent.
type workerInput struct {
	Task        models.Task      `json:"task"`
	SharedState session.Snapshot `json:"shared_state"`
}

// Execute runs one task through its worker and appends the resulting
// record to shared state. A worker call failure is recorded as a failed
// task, not returned as an error; only an unknown role is an error.
func (d *Dispatcher) Execute(ctx context.Context, task models.Task, sess *session.Session, runID string) (models.TaskOutputRecord, error) {
	w, ok := d.workers[task.Role]
	if !ok {
		return models.TaskOutputRecord{}, fmt.Errorf("%w: %q (task %s)", ErrUnknownRole, task.Role, task.ID)
	}

	rec := models.TaskOutputRecord{
		TaskID:    task.ID,
		Role:      task.Role,
		Objective: task.Objective,
	}

	output, err := d.runWorker(ctx, w, task, sess, runID)
	if err != nil {
		rec.Status = models.TaskStatusFailed
		rec.Output = fmt.Sprintf("worker call failed: %v", err)
	} else {
		rec.Status = models.TaskStatusOK
		rec.Output = output
	}

	sess.State.AppendOutput(rec)
	return rec, nil
}

func (d *Dispatcher) runWorker(ctx context.Context, w worker, task models.Task, sess *session.Session, runID string) (string, error) {
	d.roleLocks[w.role].Lock()
	defer d.roleLocks[w.role].Unlock()

	input := workerInput{Task: task, SharedState: sess.State.Snapshot()}
	prompt, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode worker input: %w", err)
	}

	if d.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.taskTimeout)
		defer cancel()
	}

	history := sess.Histories.Get(w.role)
	prevLen := len(history)

	resp, err := d.backend.Generate(ctx, llm.Request{
		Instructions: w.instructions,
		Prompt:       string(prompt),
		History:      history,
		Providers:    d.providers.ForRole(w.role),
	})
	if err != nil {
		return "", err
	}

	sess.Histories.Replace(w.role, resp.History)

	if d.audit != nil {
		if err := d.audit.RecordDelta(runID, w.role, prevLen, resp.History); err != nil {
			log.Printf("[dispatch] audit log failed for task %s: %v", task.ID, err)
		}
	}

	return resp.Output, nil
}
