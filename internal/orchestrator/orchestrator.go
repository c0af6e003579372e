// Package orchestrator drives one workbench turn: plan, schedule, execute
// batches with verification, and report.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/spectersec/specter/internal/dispatch"
	"github.com/spectersec/specter/internal/graph"
	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/planner"
	"github.com/spectersec/specter/internal/report"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/internal/verify"
	"github.com/spectersec/specter/pkg/models"
)

// Event reports orchestration progress to the UI layer.
type Event struct {
	Type EventType
	// TaskID is set for task-scoped events.
	TaskID string
	// Message carries human-readable detail.
	Message string
}

// EventType identifies orchestration progress events.
type EventType string

const (
	EventPlanReady   EventType = "plan_ready"
	EventBatchStart  EventType = "batch_start"
	EventTaskDone    EventType = "task_done"
	EventTaskFailed  EventType = "task_failed"
	EventVerdict     EventType = "verdict"
	EventRetry       EventType = "retry"
	EventAnswerReady EventType = "answer_ready"
	EventTurnFailed  EventType = "turn_failed"
)

// Config assembles an Orchestrator.
type Config struct {
	Backend  llm.Generator
	Registry Registry
	// Audit is optional; nil disables tool-invocation logging.
	Audit dispatch.AuditSink
	// Dispatch carries worker execution settings.
	Dispatch dispatch.Config
	// MaxParallel bounds concurrent tasks within a batch. Zero means
	// batch size.
	MaxParallel int
	// Events receives progress events if non-nil. Sends never block; a
	// slow consumer drops events.
	Events chan<- Event
}

// Registry is the provider-registry surface the orchestrator needs.
type Registry interface {
	planner.Inventory
	dispatch.ProviderSource
}

// Orchestrator coordinates the planner, scheduler, dispatcher, verifier,
// and reporter for a session.
type Orchestrator struct {
	planner     *planner.Planner
	dispatcher  *dispatch.Dispatcher
	verifier    *verify.Verifier
	reporter    *report.Reporter
	maxParallel int
	events      chan<- Event
}

// New builds an Orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	dcfg := cfg.Dispatch
	dcfg.Backend = cfg.Backend
	dcfg.Providers = cfg.Registry
	dcfg.Audit = cfg.Audit

	return &Orchestrator{
		planner:     planner.New(cfg.Backend, cfg.Registry),
		dispatcher:  dispatch.New(dcfg),
		verifier:    verify.New(cfg.Backend),
		reporter:    report.New(cfg.Backend),
		maxParallel: cfg.MaxParallel,
		events:      cfg.Events,
	}
}

// RunTurn executes one full user turn against the session and returns the
// final answer. Fatal errors (plan validation, cycles, unknown roles)
// abort the turn; shared state accumulated so far is retained for the
// next turn.
func (o *Orchestrator) RunTurn(ctx context.Context, userText string, sess *session.Session) (string, error) {
	if err := sess.BeginRun(); err != nil {
		return "", err
	}
	defer sess.EndRun()

	runID := uuid.New().String()[:8]

	plan, err := o.planner.Plan(ctx, userText, sess)
	if err != nil {
		o.emit(Event{Type: EventTurnFailed, Message: err.Error()})
		return "", fmt.Errorf("planning failed: %w", err)
	}
	o.emit(Event{Type: EventPlanReady, Message: fmt.Sprintf("%d tasks planned", len(plan.Tasks))})

	batches, err := graph.Batches(plan)
	if err != nil {
		o.emit(Event{Type: EventTurnFailed, Message: err.Error()})
		return "", fmt.Errorf("scheduling failed: %w", err)
	}

	for i, batch := range batches {
		o.emit(Event{Type: EventBatchStart, Message: fmt.Sprintf("batch %d/%d: %d task(s)", i+1, len(batches), len(batch.Tasks))})

		if err := o.executeBatch(ctx, batch, sess, runID); err != nil {
			o.emit(Event{Type: EventTurnFailed, Message: err.Error()})
			return "", err
		}

		verdict, err := o.verifier.Review(ctx, userText, plan, batch.IDs(), sess)
		if err != nil {
			o.emit(Event{Type: EventTurnFailed, Message: err.Error()})
			return "", fmt.Errorf("verification failed: %w", err)
		}
		o.emit(Event{Type: EventVerdict, Message: verdictSummary(verdict)})

		// Retries run exactly once and are never re-verified.
		for _, retry := range verdict.RetryTasks {
			o.emit(Event{Type: EventRetry, TaskID: retry.TaskID, Message: retry.Objective})

			task := models.Task{
				ID:        retry.TaskID,
				Role:      retry.Role,
				Objective: retry.Objective,
			}
			if _, err := o.dispatcher.Execute(ctx, task, sess, runID); err != nil {
				o.emit(Event{Type: EventTurnFailed, Message: err.Error()})
				return "", fmt.Errorf("retry of task %s failed: %w", retry.TaskID, err)
			}
		}
	}

	answer, err := o.reporter.Write(ctx, userText, plan.FinalOutputStyle, sess)
	if err != nil {
		o.emit(Event{Type: EventTurnFailed, Message: err.Error()})
		return "", fmt.Errorf("reporting failed: %w", err)
	}

	o.emit(Event{Type: EventAnswerReady})
	return answer, nil
}

// executeBatch runs every task in the batch and waits for all of them.
// Singleton batches run inline; larger batches run concurrently under a
// bounded semaphore with a completion barrier, since the scheduler already
// guarantees their independence. Records land in completion order.
func (o *Orchestrator) executeBatch(ctx context.Context, batch models.Batch, sess *session.Session, runID string) error {
	if len(batch.Tasks) == 1 {
		return o.executeTask(ctx, batch.Tasks[0], sess, runID)
	}

	limit := o.maxParallel
	if limit <= 0 || limit > len(batch.Tasks) {
		limit = len(batch.Tasks)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	errCh := make(chan error, len(batch.Tasks))

	for _, task := range batch.Tasks {
		wg.Add(1)
		go func(task models.Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := o.executeTask(ctx, task, sess, runID); err != nil {
				errCh <- err
			}
		}(task)
	}

	wg.Wait()
	close(errCh)

	// Surface the first fatal error; worker failures were already
	// recorded as failed tasks and never reach here.
	for err := range errCh {
		return err
	}
	return nil
}

func (o *Orchestrator) executeTask(ctx context.Context, task models.Task, sess *session.Session, runID string) error {
	rec, err := o.dispatcher.Execute(ctx, task, sess, runID)
	if err != nil {
		return err
	}

	if rec.Status == models.TaskStatusFailed {
		o.emit(Event{Type: EventTaskFailed, TaskID: task.ID, Message: rec.Output})
	} else {
		o.emit(Event{Type: EventTaskDone, TaskID: task.ID})
	}
	return nil
}

func verdictSummary(v models.VerificationVerdict) string {
	if v.Approved && len(v.Issues) == 0 {
		return "approved"
	}
	return fmt.Sprintf("approved=%t, %d issue(s), %d retry task(s)", v.Approved, len(v.Issues), len(v.RetryTasks))
}

func (o *Orchestrator) emit(event Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- event:
	default:
		log.Printf("[orchestrator] dropped event %s", event.Type)
	}
}
