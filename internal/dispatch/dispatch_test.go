package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/provider"
	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// fakeBackend answers worker calls with a fixed output, optionally
// simulating tool use by appending tool entries to the history.
type fakeBackend struct {
	mu       sync.Mutex
	output   string
	err      error
	withTool bool
	requests []llm.Request
}

func (f *fakeBackend) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return llm.Response{}, f.err
	}

	history := append(session.History(nil), req.History...)
	history = append(history, session.Entry{Kind: session.EntryUser, Content: req.Prompt})
	if f.withTool {
		history = append(history,
			session.Entry{Kind: session.EntryToolCall, ToolName: "stringmcp__callStrings",
				ToolCallID: "tc1", ToolInput: json.RawMessage(`{}`)},
			session.Entry{Kind: session.EntryToolResult, ToolCallID: "tc1", Content: "strings output"},
		)
	}
	history = append(history, session.Entry{Kind: session.EntryAssistant, Content: f.output})
	return llm.Response{Output: f.output, History: history}, nil
}

type fakeProviders struct{}

func (fakeProviders) ForRole(role models.Role) []provider.Provider { return nil }

// recordingAudit captures delta calls.
type recordingAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

type auditCall struct {
	runID   string
	role    models.Role
	prevLen int
	total   int
}

func (a *recordingAudit) RecordDelta(runID string, role models.Role, prevLen int, h session.History) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{runID: runID, role: role, prevLen: prevLen, total: len(h)})
	return nil
}

func newDispatcher(backend llm.Generator, sink AuditSink) *Dispatcher {
	return New(Config{Backend: backend, Providers: fakeProviders{}, Audit: sink})
}

func TestExecuteRecordsOutput(t *testing.T) {
	backend := &fakeBackend{output: "extracted 42 strings"}
	d := newDispatcher(backend, nil)
	sess := session.New(0)

	task := models.Task{ID: "strings", Role: models.RoleStatic, Objective: "extract strings"}
	rec, err := d.Execute(context.Background(), task, sess, "run-1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.Status != models.TaskStatusOK {
		t.Errorf("expected ok status, got %s", rec.Status)
	}
	if rec.Output != "extracted 42 strings" {
		t.Errorf("unexpected output %q", rec.Output)
	}

	outputs := sess.State.Outputs()
	if len(outputs) != 1 || outputs[0].TaskID != "strings" {
		t.Fatalf("expected 1 recorded output, got %+v", outputs)
	}
	if sess.State.RunCount() != 1 {
		t.Errorf("expected run count 1, got %d", sess.State.RunCount())
	}
	if sess.Histories.Len(models.RoleStatic) == 0 {
		t.Error("expected worker history to be saved")
	}
}

func TestExecuteWorkerFailureRecordedNotFatal(t *testing.T) {
	backend := &fakeBackend{err: errors.New("backend unavailable")}
	d := newDispatcher(backend, nil)
	sess := session.New(0)

	task := models.Task{ID: "t1", Role: models.RoleStatic, Objective: "x"}
	rec, err := d.Execute(context.Background(), task, sess, "run-1")
	if err != nil {
		t.Fatalf("worker failure must not surface as an error: %v", err)
	}

	if rec.Status != models.TaskStatusFailed {
		t.Errorf("expected failed status, got %s", rec.Status)
	}
	if !strings.Contains(rec.Output, "backend unavailable") {
		t.Errorf("failure description missing from output: %q", rec.Output)
	}

	// Failed executions still append a record.
	if len(sess.State.Outputs()) != 1 {
		t.Error("expected failed record in shared state")
	}
}

func TestExecuteUnknownRoleFatal(t *testing.T) {
	d := newDispatcher(&fakeBackend{output: "x"}, nil)

	task := models.Task{ID: "t1", Role: models.Role("ghost")}
	_, err := d.Execute(context.Background(), task, session.New(0), "run-1")
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestExecuteLogsAuditDelta(t *testing.T) {
	backend := &fakeBackend{output: "done", withTool: true}
	sink := &recordingAudit{}
	d := newDispatcher(backend, sink)
	sess := session.New(0)

	task := models.Task{ID: "t1", Role: models.RoleStatic, Objective: "x"}
	if _, err := d.Execute(context.Background(), task, sess, "run-1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := d.Execute(context.Background(), task, sess, "run-1"); err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}

	if len(sink.calls) != 2 {
		t.Fatalf("expected 2 audit calls, got %d", len(sink.calls))
	}
	// Second call starts where the first turn's history ended, so prior
	// tool entries are not logged twice.
	if sink.calls[1].prevLen != sink.calls[0].total {
		t.Errorf("expected delta from %d, got %d", sink.calls[0].total, sink.calls[1].prevLen)
	}
}

func TestExecutePassesSharedStateSnapshot(t *testing.T) {
	backend := &fakeBackend{output: "done"}
	d := newDispatcher(backend, nil)
	sess := session.New(0)
	sess.State.AddFinding("sample is packed")

	task := models.Task{ID: "t1", Role: models.RoleDynamic, Objective: "detonate"}
	if _, err := d.Execute(context.Background(), task, sess, "run-1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(backend.requests) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(backend.requests))
	}
	if !strings.Contains(backend.requests[0].Prompt, "sample is packed") {
		t.Error("worker prompt missing shared-state snapshot")
	}
	if !strings.Contains(backend.requests[0].Prompt, "detonate") {
		t.Error("worker prompt missing task objective")
	}
}

func TestExecuteConcurrentSameRole(t *testing.T) {
	backend := &fakeBackend{output: "done", withTool: true}
	d := newDispatcher(backend, &recordingAudit{})
	sess := session.New(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := models.Task{ID: "t", Role: models.RoleStatic, Objective: "x"}
			if _, err := d.Execute(context.Background(), task, sess, "run-1"); err != nil {
				t.Errorf("Execute failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(sess.State.Outputs()); got != 8 {
		t.Errorf("expected 8 records, got %d", got)
	}
}
