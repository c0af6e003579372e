package session

import (
	"sync"

	"github.com/spectersec/specter/pkg/models"
)

// SharedState accumulates cross-task artifacts, findings, and task outputs
// for the lifetime of a session. Task outputs are append-only; insertion
// order is execution order. Exactly one orchestration run mutates a given
// instance at a time.
type SharedState struct {
	mu        sync.RWMutex
	artifacts []string
	findings  []string
	outputs   []models.TaskOutputRecord
	runCount  int
}

// NewSharedState creates an empty shared state.
func NewSharedState() *SharedState {
	return &SharedState{}
}

// Summary is the compact view of shared state handed to the planner.
type Summary struct {
	Artifacts    []string `json:"artifacts"`
	FindingCount int      `json:"findings_count"`
	PreviousRuns int      `json:"previous_runs"`
}

// Snapshot is the full view handed to workers alongside their task.
type Snapshot struct {
	Artifacts   []string                  `json:"artifacts"`
	Findings    []string                  `json:"findings"`
	TaskOutputs []models.TaskOutputRecord `json:"task_outputs"`
	RunCount    int                       `json:"run_count"`
}

// AddArtifact records an opaque artifact reference (e.g. a sample path).
func (s *SharedState) AddArtifact(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, ref)
}

// AddFinding records a free-text finding.
func (s *SharedState) AddFinding(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, text)
}

// AppendOutput appends a task output record and increments the run counter.
func (s *SharedState) AppendOutput(rec models.TaskOutputRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, rec)
	s.runCount++
}

// Outputs returns a copy of all task output records in execution order.
func (s *SharedState) Outputs() []models.TaskOutputRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TaskOutputRecord, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// OutputsFor returns the records whose task ID is in the given set,
// in execution order.
func (s *SharedState) OutputsFor(taskIDs []string) []models.TaskOutputRecord {
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TaskOutputRecord
	for _, rec := range s.outputs {
		if want[rec.TaskID] {
			out = append(out, rec)
		}
	}
	return out
}

// RunCount returns the number of task executions recorded so far.
func (s *SharedState) RunCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runCount
}

// Summarize returns the planner-facing summary.
func (s *SharedState) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifacts := make([]string, len(s.artifacts))
	copy(artifacts, s.artifacts)
	return Summary{
		Artifacts:    artifacts,
		FindingCount: len(s.findings),
		PreviousRuns: s.runCount,
	}
}

// Snapshot returns the worker-facing view of the full state.
func (s *SharedState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Artifacts:   make([]string, len(s.artifacts)),
		Findings:    make([]string, len(s.findings)),
		TaskOutputs: make([]models.TaskOutputRecord, len(s.outputs)),
		RunCount:    s.runCount,
	}
	copy(snap.Artifacts, s.artifacts)
	copy(snap.Findings, s.findings)
	copy(snap.TaskOutputs, s.outputs)
	return snap
}

// Reset clears all accumulated state. Idempotent.
func (s *SharedState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = nil
	s.findings = nil
	s.outputs = nil
	s.runCount = 0
}
