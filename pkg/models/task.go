package models

// TaskStatus represents the recorded outcome of a task execution.
type TaskStatus string

const (
	// TaskStatusOK indicates the worker produced output normally.
	TaskStatusOK TaskStatus = "ok"
	// TaskStatusFailed indicates the worker call failed; the output text
	// carries the failure description.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOK, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Task is one unit of planned work, bound to a worker role.
// Tasks are produced by the planner and immutable once the plan validates.
type Task struct {
	// ID is unique within a plan.
	ID string `json:"id"`
	// Role is the worker role that executes this task.
	Role Role `json:"role"`
	// Objective describes what the worker should accomplish.
	Objective string `json:"objective"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// CanRunParallel marks the task safe to execute alongside other
	// ready parallel-eligible tasks.
	CanRunParallel bool `json:"can_run_parallel"`
	// SuccessCriteria is advisory guidance for the worker and verifier.
	SuccessCriteria []string `json:"success_criteria,omitempty"`
}

// ExecutionPlan is the full set of tasks for one user request.
// Never mutated after validation.
type ExecutionPlan struct {
	Tasks []Task `json:"tasks"`
	// FinalOutputStyle hints how the reporter should format the answer.
	FinalOutputStyle string `json:"final_output_style"`
}

// Batch is a scheduler-produced group of tasks whose dependencies are all
// satisfied. Tasks within a multi-task batch have no ordering constraints
// among themselves. Ephemeral: computed fresh per plan.
type Batch struct {
	Tasks []Task
}

// IDs returns the task IDs in the batch, in batch order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Tasks))
	for i, t := range b.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// TaskOutputRecord is the append-only record of one task execution,
// including retries. Insertion order in shared state is execution order.
type TaskOutputRecord struct {
	TaskID    string     `json:"task_id"`
	Role      Role       `json:"role"`
	Objective string     `json:"objective"`
	Status    TaskStatus `json:"status"`
	Output    string     `json:"output_text"`
}
