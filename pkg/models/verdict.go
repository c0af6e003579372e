package models

// IssueSeverity grades a verification issue.
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// VerificationIssue flags a problem the verifier found with one task's output.
type VerificationIssue struct {
	TaskID      string        `json:"task_id"`
	Severity    IssueSeverity `json:"severity"`
	Problem     string        `json:"problem"`
	RequiredFix string        `json:"required_fix"`
}

// RetryTask is a one-shot rework task proposed by the verifier. Retries are
// executed exactly once and never re-verified.
type RetryTask struct {
	TaskID    string `json:"task_id"`
	Role      Role   `json:"role"`
	Objective string `json:"objective"`
}

// VerificationVerdict is the verifier's judgment of one executed batch.
// Consumed immediately by the orchestrator; not persisted beyond the run.
type VerificationVerdict struct {
	Approved   bool                `json:"approved"`
	Issues     []VerificationIssue `json:"issues,omitempty"`
	RetryTasks []RetryTask         `json:"retry_tasks,omitempty"`
}
