package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
	"github.com/fyrsmithlabs/agentd/internal/quality"
)

// Status is the terminal disposition of a task.
type Status string

const (
	// StatusRunning marks a task whose loop is still executing.
	StatusRunning Status = "running"

	// StatusCompleted means the decision provider terminated normally and
	// the quality gate (if enabled) passed or exhausted its budget.
	StatusCompleted Status = "completed"

	// StatusIncomplete means the iteration cap was hit. Not an error: the
	// result carries whatever partial context was accumulated.
	StatusIncomplete Status = "incomplete"

	// StatusFailed means an unrecoverable decision provider error.
	StatusFailed Status = "failed"
)

// state is the orchestrator's internal state machine position.
type state int

const (
	stateDeciding state = iota
	stateExecuting
	stateReviewing
	stateFinalizing
	stateTerminal
)

// Request describes one end-to-end run.
type Request struct {
	// Objective is the task description handed to the decision provider.
	Objective string `json:"objective"`

	// Objectives optionally itemizes sub-objectives; they shape the
	// initial prompt and the quality review.
	Objectives []string `json:"objectives,omitempty"`

	// Constraints are free-form constraints included in the framing.
	Constraints map[string]string `json:"constraints,omitempty"`

	// MaxIterations caps decide/execute cycles. Zero selects the default.
	MaxIterations int `json:"max_iterations,omitempty"`
}

// ToolCallRecord is one entry of the task's tool-call log.
type ToolCallRecord struct {
	Iteration int            `json:"iteration"`
	Tool      string         `json:"tool"`
	CallID    string         `json:"call_id"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// TaskResult is returned to the caller when a task reaches a terminal state.
type TaskResult struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`

	Status  Status `json:"status"`
	Content string `json:"content"`

	ToolCalls []ToolCallRecord      `json:"tool_calls"`
	Context   contextstore.Snapshot `json:"context"`

	Iterations    int             `json:"iterations"`
	Refinements   int             `json:"refinements"`
	QualityNotMet bool            `json:"quality_not_met,omitempty"`
	Review        *quality.Review `json:"review,omitempty"`

	Duration time.Duration `json:"duration"`
}

// ToolCounts summarizes how often each tool was called during the run.
func (r *TaskResult) ToolCounts() map[string]int {
	counts := make(map[string]int)
	for _, call := range r.ToolCalls {
		counts[call.Tool]++
	}
	return counts
}

// task is the run-scoped mutable state, owned exclusively by one Run call.
// It is created at invocation and garbage-collected once the result is
// returned.
type task struct {
	threadID  string
	runID     string
	request   Request
	iteration int
	maxIter   int
	startedAt time.Time

	result TaskResult
}

func newTask(req Request, maxIter int) *task {
	if req.MaxIterations > 0 {
		maxIter = req.MaxIterations
	}
	t := &task{
		threadID:  uuid.New().String(),
		runID:     uuid.New().String(),
		request:   req,
		maxIter:   maxIter,
		startedAt: time.Now(),
	}
	t.result = TaskResult{
		ThreadID: t.threadID,
		RunID:    t.runID,
		Status:   StatusRunning,
	}
	return t
}

// reviewObjectives is the objective list handed to the quality gate.
func (t *task) reviewObjectives() []string {
	if len(t.request.Objectives) > 0 {
		return append([]string{t.request.Objective}, t.request.Objectives...)
	}
	return []string{t.request.Objective}
}
