// Package conversation provides the ordered, role-tagged exchange history
// that is replayed to the decision provider each iteration. The log is
// append-only and strictly ordered by iteration; it is logically distinct
// from the context store, which holds the full tool payloads and is never
// compacted.
package conversation

import (
	"fmt"
	"time"
)

// Role tags the author of a log entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Entry is one exchange in the conversation.
type Entry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`

	// ToolCallID links a tool entry to the result it reports.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName names the tool for tool entries.
	ToolName string `json:"tool_name,omitempty"`
	// IsError marks tool entries that report a failure.
	IsError bool `json:"is_error,omitempty"`

	// compacted marks entries whose content was summarized for replay.
	compacted bool
}

// Log is the append-only conversation history for one task. It is owned by
// a single orchestrator and is not safe for concurrent mutation; the
// orchestrator appends between iterations, never during parallel execution.
type Log struct {
	entries []Entry
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry to the log.
func (l *Log) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	l.entries = append(l.entries, e)
}

// AppendSystem appends the system framing entry.
func (l *Log) AppendSystem(content string) {
	l.Append(Entry{Role: RoleSystem, Content: content})
}

// AppendUser appends a user entry.
func (l *Log) AppendUser(content string, iteration int) {
	l.Append(Entry{Role: RoleUser, Content: content, Iteration: iteration})
}

// AppendAssistant appends a decision-provider entry.
func (l *Log) AppendAssistant(content string, iteration int) {
	l.Append(Entry{Role: RoleAssistant, Content: content, Iteration: iteration})
}

// AppendToolResult appends a tool result entry. Failed results are appended
// the same way as successes so the decision provider always sees them.
func (l *Log) AppendToolResult(callID, toolName, content string, isError bool, iteration int) {
	l.Append(Entry{
		Role:       RoleTool,
		Content:    content,
		Iteration:  iteration,
		ToolCallID: callID,
		ToolName:   toolName,
		IsError:    isError,
	})
}

// Entries returns the full history in order. The returned slice is a copy;
// callers cannot mutate the log through it.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Compact summarizes the content of tool entries older than keepIterations
// iterations before the given iteration. Compaction trims what is replayed
// to the decision provider; the context store retains every full payload.
func (l *Log) Compact(currentIteration, keepIterations, maxContentLen int) int {
	if maxContentLen <= 0 {
		return 0
	}

	cutoff := currentIteration - keepIterations
	compacted := 0
	for i := range l.entries {
		e := &l.entries[i]
		if e.Role != RoleTool || e.compacted || e.Iteration >= cutoff {
			continue
		}
		if len(e.Content) <= maxContentLen {
			continue
		}
		e.Content = fmt.Sprintf("%s… [%d bytes omitted; full result retained in context store]",
			e.Content[:maxContentLen], len(e.Content)-maxContentLen)
		e.compacted = true
		compacted++
	}
	return compacted
}
