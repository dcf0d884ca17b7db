// Package decision wraps the external language model behind a narrow
// interface: given the conversation so far and the tool manifest, it returns
// either a batch of tool-call proposals or a termination with final content.
// The orchestrator never sees a provider-specific request or response shape.
package decision

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/agentd/internal/conversation"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

// ErrInvalidResponse indicates the provider's reply could not be parsed into
// a tool-call proposal or a termination: malformed arguments, an unknown
// tool name, or an empty reply. It is recoverable; the orchestrator retries
// the decision once before treating it as fatal.
var ErrInvalidResponse = errors.New("invalid decision provider response")

// ToolCallRequest is one proposed tool invocation.
//
// Requests batched together in a single outcome carry no dependency on each
// other; the provider is responsible for only batching independent calls,
// which is what makes parallel execution safe.
type ToolCallRequest struct {
	// CallID correlates the request with its result.
	CallID string `json:"call_id"`

	// Tool is the registered tool name.
	Tool string `json:"tool"`

	// Arguments is the payload validated against the tool's schema.
	Arguments map[string]any `json:"arguments"`

	// Iteration records the iteration that proposed the call.
	Iteration int `json:"iteration"`
}

// Outcome is the tagged result of one decision step: either a non-empty
// proposal batch or a termination carrying the provider's final content.
type Outcome struct {
	Proposals []ToolCallRequest `json:"proposals,omitempty"`
	Final     string            `json:"final,omitempty"`
}

// Terminated reports whether the provider chose to stop proposing tools.
func (o Outcome) Terminated() bool {
	return len(o.Proposals) == 0
}

// Provider decides the next step of an agent run.
type Provider interface {
	Decide(ctx context.Context, entries []conversation.Entry, manifest []tool.ManifestEntry) (Outcome, error)
}
