package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/agentd/internal/conversation"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

// LangChainProvider implements Provider on top of a langchaingo llms.Model,
// which keeps the adapter provider-agnostic (OpenAI, Anthropic, Ollama, ...).
type LangChainProvider struct {
	model       llms.Model
	logger      *zap.Logger
	limiter     *rate.Limiter
	temperature float64
}

// LangChainOption configures a LangChainProvider.
type LangChainOption func(*LangChainProvider)

// WithLogger sets the provider logger.
func WithLogger(l *zap.Logger) LangChainOption {
	return func(p *LangChainProvider) { p.logger = l }
}

// WithRateLimit caps decision calls at r per second with the given burst.
func WithRateLimit(r float64, burst int) LangChainOption {
	return func(p *LangChainProvider) { p.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LangChainOption {
	return func(p *LangChainProvider) { p.temperature = t }
}

// NewLangChainProvider creates a provider backed by the given model.
func NewLangChainProvider(model llms.Model, opts ...LangChainOption) *LangChainProvider {
	p := &LangChainProvider{
		model:       model,
		logger:      zap.NewNop(),
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide replays the conversation with the tool manifest attached and parses
// the model's reply into an Outcome.
func (p *LangChainProvider) Decide(ctx context.Context, entries []conversation.Entry, manifest []tool.ManifestEntry) (Outcome, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Outcome{}, fmt.Errorf("decision rate limit: %w", err)
		}
	}

	messages := toMessages(entries)
	tools := toTools(manifest)

	resp, err := p.model.GenerateContent(ctx, messages,
		llms.WithTools(tools),
		llms.WithTemperature(p.temperature),
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("decision call: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Outcome{}, fmt.Errorf("%w: empty reply", ErrInvalidResponse)
	}

	choice := resp.Choices[0]
	if len(choice.ToolCalls) == 0 {
		final := strings.TrimSpace(choice.Content)
		if final == "" {
			return Outcome{}, fmt.Errorf("%w: neither tool calls nor content", ErrInvalidResponse)
		}
		return Outcome{Final: final}, nil
	}

	outcome, err := p.parseToolCalls(choice.ToolCalls, manifest)
	if err != nil {
		return Outcome{}, err
	}

	p.logger.Debug("decision parsed",
		append(logging.ContextFields(ctx),
			zap.Int("proposals", len(outcome.Proposals)))...)
	return outcome, nil
}

// parseToolCalls converts model tool calls into requests, rejecting unknown
// tool names and unparseable argument payloads.
func (p *LangChainProvider) parseToolCalls(calls []llms.ToolCall, manifest []tool.ManifestEntry) (Outcome, error) {
	known := make(map[string]struct{}, len(manifest))
	for _, entry := range manifest {
		known[entry.Name] = struct{}{}
	}

	proposals := make([]ToolCallRequest, 0, len(calls))
	for _, call := range calls {
		if call.FunctionCall == nil || call.FunctionCall.Name == "" {
			return Outcome{}, fmt.Errorf("%w: tool call without function", ErrInvalidResponse)
		}
		name := call.FunctionCall.Name
		if _, ok := known[name]; !ok {
			return Outcome{}, fmt.Errorf("%w: unknown tool %q", ErrInvalidResponse, name)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.FunctionCall.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return Outcome{}, fmt.Errorf("%w: tool %q arguments: %v", ErrInvalidResponse, name, err)
			}
		}

		callID := call.ID
		if callID == "" {
			callID = uuid.New().String()
		}
		proposals = append(proposals, ToolCallRequest{
			CallID:    callID,
			Tool:      name,
			Arguments: args,
		})
	}
	return Outcome{Proposals: proposals}, nil
}

// toMessages converts the conversation log into provider messages.
func toMessages(entries []conversation.Entry) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case conversation.RoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, e.Content))
		case conversation.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, e.Content))
		case conversation.RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, e.Content))
		case conversation.RoleTool:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: e.ToolCallID,
						Name:       e.ToolName,
						Content:    e.Content,
					},
				},
			})
		}
	}
	return messages
}

// toTools converts the manifest into provider tool definitions.
func toTools(manifest []tool.ManifestEntry) []llms.Tool {
	tools := make([]llms.Tool, 0, len(manifest))
	for _, entry := range manifest {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        entry.Name,
				Description: entry.Description,
				Parameters:  entry.Schema,
			},
		})
	}
	return tools
}
