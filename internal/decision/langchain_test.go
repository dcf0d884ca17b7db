package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/agentd/internal/conversation"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

// fakeModel scripts GenerateContent responses for provider tests.
type fakeModel struct {
	responses []*llms.ContentResponse
	errs      []error
	calls     int

	lastMessages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.lastMessages = messages
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("fakeModel: no scripted response")
}

func (f *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: calls}},
	}
}

func searchManifest() []tool.ManifestEntry {
	return []tool.ManifestEntry{
		{Name: "web_search", Description: "Search the web"},
		{Name: "text_stats", Description: "Analyze text"},
	}
}

func TestLangChainProvider_DecideTermination(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("  final summary  ")}}
	p := NewLangChainProvider(model)

	outcome, err := p.Decide(context.Background(), nil, searchManifest())
	require.NoError(t, err)
	assert.True(t, outcome.Terminated())
	assert.Equal(t, "final summary", outcome.Final)
}

func TestLangChainProvider_DecideProposals(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse(
			llms.ToolCall{
				ID:           "call-1",
				FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `{"query":"golang"}`},
			},
			llms.ToolCall{
				ID:           "call-2",
				FunctionCall: &llms.FunctionCall{Name: "text_stats", Arguments: `{"text":"hello"}`},
			},
		),
	}}
	p := NewLangChainProvider(model)

	outcome, err := p.Decide(context.Background(), nil, searchManifest())
	require.NoError(t, err)
	assert.False(t, outcome.Terminated())
	require.Len(t, outcome.Proposals, 2)

	assert.Equal(t, "call-1", outcome.Proposals[0].CallID)
	assert.Equal(t, "web_search", outcome.Proposals[0].Tool)
	assert.Equal(t, map[string]any{"query": "golang"}, outcome.Proposals[0].Arguments)
	assert.Equal(t, "text_stats", outcome.Proposals[1].Tool)
}

func TestLangChainProvider_DecideUnknownTool(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse(llms.ToolCall{
			ID:           "call-1",
			FunctionCall: &llms.FunctionCall{Name: "nonexistent", Arguments: `{}`},
		}),
	}}
	p := NewLangChainProvider(model)

	_, err := p.Decide(context.Background(), nil, searchManifest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestLangChainProvider_DecideMalformedArguments(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse(llms.ToolCall{
			ID:           "call-1",
			FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `{"query": broken`},
		}),
	}}
	p := NewLangChainProvider(model)

	_, err := p.Decide(context.Background(), nil, searchManifest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestLangChainProvider_DecideEmptyArguments(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse(llms.ToolCall{
			ID:           "call-1",
			FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: ""},
		}),
	}}
	p := NewLangChainProvider(model)

	outcome, err := p.Decide(context.Background(), nil, searchManifest())
	require.NoError(t, err)
	require.Len(t, outcome.Proposals, 1)
	assert.Equal(t, map[string]any{}, outcome.Proposals[0].Arguments)
}

func TestLangChainProvider_DecideGeneratesCallID(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse(llms.ToolCall{
			FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `{}`},
		}),
	}}
	p := NewLangChainProvider(model)

	outcome, err := p.Decide(context.Background(), nil, searchManifest())
	require.NoError(t, err)
	require.Len(t, outcome.Proposals, 1)
	assert.NotEmpty(t, outcome.Proposals[0].CallID, "missing provider IDs get a generated one")
}

func TestLangChainProvider_DecideEmptyReply(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		{Choices: []*llms.ContentChoice{}},
	}}
	p := NewLangChainProvider(model)

	_, err := p.Decide(context.Background(), nil, searchManifest())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestLangChainProvider_DecideBlankContent(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("   ")}}
	p := NewLangChainProvider(model)

	_, err := p.Decide(context.Background(), nil, searchManifest())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestLangChainProvider_DecideModelError(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("connection refused")}}
	p := NewLangChainProvider(model)

	_, err := p.Decide(context.Background(), nil, searchManifest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidResponse, "transport errors are not invalid responses")
}

func TestToMessages(t *testing.T) {
	entries := []conversation.Entry{
		{Role: conversation.RoleSystem, Content: "framing"},
		{Role: conversation.RoleUser, Content: "objective"},
		{Role: conversation.RoleAssistant, Content: "thinking"},
		{Role: conversation.RoleTool, Content: `{"success":true}`, ToolCallID: "c1", ToolName: "web_search"},
	}

	messages := toMessages(entries)
	require.Len(t, messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, messages[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, messages[3].Role)

	resp, ok := messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c1", resp.ToolCallID)
	assert.Equal(t, "web_search", resp.Name)
}

func TestToTools(t *testing.T) {
	tools := toTools(searchManifest())
	require.Len(t, tools, 2)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "web_search", tools[0].Function.Name)
	assert.Equal(t, "Search the web", tools[0].Function.Description)
}
