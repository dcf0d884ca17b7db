package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
)

// reviewerSystemPrompt frames the model as a research quality reviewer.
const reviewerSystemPrompt = `You are a strict quality reviewer for autonomous research runs.
You are given the accumulated tool results of a run and the original objectives.
Score the work on five dimensions, each 0 to 1: completeness, accuracy, depth, relevance, clarity.
Identify gaps, strengths, feedback, recommendations, and refinement areas.
Reply with a single JSON object and nothing else:
{"scores":{"completeness":0.0,"accuracy":0.0,"depth":0.0,"relevance":0.0,"clarity":0.0},"gaps":[],"strengths":[],"feedback":[],"recommendations":[],"refinement_areas":[]}`

// maxReviewPayload bounds how much snapshot text is sent to the model.
const maxReviewPayload = 16 * 1024

// ModelReviewer asks a language model for the quality verdict. It trades
// the determinism of HeuristicReviewer for judgment; use it when the gate
// threshold should reflect content quality rather than lexical coverage.
type ModelReviewer struct {
	model llms.Model
}

// NewModelReviewer creates a model-backed reviewer.
func NewModelReviewer(model llms.Model) *ModelReviewer {
	return &ModelReviewer{model: model}
}

// modelVerdict is the JSON shape the reviewer model replies with.
type modelVerdict struct {
	Scores struct {
		Completeness float64 `json:"completeness"`
		Accuracy     float64 `json:"accuracy"`
		Depth        float64 `json:"depth"`
		Relevance    float64 `json:"relevance"`
		Clarity      float64 `json:"clarity"`
	} `json:"scores"`
	Gaps            []string `json:"gaps"`
	Strengths       []string `json:"strengths"`
	Feedback        []string `json:"feedback"`
	Recommendations []string `json:"recommendations"`
	RefinementAreas []string `json:"refinement_areas"`
}

// Review submits the snapshot summary to the model and parses its verdict.
func (r *ModelReviewer) Review(ctx context.Context, snapshot contextstore.Snapshot, objectives []string) (Review, error) {
	prompt := buildReviewPrompt(snapshot, objectives)

	resp, err := r.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, reviewerSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(0))
	if err != nil {
		return Review{}, fmt.Errorf("reviewer model call: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Review{}, fmt.Errorf("reviewer model returned no choices")
	}

	verdict, err := parseVerdict(resp.Choices[0].Content)
	if err != nil {
		return Review{}, err
	}

	scores := Score{
		Completeness: clamp(verdict.Scores.Completeness),
		Accuracy:     clamp(verdict.Scores.Accuracy),
		Depth:        clamp(verdict.Scores.Depth),
		Relevance:    clamp(verdict.Scores.Relevance),
		Clarity:      clamp(verdict.Scores.Clarity),
	}
	return Review{
		Scores:          scores,
		Overall:         scores.Overall(),
		Gaps:            verdict.Gaps,
		Strengths:       verdict.Strengths,
		Feedback:        verdict.Feedback,
		Recommendations: verdict.Recommendations,
		RefinementAreas: verdict.RefinementAreas,
	}, nil
}

// parseVerdict extracts the JSON object from the model reply, tolerating
// surrounding prose or code fences.
func parseVerdict(content string) (modelVerdict, error) {
	var verdict modelVerdict

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return verdict, fmt.Errorf("reviewer reply contains no JSON object")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return verdict, fmt.Errorf("parse reviewer verdict: %w", err)
	}
	return verdict, nil
}

// buildReviewPrompt summarizes the snapshot per category for the model.
func buildReviewPrompt(snapshot contextstore.Snapshot, objectives []string) string {
	var sb strings.Builder

	sb.WriteString("Objectives:\n")
	for i, obj := range objectives {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, obj)
	}

	sb.WriteString("\nAccumulated results:\n")
	for _, category := range contextstore.Categories() {
		entries := snapshot[category]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n[%s] (%d results)\n", category, len(entries))
		for _, entry := range entries {
			raw, err := json.Marshal(entry.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", entry.Tool, raw)
			if sb.Len() > maxReviewPayload {
				sb.WriteString("… (truncated)\n")
				return sb.String()
			}
		}
	}
	return sb.String()
}
