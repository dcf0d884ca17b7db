package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel replies with a fixed content string.
type scriptedModel struct {
	content string
	err     error
}

func (s *scriptedModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.content}},
	}, nil
}

func (s *scriptedModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

const verdictJSON = `{"scores":{"completeness":0.8,"accuracy":0.7,"depth":0.6,"relevance":0.9,"clarity":0.75},` +
	`"gaps":["missing pricing data"],"strengths":["good coverage"],"feedback":["add pricing"],` +
	`"recommendations":["run pricing analysis"],"refinement_areas":["pricing"]}`

func TestModelReviewer_Review(t *testing.T) {
	reviewer := NewModelReviewer(&scriptedModel{content: verdictJSON})

	review, err := reviewer.Review(context.Background(), researchSnapshot(), []string{"research the market"})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, review.Scores.Completeness, 1e-9)
	assert.InDelta(t, 0.7, review.Scores.Accuracy, 1e-9)
	assert.Equal(t, []string{"missing pricing data"}, review.Gaps)
	assert.Equal(t, []string{"pricing"}, review.RefinementAreas)
	assert.InDelta(t, review.Scores.Overall(), review.Overall, 1e-9)
}

func TestModelReviewer_ReviewToleratesProse(t *testing.T) {
	reviewer := NewModelReviewer(&scriptedModel{
		content: "Here is my assessment:\n```json\n" + verdictJSON + "\n```\nLet me know if you need more.",
	})

	review, err := reviewer.Review(context.Background(), researchSnapshot(), []string{"research the market"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, review.Scores.Completeness, 1e-9)
}

func TestModelReviewer_ClampsScores(t *testing.T) {
	reviewer := NewModelReviewer(&scriptedModel{
		content: `{"scores":{"completeness":1.7,"accuracy":-0.3,"depth":0.5,"relevance":0.5,"clarity":0.5}}`,
	})

	review, err := reviewer.Review(context.Background(), researchSnapshot(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, review.Scores.Completeness)
	assert.Equal(t, 0.0, review.Scores.Accuracy)
}

func TestModelReviewer_NoJSON(t *testing.T) {
	reviewer := NewModelReviewer(&scriptedModel{content: "I cannot assess this."})

	_, err := reviewer.Review(context.Background(), researchSnapshot(), nil)
	assert.Error(t, err)
}

func TestModelReviewer_ModelError(t *testing.T) {
	reviewer := NewModelReviewer(&scriptedModel{err: errors.New("connection refused")})

	_, err := reviewer.Review(context.Background(), researchSnapshot(), nil)
	assert.Error(t, err)
}

func TestBuildReviewPrompt(t *testing.T) {
	prompt := buildReviewPrompt(researchSnapshot(), []string{"research the market", "analyze growth"})

	assert.Contains(t, prompt, "1. research the market")
	assert.Contains(t, prompt, "2. analyze growth")
	assert.Contains(t, prompt, "[research]")
	assert.Contains(t, prompt, "[analysis]")
	assert.Contains(t, prompt, "web_search")
}
