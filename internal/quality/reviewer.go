// Package quality scores accumulated context against fixed dimensions and
// decides whether a run needs refinement iterations before finalizing.
package quality

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
)

// Score holds the per-dimension assessment, each in [0,1].
type Score struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Depth        float64 `json:"depth"`
	Relevance    float64 `json:"relevance"`
	Clarity      float64 `json:"clarity"`
}

// Dimension weights for the overall score. Completeness dominates because
// unmet objectives are the main reason a run gets sent back.
const (
	weightCompleteness = 0.30
	weightAccuracy     = 0.20
	weightDepth        = 0.20
	weightRelevance    = 0.20
	weightClarity      = 0.10
)

// Overall computes the weighted mean of the dimensions.
func (s Score) Overall() float64 {
	return s.Completeness*weightCompleteness +
		s.Accuracy*weightAccuracy +
		s.Depth*weightDepth +
		s.Relevance*weightRelevance +
		s.Clarity*weightClarity
}

// Review is the outcome of one quality assessment.
type Review struct {
	Scores          Score    `json:"scores"`
	Overall         float64  `json:"overall"`
	Passed          bool     `json:"passed"`
	Gaps            []string `json:"gaps,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	Feedback        []string `json:"feedback,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	RefinementAreas []string `json:"refinement_areas,omitempty"`
}

// Reviewer scores a frozen context snapshot against the run's objectives.
// Implementations must be deterministic given identical inputs when backed
// by a deterministic scorer.
type Reviewer interface {
	Review(ctx context.Context, snapshot contextstore.Snapshot, objectives []string) (Review, error)
}

// Gate wraps a Reviewer with a pass threshold and a refinement budget that
// is bounded independently of the outer iteration cap, so the run
// terminates even if quality never reaches the threshold.
type Gate struct {
	reviewer       Reviewer
	threshold      float64
	maxRefinements int
}

// Defaults for gate configuration.
const (
	DefaultThreshold      = 0.7
	DefaultMaxRefinements = 2
)

// NewGate creates a gate. A threshold of 0 and maxRefinements of 0 select
// the defaults.
func NewGate(reviewer Reviewer, threshold float64, maxRefinements int) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if maxRefinements <= 0 {
		maxRefinements = DefaultMaxRefinements
	}
	return &Gate{
		reviewer:       reviewer,
		threshold:      threshold,
		maxRefinements: maxRefinements,
	}
}

// Threshold returns the configured pass threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// MaxRefinements returns the refinement budget.
func (g *Gate) MaxRefinements() int { return g.maxRefinements }

// Review scores the snapshot and fills in Overall and Passed against the
// gate threshold.
func (g *Gate) Review(ctx context.Context, snapshot contextstore.Snapshot, objectives []string) (Review, error) {
	review, err := g.reviewer.Review(ctx, snapshot, objectives)
	if err != nil {
		return Review{}, fmt.Errorf("quality review: %w", err)
	}
	if review.Overall == 0 {
		review.Overall = review.Scores.Overall()
	}
	review.Passed = review.Overall >= g.threshold
	return review, nil
}

// Exhausted reports whether the refinement budget is used up.
func (g *Gate) Exhausted(refinements int) bool {
	return refinements >= g.maxRefinements
}

// clamp bounds a score to [0,1].
func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
