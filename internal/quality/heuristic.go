package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
)

// HeuristicReviewer scores context with deterministic lexical metrics: no
// model calls, identical inputs always produce identical reviews. It is the
// default reviewer and the reference scorer for tests.
type HeuristicReviewer struct{}

// NewHeuristicReviewer creates the deterministic reviewer.
func NewHeuristicReviewer() *HeuristicReviewer {
	return &HeuristicReviewer{}
}

// Review scores the snapshot against the objectives.
func (r *HeuristicReviewer) Review(_ context.Context, snapshot contextstore.Snapshot, objectives []string) (Review, error) {
	text := flatten(snapshot)

	scores := Score{
		Completeness: objectiveCoverage(text, objectives),
		Accuracy:     categoryCorroboration(snapshot),
		Depth:        depthScore(text),
		Relevance:    relevanceScore(text, objectives),
		Clarity:      clarityScore(text),
	}

	review := Review{
		Scores:  scores,
		Overall: scores.Overall(),
	}

	for _, obj := range objectives {
		if coverage := objectiveCoverage(text, []string{obj}); coverage < 0.5 {
			review.Gaps = append(review.Gaps, obj)
			review.RefinementAreas = append(review.RefinementAreas, obj)
			review.Feedback = append(review.Feedback,
				fmt.Sprintf("objective %q is not sufficiently covered by the accumulated results", obj))
		} else {
			review.Strengths = append(review.Strengths, obj)
		}
	}
	if snapshot.Len(contextstore.CategoryAnalysis) == 0 {
		review.Recommendations = append(review.Recommendations,
			"no analysis results accumulated; run analysis tools over the gathered research")
	}

	return review, nil
}

// flatten serializes all snapshot payloads into one lowercase text blob.
// Categories and entries are visited in a fixed order so the result is
// stable for a given snapshot.
func flatten(snapshot contextstore.Snapshot) string {
	var sb strings.Builder
	for _, category := range contextstore.Categories() {
		for _, entry := range snapshot[category] {
			raw, err := json.Marshal(entry.Payload)
			if err != nil {
				continue
			}
			sb.Write(raw)
			sb.WriteByte('\n')
		}
	}
	return strings.ToLower(sb.String())
}

// objectiveCoverage measures the fraction of objective keywords present in
// the accumulated text.
func objectiveCoverage(text string, objectives []string) float64 {
	if len(objectives) == 0 {
		return 1.0
	}

	var covered, total int
	for _, obj := range objectives {
		keywords := keywords(obj)
		if len(keywords) == 0 {
			continue
		}
		total += len(keywords)
		for kw := range keywords {
			if strings.Contains(text, kw) {
				covered++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(covered) / float64(total)
}

// categoryCorroboration rewards findings corroborated by more than one kind
// of work. Single-category context scores low on accuracy because nothing
// cross-checks it.
func categoryCorroboration(snapshot contextstore.Snapshot) float64 {
	populated := 0
	for _, category := range contextstore.Categories() {
		if category == contextstore.CategoryQuality {
			continue
		}
		if snapshot.Len(category) > 0 {
			populated++
		}
	}
	switch populated {
	case 0:
		return 0
	case 1:
		return 0.5
	case 2:
		return 0.8
	default:
		return 1.0
	}
}

// depthScore rewards the volume of accumulated detail on a log scale,
// saturating around 16KB of payload text.
func depthScore(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	return clamp(math.Log2(float64(len(text))) / 14.0)
}

// relevanceScore is the Jaccard similarity between objective words and
// accumulated content words.
func relevanceScore(text string, objectives []string) float64 {
	objWords := make(map[string]bool)
	for _, obj := range objectives {
		for w := range keywords(obj) {
			objWords[w] = true
		}
	}
	textWords := keywords(text)
	if len(objWords) == 0 || len(textWords) == 0 {
		return 0
	}

	intersection := 0
	for w := range objWords {
		if textWords[w] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(objWords))
}

// clarityScore checks for sentence-like structure in textual payloads.
func clarityScore(text string) float64 {
	words := 0
	sentences := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				words++
				inWord = true
			}
		case r == '.' || r == '!' || r == '?':
			sentences++
			inWord = false
		default:
			inWord = false
		}
	}
	if words == 0 {
		return 0
	}
	if sentences == 0 {
		return 0.4
	}
	avg := float64(words) / float64(sentences)
	switch {
	case avg >= 8 && avg <= 25:
		return 1.0
	case avg >= 4 && avg < 8:
		return 0.8
	default:
		return 0.6
	}
}

// stopwords excluded from keyword extraction.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "for": true,
	"to": true, "in": true, "on": true, "with": true, "is": true, "are": true,
	"its": true, "their": true, "this": true, "that": true,
}

// keywords extracts the lowercase content words of a string.
func keywords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
