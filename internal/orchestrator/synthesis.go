package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
	"github.com/fyrsmithlabs/agentd/internal/executor"
	"github.com/fyrsmithlabs/agentd/internal/quality"
)

// systemPrompt frames the decision provider as the loop's strategist.
const systemPrompt = `You are an autonomous research orchestrator with access to registered tools.

Work strategically:
1. Start with foundational research before analysis.
2. Build context progressively; later calls benefit from earlier results.
3. Only batch together tool calls that are independent of each other.
4. Each call should add meaningful value; avoid redundant work.
5. When the objectives are met, stop calling tools and reply with a concise final summary.

The available tools and their parameter schemas are provided with every turn. Unknown tools cannot be dispatched.`

// buildObjectivePrompt renders the initial user framing for a request.
func buildObjectivePrompt(req Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Objective: %s\n", req.Objective)

	if len(req.Objectives) > 0 {
		sb.WriteString("\nSub-objectives:\n")
		for i, obj := range req.Objectives {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, obj)
		}
	}

	if len(req.Constraints) > 0 {
		sb.WriteString("\nConstraints:\n")
		keys := make([]string, 0, len(req.Constraints))
		for k := range req.Constraints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, req.Constraints[k])
		}
	}

	sb.WriteString("\nUse the available tools to achieve the objective. When done, reply with a final summary instead of calling tools.")
	return sb.String()
}

// buildRefinementPrompt turns a failed quality review into the instruction
// for the next refinement iteration.
func buildRefinementPrompt(review quality.Review) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "The accumulated results scored %.2f overall and did not meet the quality bar. Refine the work before finishing.\n", review.Overall)

	if len(review.Gaps) > 0 {
		sb.WriteString("\nGaps to close:\n")
		for _, gap := range review.Gaps {
			fmt.Fprintf(&sb, "- %s\n", gap)
		}
	}
	if len(review.Feedback) > 0 {
		sb.WriteString("\nReviewer feedback:\n")
		for _, fb := range review.Feedback {
			fmt.Fprintf(&sb, "- %s\n", fb)
		}
	}
	if len(review.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, rec := range review.Recommendations {
			fmt.Fprintf(&sb, "- %s\n", rec)
		}
	}

	sb.WriteString("\nAddress the gaps with further tool calls, then provide an updated final summary.")
	return sb.String()
}

// renderResult serializes a tool result for the conversation log. Failures
// carry the error kind and description so the provider can react.
func renderResult(res executor.Result) string {
	if !res.Success {
		return fmt.Sprintf(`{"success":false,"error_kind":%q,"error":%q}`, res.ErrorKind, res.Error)
	}

	payload, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Sprintf(`{"success":true,"result":%q}`, fmt.Sprintf("%v", res.Payload))
	}
	return fmt.Sprintf(`{"success":true,"result":%s}`, payload)
}

// maxSynthesisEntryLen bounds each rendered payload in the synthesis.
const maxSynthesisEntryLen = 1024

// synthesize produces the final answer from the context store snapshot, not
// from the possibly compacted conversation log. The output is a pure
// function of its inputs: identical snapshots yield identical text.
func synthesize(finalContent string, snapshot contextstore.Snapshot) string {
	var sb strings.Builder

	if finalContent != "" {
		sb.WriteString(finalContent)
		sb.WriteString("\n")
	}

	if snapshot.Total() == 0 {
		return strings.TrimRight(sb.String(), "\n")
	}

	sb.WriteString("\n---\nAccumulated context:\n")
	for _, category := range contextstore.Categories() {
		entries := snapshot[category]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n[%s] %d result(s)\n", category, len(entries))
		for _, entry := range entries {
			raw, err := json.Marshal(entry.Payload)
			if err != nil {
				continue
			}
			rendered := string(raw)
			if len(rendered) > maxSynthesisEntryLen {
				rendered = rendered[:maxSynthesisEntryLen] + "…"
			}
			fmt.Fprintf(&sb, "- %s (iteration %d): %s\n", entry.Tool, entry.Iteration, rendered)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
