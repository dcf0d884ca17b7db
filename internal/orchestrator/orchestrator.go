// Package orchestrator drives the agentic tool-orchestration loop: it asks
// the decision provider which tools to run, dispatches the batch to the
// executor, folds the results back into the conversation, and repeats until
// the provider terminates or the iteration cap is hit. An optional quality
// gate can send the run back for a bounded number of refinement iterations
// before finalizing.
//
// One decision step runs at a time; parallelism exists only inside the
// executing phase. Each run owns its own context store and conversation
// log, so concurrent runs cannot interfere.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
	"github.com/fyrsmithlabs/agentd/internal/conversation"
	"github.com/fyrsmithlabs/agentd/internal/decision"
	"github.com/fyrsmithlabs/agentd/internal/executor"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/quality"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/agentd/internal/orchestrator")

// Config configures an Orchestrator.
type Config struct {
	// MaxIterations caps decide/execute cycles per run.
	MaxIterations int `koanf:"max_iterations"`

	// Executor configures the per-run tool executor.
	Executor executor.Config `koanf:"executor"`

	// CompactAfter is how many iterations of full tool output to keep in
	// the replayed conversation; older tool entries are summarized. Zero
	// disables compaction. The context store is never compacted.
	CompactAfter int `koanf:"compact_after"`

	// CompactMaxLen is the content length kept for compacted entries.
	CompactMaxLen int `koanf:"compact_max_len"`
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 20,
		Executor:      executor.DefaultConfig(),
		CompactAfter:  3,
		CompactMaxLen: 2048,
	}
}

// Orchestrator runs tasks. It is safe for concurrent Run calls; all mutable
// state lives in the per-run task.
type Orchestrator struct {
	registry *tool.Registry
	provider decision.Provider
	gate     *quality.Gate
	logger   *zap.Logger
	cfg      Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithQualityGate enables the quality gate layer.
func WithQualityGate(gate *quality.Gate) Option {
	return func(o *Orchestrator) { o.gate = gate }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator. The registry is frozen on first Run.
func New(registry *tool.Registry, provider decision.Provider, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	o := &Orchestrator{
		registry: registry,
		provider: provider,
		logger:   zap.NewNop(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one task to a terminal state.
//
// Tool-level failures are recoverable: they are appended to the conversation
// and surface to the decision provider on the next decision step. A
// malformed provider reply is retried once, then fatal. Hitting the
// iteration cap is a normal outcome (StatusIncomplete), not an error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*TaskResult, error) {
	if req.Objective == "" {
		return nil, fmt.Errorf("objective must not be empty")
	}

	o.registry.Freeze()

	t := newTask(req, o.cfg.MaxIterations)
	ctx = logging.WithRun(ctx, logging.Run{ThreadID: t.threadID, RunID: t.runID})
	ctx = logging.WithComponent(ctx, "orchestrator")

	ctx, span := tracer.Start(ctx, "orchestrator.run")
	span.SetAttributes(
		attribute.String("task.thread_id", t.threadID),
		attribute.String("task.run_id", t.runID),
		attribute.Int("task.max_iterations", t.maxIter),
	)
	defer span.End()

	// Task-scoped collaborators: one store, one log, one executor per run.
	store := contextstore.New()
	log := conversation.NewLog()
	exec := executor.New(o.registry, store, o.logger, o.cfg.Executor)

	log.AppendSystem(systemPrompt)
	log.AppendUser(buildObjectivePrompt(req), 0)

	o.logger.Info("task started",
		append(logging.ContextFields(ctx),
			zap.String("objective", req.Objective),
			zap.Int("max_iterations", t.maxIter))...)

	var (
		st           = stateDeciding
		finalContent string
		proposals    []decision.ToolCallRequest
		review       *quality.Review
	)

	for st != stateTerminal {
		switch st {
		case stateDeciding:
			outcome, err := o.decide(ctx, log, t)
			if err != nil {
				o.logger.Error("decision provider failed",
					append(logging.ContextFields(ctx), zap.Error(err))...)
				t.result.Status = StatusFailed
				st = stateTerminal
				continue
			}
			if outcome.Terminated() {
				finalContent = outcome.Final
				log.AppendAssistant(finalContent, t.iteration)
				if o.gate != nil {
					st = stateReviewing
				} else {
					st = stateFinalizing
				}
				continue
			}
			proposals = outcome.Proposals
			st = stateExecuting

		case stateExecuting:
			t.iteration++
			for i := range proposals {
				proposals[i].Iteration = t.iteration
			}

			results := exec.ExecuteBatch(ctx, proposals)
			o.recordResults(t, log, proposals, results)

			if o.cfg.CompactAfter > 0 {
				log.Compact(t.iteration, o.cfg.CompactAfter, o.cfg.CompactMaxLen)
			}

			if t.iteration >= t.maxIter {
				o.logger.Warn("iteration cap reached",
					append(logging.ContextFields(ctx),
						zap.Int("iterations", t.iteration))...)
				t.result.Status = StatusIncomplete
				st = stateTerminal
				continue
			}
			st = stateDeciding

		case stateReviewing:
			rev, err := o.gate.Review(ctx, store.Snapshot(), t.reviewObjectives())
			if err != nil {
				// A broken reviewer must not sink a finished run.
				o.logger.Warn("quality review failed, finalizing without gate",
					append(logging.ContextFields(ctx), zap.Error(err))...)
				st = stateFinalizing
				continue
			}
			review = &rev
			o.logger.Info("quality review",
				append(logging.ContextFields(ctx),
					zap.Float64("overall", rev.Overall),
					zap.Bool("passed", rev.Passed),
					zap.Int("refinements", t.result.Refinements))...)

			if rev.Passed {
				st = stateFinalizing
				continue
			}
			if o.gate.Exhausted(t.result.Refinements) {
				t.result.QualityNotMet = true
				st = stateFinalizing
				continue
			}
			t.result.Refinements++
			log.AppendUser(buildRefinementPrompt(rev), t.iteration)
			st = stateDeciding

		case stateFinalizing:
			t.result.Content = synthesize(finalContent, store.Snapshot())
			t.result.Status = StatusCompleted
			st = stateTerminal
		}
	}

	t.result.Context = store.Snapshot()
	t.result.Iterations = t.iteration
	t.result.Review = review
	t.result.Duration = time.Since(t.startedAt)

	span.SetAttributes(
		attribute.String("task.status", string(t.result.Status)),
		attribute.Int("task.iterations", t.result.Iterations),
	)
	o.logger.Info("task finished",
		append(logging.ContextFields(ctx),
			zap.String("status", string(t.result.Status)),
			zap.Int("iterations", t.result.Iterations),
			zap.Int("tool_calls", len(t.result.ToolCalls)),
			zap.Duration("duration", t.result.Duration))...)

	result := t.result
	return &result, nil
}

// decide calls the provider with the replayed conversation and the tool
// manifest. A malformed reply is retried once before becoming fatal.
func (o *Orchestrator) decide(ctx context.Context, log *conversation.Log, t *task) (decision.Outcome, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.decide")
	span.SetAttributes(attribute.Int("task.iteration", t.iteration))
	defer span.End()

	manifest := o.registry.Manifest()

	outcome, err := o.provider.Decide(ctx, log.Entries(), manifest)
	if err == nil {
		return outcome, nil
	}
	if !errors.Is(err, decision.ErrInvalidResponse) {
		return decision.Outcome{}, err
	}

	o.logger.Warn("invalid decision response, retrying once",
		append(logging.ContextFields(ctx), zap.Error(err))...)

	outcome, retryErr := o.provider.Decide(ctx, log.Entries(), manifest)
	if retryErr != nil {
		return decision.Outcome{}, fmt.Errorf("decision retry failed: %w", retryErr)
	}
	return outcome, nil
}

// recordResults appends every result to the conversation and the tool-call
// log. Results arrive in proposal order, so replayed history is independent
// of completion timing. Failed results are appended unconditionally; the
// provider must see them on the next decision step.
func (o *Orchestrator) recordResults(t *task, log *conversation.Log, proposals []decision.ToolCallRequest, results []executor.Result) {
	for i, res := range results {
		content := renderResult(res)
		log.AppendToolResult(res.CallID, res.Tool, content, !res.Success, t.iteration)

		t.result.ToolCalls = append(t.result.ToolCalls, ToolCallRecord{
			Iteration: t.iteration,
			Tool:      res.Tool,
			CallID:    res.CallID,
			Arguments: proposals[i].Arguments,
			Success:   res.Success,
			Error:     res.Error,
			Duration:  res.Duration,
		})
	}
}
