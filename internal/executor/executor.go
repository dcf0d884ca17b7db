// Package executor runs one iteration's batch of tool calls against a
// bounded worker pool. Per-call failures are isolated into error results;
// nothing a tool does can crash the batch or the task. Results are returned
// in proposal order regardless of completion order, so replayed histories
// are reproducible.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
	"github.com/fyrsmithlabs/agentd/internal/decision"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/agentd/internal/executor")

// ErrorKind classifies a failed tool result.
type ErrorKind string

const (
	ErrKindNone            ErrorKind = ""
	ErrKindToolNotFound    ErrorKind = "tool_not_found"
	ErrKindArgumentInvalid ErrorKind = "argument_invalid"
	ErrKindExecution       ErrorKind = "execution_error"
	ErrKindTimeout         ErrorKind = "timeout"
)

// Result is the immutable outcome of one tool call.
type Result struct {
	CallID    string        `json:"call_id"`
	Tool      string        `json:"tool"`
	Success   bool          `json:"success"`
	Payload   any           `json:"payload,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RetryPolicy is the per-executor retry configuration for transient tool
// failures. MaxAttempts <= 1 disables retries; errors surface to the
// decision provider on the first failure.
type RetryPolicy struct {
	MaxAttempts     int           `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
}

// Config configures an Executor.
type Config struct {
	// MaxConcurrency caps the worker pool. Pool size per batch is the batch
	// size, capped by this value.
	MaxConcurrency int `koanf:"max_concurrency"`

	// CallTimeout bounds each individual tool call.
	CallTimeout time.Duration `koanf:"call_timeout"`

	// Retry applies to every call; a configuration point, off by default.
	Retry RetryPolicy `koanf:"retry"`
}

// DefaultConfig returns executor defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		CallTimeout:    60 * time.Second,
		Retry:          RetryPolicy{MaxAttempts: 1},
	}
}

// Executor dispatches tool-call batches for one task.
//
// The executor is the only component that appends to the task's context
// store. Appends happen after the batch completes, in proposal order, so
// store contents are reproducible run to run.
type Executor struct {
	registry *tool.Registry
	store    *contextstore.Store
	logger   *zap.Logger
	cfg      Config
}

// New creates an executor bound to a registry and a task-owned store.
func New(registry *tool.Registry, store *contextstore.Store, logger *zap.Logger, cfg Config) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// ExecuteBatch runs all requests concurrently and returns results in the
// original request order. Individual failures (validation, execution error,
// timeout) become error results; they never abort sibling calls.
func (e *Executor) ExecuteBatch(ctx context.Context, requests []decision.ToolCallRequest) []Result {
	if len(requests) == 0 {
		return nil
	}

	ctx = logging.WithComponent(ctx, "tool_executor")

	poolSize := len(requests)
	if poolSize > e.cfg.MaxConcurrency {
		poolSize = e.cfg.MaxConcurrency
	}
	sem := make(chan struct{}, poolSize)

	// Index results by request position so proposal order is preserved
	// without a sort.
	results := make([]Result, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req decision.ToolCallRequest) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.runOne(ctx, req)
		}(i, req)
	}
	wg.Wait()

	// Fold successful payloads into the context store exactly once each,
	// in proposal order.
	for i, res := range results {
		if !res.Success {
			continue
		}
		def, err := e.registry.Resolve(res.Tool)
		if err != nil {
			continue
		}
		e.store.Append(def.Category, contextstore.Entry{
			Tool:      res.Tool,
			CallID:    res.CallID,
			Iteration: requests[i].Iteration,
			Payload:   res.Payload,
		})
	}

	return results
}

// runOne validates and executes a single request, converting every failure
// mode into an error result.
func (e *Executor) runOne(ctx context.Context, req decision.ToolCallRequest) Result {
	callCtx, span := tracer.Start(ctx, "executor.call_tool")
	span.SetAttributes(
		attribute.String("tool.name", req.Tool),
		attribute.String("tool.call_id", req.CallID),
	)
	defer span.End()

	start := time.Now()
	fail := func(kind ErrorKind, err error) Result {
		e.logger.Warn("tool call failed",
			append(logging.ContextFields(callCtx),
				zap.String("tool", req.Tool),
				zap.String("call_id", req.CallID),
				zap.String("kind", string(kind)),
				zap.Error(err))...)
		return Result{
			CallID:    req.CallID,
			Tool:      req.Tool,
			Success:   false,
			Error:     err.Error(),
			ErrorKind: kind,
			Duration:  time.Since(start),
		}
	}

	def, err := e.registry.Resolve(req.Tool)
	if err != nil {
		return fail(ErrKindToolNotFound, err)
	}
	if err := e.registry.ValidateArgs(req.Tool, req.Arguments); err != nil {
		return fail(ErrKindArgumentInvalid, err)
	}

	timeoutCtx, cancel := context.WithTimeout(callCtx, e.cfg.CallTimeout)
	defer cancel()

	payload, err := e.invoke(timeoutCtx, def, req.Arguments)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail(ErrKindTimeout, fmt.Errorf("tool %q exceeded %s: %w", req.Tool, e.cfg.CallTimeout, err))
		}
		return fail(ErrKindExecution, err)
	}

	e.logger.Debug("tool call completed",
		append(logging.ContextFields(callCtx),
			zap.String("tool", req.Tool),
			zap.String("call_id", req.CallID),
			zap.Duration("duration", duration))...)

	return Result{
		CallID:   req.CallID,
		Tool:     req.Tool,
		Success:  true,
		Payload:  payload,
		Duration: duration,
	}
}

// invoke runs the executor function with panic isolation, the per-call
// timeout, and the configured retry policy.
func (e *Executor) invoke(ctx context.Context, def tool.Definition, args map[string]any) (any, error) {
	operation := func() (any, error) {
		return e.guarded(ctx, def, args)
	}

	if e.cfg.Retry.MaxAttempts <= 1 {
		return operation()
	}

	bo := backoff.NewExponentialBackOff()
	if e.cfg.Retry.InitialInterval > 0 {
		bo.InitialInterval = e.cfg.Retry.InitialInterval
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(e.cfg.Retry.MaxAttempts)),
	)
}

// guarded executes the tool on its own goroutine so the call timeout holds
// even for tools that ignore context, and so a panicking tool becomes an
// error result instead of taking down the batch. A timed-out tool goroutine
// may briefly outlive the call; its result is discarded.
func (e *Executor) guarded(ctx context.Context, def tool.Definition, args map[string]any) (any, error) {
	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %q panicked: %v", def.Name, r)}
			}
		}()
		payload, err := def.Execute(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
