package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/config"
	"github.com/fyrsmithlabs/agentd/internal/decision"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/orchestrator"
	"github.com/fyrsmithlabs/agentd/internal/quality"
	"github.com/fyrsmithlabs/agentd/internal/telemetry"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

var (
	flagMaxIterations int
	flagQuality       bool
	flagConstraints   []string
	flagJSON          bool
)

var runCmd = &cobra.Command{
	Use:   "run <objective>",
	Short: "Run an objective through the orchestration loop",
	Long: `Run an objective through the decide/execute loop using the built-in
tools and the configured decision provider.

Examples:
  # Basic run
  agentd run "Summarize the README of this repository"

  # With the quality gate and constraints
  agentd run --quality --constraint audience=executives "Research Go logging libraries"`,
	Args: cobra.ExactArgs(1),
	RunE: runObjective,
}

func init() {
	runCmd.Flags().IntVar(&flagMaxIterations, "max-iterations", 0, "override the configured iteration cap")
	runCmd.Flags().BoolVar(&flagQuality, "quality", false, "enable the quality gate regardless of config")
	runCmd.Flags().StringArrayVar(&flagConstraints, "constraint", nil, "constraint as key=value (repeatable)")
	runCmd.Flags().BoolVar(&flagJSON, "json", false, "emit the full task result as JSON")
}

func runObjective(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry := tool.NewRegistry()
	if err := registerBuiltinTools(registry); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	model, err := newModel(cfg.Provider)
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	providerOpts := []decision.LangChainOption{
		decision.WithLogger(logger),
		decision.WithTemperature(cfg.Provider.Temperature),
	}
	if cfg.Provider.RatePerSecond > 0 {
		providerOpts = append(providerOpts, decision.WithRateLimit(cfg.Provider.RatePerSecond, cfg.Provider.RateBurst))
	}
	provider := decision.NewLangChainProvider(model, providerOpts...)

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if cfg.Quality.Enabled || flagQuality {
		var reviewer quality.Reviewer
		if cfg.Quality.Reviewer == "model" {
			reviewer = quality.NewModelReviewer(model)
		} else {
			reviewer = quality.NewHeuristicReviewer()
		}
		opts = append(opts, orchestrator.WithQualityGate(
			quality.NewGate(reviewer, cfg.Quality.Threshold, cfg.Quality.MaxRefinements)))
	}

	orch := orchestrator.New(registry, provider, cfg.OrchestratorSettings(), opts...)

	req := orchestrator.Request{
		Objective:     args[0],
		Constraints:   parseConstraints(flagConstraints),
		MaxIterations: flagMaxIterations,
	}

	result, err := orch.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Content != "" {
		fmt.Println(result.Content)
	}
	if result.Status != orchestrator.StatusCompleted {
		fmt.Fprintf(os.Stderr, "status: %s after %d iterations\n", result.Status, result.Iterations)
	}
	return nil
}

// newModel builds the OpenAI-compatible client for decisions and reviews.
// The API key comes from OPENAI_API_KEY unless a base URL points at a
// local server that needs none.
func newModel(cfg config.ProviderConfig) (*openai.LLM, error) {
	var opts []openai.Option
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		if os.Getenv("OPENAI_API_KEY") == "" {
			// langchaingo requires a token even for keyless local servers
			opts = append(opts, openai.WithToken("placeholder"))
		}
	}
	return openai.New(opts...)
}

func parseConstraints(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		if !found || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
