// Agentd runs objective-driven tool orchestration from the command line.
//
// The binary drives a decide/execute loop against an OpenAI-compatible
// model: each iteration the model proposes tool calls, agentd executes
// them in parallel, and the accumulated results feed the next decision.
//
// Usage:
//
//	# Run an objective with the built-in tools
//	agentd run "Summarize the Go files under ./internal"
//
//	# Configure via environment
//	AGENTD_PROVIDER_MODEL=gpt-4o agentd run "..."
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Objective-driven tool orchestration agent",
	Long: `agentd drives an iterative decide/execute loop: a language model
proposes tool calls for an objective, agentd executes them concurrently,
and the results accumulate into a categorized context that shapes the
next decision until the model produces a final answer.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/agentd/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
