package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "specter",
	Short: "Multi-agent malware analysis workbench",
	Long: `Specter coordinates a team of analysis agents over your sample:
a planner decomposes each request into tasks, capability-scoped static
and dynamic workers execute them against configured tool providers, a
verifier reviews the evidence, and a reporter writes the final answer.

With no arguments, launches an interactive chat session.

Core capabilities:
- Decomposes requests into dependency-aware task batches
- Runs independent tasks in parallel
- Binds static and dynamic tooling to the right worker only
- Verifies worker output and schedules targeted retries
- Keeps a queryable audit log of every tool invocation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
