package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "taskpilot",
	Short: "Hierarchical, cooperatively-interruptible task orchestration",
	Long: `taskpilot decomposes a long-running operation into a tree of weighted
subtasks, aggregates their fractional progress into one consistent number,
and lets an external controller pause, resume, or cancel the whole tree
while the work runs concurrently.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagLogLevel  string
	flagLogFormat string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command bound to ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log output format (text, json)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg := log.DefaultConfig()
		cfg.Level = log.ParseLevel(flagLogLevel)
		cfg.Format = log.ParseFormat(flagLogFormat)
		log.SetDefaultLogger(log.New(cfg))
	}
}
