package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgPath      string
	logLevel     string
	outputFormat string
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ask questions about the Live 12 reference manual",
		Long: `rag builds a searchable index of the Live 12 reference manual and
answers questions grounded in the retrieved sections.

Build the index once, then ask:
  rag build
  rag ask "How do I record automation?"
  rag chat`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/manualrag/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		NewExtractCmd(),
		NewChunkCmd(),
		NewIndexCmd(),
		NewBuildCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewEvalCmd(),
		NewPublishCmd(),
		NewChatCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
