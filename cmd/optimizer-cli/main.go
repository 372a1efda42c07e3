package main

import (
	"fmt"
	"os"

	"github.com/mikey/ai-cost-optimizer/internal/di"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &di.CLIFlags{}

	root := &cobra.Command{
		Use:           "optimizer-cli",
		Short:         "Inspect and drive the AI cost optimizer from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file (searches default locations if empty)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	pf.StringVar(&flags.Provider, "provider", "", "Override llm.provider (bedrock, gemini, openai)")
	pf.StringVar(&flags.CacheType, "cache", "", "Override cache.type (memory, sqlite, mysql, valkey)")
	pf.StringVar(&flags.Settings, "settings", "", "Override settings.source (static, file)")

	root.AddCommand(
		newEvaluateCommand(flags),
		newProcessCommand(flags),
		newFingerprintCommand(),
		newStatsCommand(flags),
		newClearCommand(flags),
	)
	return root
}
