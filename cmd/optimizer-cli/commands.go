package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/di"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

type candidateFlags struct {
	feature string
	org     string
	file    string
	params  []string
}

func (f *candidateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.feature, "feature", "f", "intel", "Feature (intel, library, control)")
	cmd.Flags().StringVar(&f.org, "org", "default", "Organization ID whose settings apply")
	cmd.Flags().StringVar(&f.file, "file", "", "Candidate text file (stdin if empty)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "Request parameter as key=value, repeatable")
}

func (f *candidateFlags) request(stdin io.Reader) (*core.Request, error) {
	feature, err := core.ParseFeature(f.feature)
	if err != nil {
		return nil, err
	}
	params, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}

	var text []byte
	if f.file != "" {
		text, err = os.ReadFile(f.file)
	} else {
		text, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate text: %w", err)
	}

	return &core.Request{
		OrganizationID: f.org,
		Feature:        feature,
		Params:         params,
		Text:           string(text),
	}, nil
}

func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}

// withContainer builds a container for one command and stops the engine afterwards
func withContainer(flags *di.CLIFlags, withUpstream bool, fn interface{}) error {
	container, err := di.BuildCLIContainer(flags, withUpstream)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	runErr := container.Invoke(fn)
	stopErr := container.Invoke(func(svc *core.OptimizerService, repo *cache.ResilientCache) error {
		defer repo.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return svc.Stop(ctx)
	})
	if runErr != nil {
		return dig.RootCause(runErr)
	}
	return stopErr
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEvaluateCommand(flags *di.CLIFlags) *cobra.Command {
	cf := &candidateFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Show the decision for a candidate without calling the AI provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := cf.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withContainer(flags, false, func(svc *core.OptimizerService) error {
				decision, err := svc.Evaluate(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), decision)
			})
		},
	}
	cf.register(cmd)
	return cmd
}

func newProcessCommand(flags *di.CLIFlags) *cobra.Command {
	cf := &candidateFlags{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a candidate through the full pipeline, calling the AI provider when needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := cf.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withContainer(flags, true, func(svc *core.OptimizerService, provider ports.Provider) error {
				defer provider.Close()
				result, err := svc.Process(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cf.register(cmd)
	return cmd
}

func newFingerprintCommand() *cobra.Command {
	var (
		feature string
		params  []string
	)
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the cache fingerprint of a parameter set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := core.ParseFeature(feature)
			if err != nil {
				return err
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), core.Fingerprint(f, p))
			return err
		},
	}
	cmd.Flags().StringVarP(&feature, "feature", "f", "intel", "Feature (intel, library, control)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Request parameter as key=value, repeatable")
	return cmd
}

func newStatsCommand(flags *di.CLIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(flags, false, func(stats *core.StatsManager) error {
				s, err := stats.GetCacheStats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
}

func newClearCommand(flags *di.CLIFlags) *cobra.Command {
	var feature string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached results of one feature, or all of them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(flags, false, func(stats *core.StatsManager) error {
				result, err := stats.ClearCache(cmd.Context(), feature)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVarP(&feature, "feature", "f", "", "Feature to clear (all when empty)")
	return cmd
}
