package authent8

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/authent8/authent8/internal/config"
	"github.com/authent8/authent8/internal/gitmeta"
	"github.com/authent8/authent8/internal/llm"
	"github.com/authent8/authent8/internal/orchestrator"
	"github.com/authent8/authent8/internal/report"
	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
	"github.com/authent8/authent8/internal/update"
	"github.com/authent8/authent8/internal/validate"
)

var (
	flagPath           string
	flagModel          string
	flagBaseURL        string
	flagScanTimeBudget time.Duration
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run all security scanners against a project",
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagPath, "path", "p", ".", "project root to scan")
	cmd.Flags().StringVar(&flagModel, "model", "", "validation model identifier (default gpt-4o)")
	cmd.Flags().StringVar(&flagBaseURL, "base-url", "", "OpenAI-compatible endpoint for validation")
	cmd.Flags().DurationVar(&flagScanTimeBudget, "scan-time-budget", 0, "abandon scanners still running after this long (0=per-tool budgets only)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	abs, _ := filepath.Abs(flagPath)
	// Load configs: CLI > local > global
	var gcfg, lcfg config.FileConfig
	if c, err := config.LoadGlobal(); err == nil {
		gcfg = c
	}
	if c, err := config.LoadLocal(abs); err == nil {
		lcfg = c
	}

	// Resolve time budget precedence: CLI > local > global
	budget := flagScanTimeBudget
	if budget == 0 {
		if s := pickString("", lcfg.ScanTimeBudget, gcfg.ScanTimeBudget); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				budget = d
			}
		}
	}

	toolsCfg := lcfg.GetToolsConfig()
	if lcfg.Tools == nil {
		toolsCfg = gcfg.GetToolsConfig()
	}

	opts := []orchestrator.Option{
		orchestrator.WithLocator(tools.ExecLocator{Overrides: toolsCfg.Binaries}),
	}
	if w := pickInt(flagWorkers, lcfg.Workers, gcfg.Workers); w > 0 {
		opts = append(opts, orchestrator.WithWorkers(w))
	}
	if budget > 0 {
		opts = append(opts, orchestrator.WithOverallTimeout(budget))
	}
	if len(toolsCfg.Disable) > 0 {
		opts = append(opts, orchestrator.WithDisabledTools(toolsCfg.Disable...))
	}

	o, err := orchestrator.New(abs, opts...)
	if err != nil {
		return err
	}

	online := !pickBool(flagOffline, lcfg.Offline, gcfg.Offline)

	if !flagJSON {
		if !flagNoUpdateCheck {
			if latest, newer, _ := update.Check(version, !online); newer && latest != "" {
				fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'authent8 update' to upgrade\n", latest)
			}
		}
		if flagSelfUpdate {
			if err := selfUpdate(); err == nil {
				fmt.Fprintln(os.Stderr, "updated to latest; re-run command")
				return nil
			}
		}
		fmt.Fprintf(os.Stderr, "Scanning %s with %d tools...\n", abs, len(o.Plan(online)))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	o.RunAll(ctx, online)
	findings := o.Aggregate()

	client := buildClient(lcfg, gcfg)
	pipe := validate.New(client)
	res := pipe.Run(ctx, findings)
	if res.Notice != "" && !flagJSON {
		fmt.Fprintln(os.Stderr, "note:", res.Notice)
	}

	summary := o.Summarize()
	meta := gitmeta.Read(abs)

	if flagJSON {
		if err := report.WriteJSON(os.Stdout, res.Findings, summary, meta); err != nil {
			return err
		}
	} else {
		noColor := pickBool(flagNoColor, lcfg.NoColor, gcfg.NoColor)
		report.PrintTable(os.Stdout, res.Findings, report.PrintOptions{NoColor: noColor, Verbose: flagVerbose})
		report.PrintSummary(os.Stdout, summary, meta)
	}

	if threshold := pickString(flagFailOn, lcfg.FailOn, gcfg.FailOn); threshold != "" {
		if breached(res.Findings, threshold) {
			os.Exit(1)
		}
	}
	return nil
}

// buildClient resolves the model-stage credential: environment first, then
// config files. A nil return disables the model stage.
func buildClient(lcfg, gcfg config.FileConfig) llm.Client {
	if pickBool(flagNoAI, lcfg.NoAI, gcfg.NoAI) {
		return nil
	}
	cfg := llm.FromEnv()
	if cfg.APIKey == "" {
		cfg.APIKey = pickString("", lcfg.APIKey, gcfg.APIKey)
	}
	if m := pickString(flagModel, lcfg.Model, gcfg.Model); m != "" {
		cfg.Model = m
	}
	if u := pickString(flagBaseURL, lcfg.BaseURL, gcfg.BaseURL); u != "" {
		cfg.BaseURL = u
	}
	client, err := llm.NewChatClient(cfg)
	if err != nil {
		return nil
	}
	return client
}

// breached reports whether any non-suppressed, non-false-positive finding
// sits at or above the named severity.
func breached(findings []types.Finding, threshold string) bool {
	floor := severityRank(threshold)
	if floor == 0 {
		return false
	}
	for _, f := range findings {
		if f.IsFalsePositive {
			continue
		}
		if f.Severity.Rank() >= floor {
			return true
		}
	}
	return false
}

func severityRank(name string) int {
	switch strings.ToLower(name) {
	case "low":
		return types.SevLow.Rank()
	case "medium":
		return types.SevMedium.Rank()
	case "high":
		return types.SevHigh.Rank()
	case "critical":
		return types.SevCritical.Rank()
	}
	return 0
}
