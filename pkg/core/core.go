package core

import (
	"context"

	"github.com/authent8/authent8/internal/llm"
	"github.com/authent8/authent8/internal/orchestrator"
	"github.com/authent8/authent8/internal/types"
	"github.com/authent8/authent8/internal/validate"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
// We can replace these with decoupled structs later without breaking callers.
type (
	Finding  = types.Finding
	Severity = types.Severity
	Summary  = orchestrator.Summary
)

// Canonical severity levels.
const (
	SevCritical = types.SevCritical
	SevHigh     = types.SevHigh
	SevMedium   = types.SevMedium
	SevLow      = types.SevLow
)

// Config selects what one Scan call does.
type Config struct {
	// Root is the project directory to scan. Required.
	Root string

	// Offline drops scanners that need a live vulnerability feed.
	Offline bool

	// Workers bounds the concurrent scanner pool (0 = default).
	Workers int

	// DisableTools removes the named scanners from the plan.
	DisableTools []string

	// APIKey enables the AI validation stage. Leave empty to run the
	// deterministic heuristics only.
	APIKey  string
	Model   string
	BaseURL string
}

// Result is what one Scan call produces.
type Result struct {
	Findings []Finding
	Summary  Summary

	// Notice is set when validation degraded, e.g. no credential.
	Notice string
}

// Scan is the stable entrypoint for other programs: plan, run, aggregate,
// suppress, validate.
func Scan(ctx context.Context, cfg Config) (*Result, error) {
	opts := []orchestrator.Option{}
	if cfg.Workers > 0 {
		opts = append(opts, orchestrator.WithWorkers(cfg.Workers))
	}
	if len(cfg.DisableTools) > 0 {
		opts = append(opts, orchestrator.WithDisabledTools(cfg.DisableTools...))
	}

	o, err := orchestrator.New(cfg.Root, opts...)
	if err != nil {
		return nil, err
	}
	o.RunAll(ctx, !cfg.Offline)
	findings := o.Aggregate()

	var client llm.Client
	if cfg.APIKey != "" {
		c, err := llm.NewChatClient(llm.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		client = c
	}

	res := validate.New(client).Run(ctx, findings)
	return &Result{
		Findings: res.Findings,
		Summary:  o.Summarize(),
		Notice:   res.Notice,
	}, nil
}

// ScanPlan returns the tool names a scan with this config would run.
func ScanPlan(cfg Config) ([]string, error) {
	o, err := orchestrator.New(cfg.Root, orchestrator.WithDisabledTools(cfg.DisableTools...))
	if err != nil {
		return nil, err
	}
	return o.Plan(!cfg.Offline), nil
}
