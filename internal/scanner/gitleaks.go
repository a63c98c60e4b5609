package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// gitleaksAllowlist extends the default rule set with path exclusions for
// dependency and build directories. Written to a temp config per run.
const gitleaksAllowlist = `
[extend]
useDefault = true

[allowlist]
paths = [
    '''node_modules''',
    '''\.git''',
    '''dist''',
    '''build''',
    '''vendor''',
    '''__pycache__''',
    '''\.venv''',
    '''venv''',
    '''\.env\.example''',
    '''package-lock\.json''',
    '''yarn\.lock''',
]
`

// Gitleaks wraps the Gitleaks secret scanner. Gitleaks has no stdout JSON
// mode for filesystem scans; it writes findings to a report file instead.
type Gitleaks struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewGitleaks(root string, loc tools.Locator) *Gitleaks {
	return &Gitleaks{Root: root, Locator: loc, Timeout: 5 * time.Minute}
}

func (g *Gitleaks) Name() string          { return "gitleaks" }
func (g *Gitleaks) RequiresNetwork() bool { return false }

// Scan implements Adapter. The invocation pins --exit-code 0 so "leaks
// found" does not surface as a process failure; only exit 0 is success.
func (g *Gitleaks) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := g.Locator.Lookup("gitleaks")
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "authent8-gitleaks-*")
	if err != nil {
		return nil, fmt.Errorf("gitleaks: temp workspace: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	configPath := filepath.Join(tmpDir, "gitleaks.toml")
	if err := os.WriteFile(configPath, []byte(gitleaksAllowlist), 0600); err != nil {
		return nil, fmt.Errorf("gitleaks: write config: %w", err)
	}
	reportPath := filepath.Join(tmpDir, "report.json")

	args := []string{
		"detect",
		"--source", g.Root,
		"--report-path", reportPath,
		"--report-format", "json",
		"--config", configPath,
		"--no-git",
		"--redact",
		"--exit-code", "0",
	}

	if _, err := run(ctx, invocation{
		tool:        "gitleaks",
		binary:      binary,
		args:        args,
		timeout:     g.Timeout,
		okExitCodes: []int{0},
	}); err != nil {
		return nil, err
	}

	report, err := os.ReadFile(reportPath)
	if err != nil {
		// No report written means gitleaks found nothing to say.
		return nil, nil
	}
	if len(report) == 0 {
		return nil, nil
	}

	findings, err := parseGitleaks(report, g.Root, ignored)
	if err != nil {
		return nil, &OutputError{Tool: "gitleaks", Err: err}
	}
	return findings, nil
}

type gitleaksFinding struct {
	Description string `json:"Description"`
	RuleID      string `json:"RuleID"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
}

func parseGitleaks(data []byte, root string, ignored []string) ([]types.Finding, error) {
	var leaks []gitleaksFinding
	if err := json.Unmarshal(data, &leaks); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, leak := range leaks {
		if pathExcluded(leak.File, ignored) {
			continue
		}
		ruleID := leak.RuleID
		if ruleID == "" {
			ruleID = "unknown"
		}
		description := leak.Description
		if description == "" {
			description = "Secret detected: " + ruleID
		}
		findings = append(findings, types.Finding{
			Tool:        "gitleaks",
			Type:        types.TypeSecret,
			Severity:    types.SevCritical, // every exposed secret is critical
			RuleID:      ruleID,
			Title:       truncate(description, 200),
			Description: truncate(description, 500),
			Message:     truncate("Hardcoded secret found: "+ruleID, 200),
			File:        projectRelative(root, leak.File),
			Line:        leak.StartLine,
			CodeSnippet: "", // redacted by gitleaks
		})
	}
	return findings, nil
}

func pathExcluded(path string, ignored []string) bool {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for _, pattern := range ignored {
		if strings.ContainsAny(pattern, "*?[]") {
			continue
		}
		for _, seg := range segments {
			if seg == pattern {
				return true
			}
		}
	}
	return false
}
