package scanner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// semgrepRulePacks is the registry rule set used for every scan. Packs are
// cached locally by semgrep after first use.
var semgrepRulePacks = []string{
	"p/security-audit",
	"p/owasp-top-ten",
	"p/cwe-top-25",
	"p/secrets",
	"p/python",
	"p/flask",
	"p/django",
	"p/jwt",
	"p/sql-injection",
	"p/command-injection",
	"p/xss",
	"p/insecure-transport",
	"p/docker",
	"p/kubernetes",
	"p/terraform",
	"p/aws-security",
	"p/react",
	"p/typescript",
}

// Semgrep wraps the Semgrep SAST scanner.
type Semgrep struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewSemgrep(root string, loc tools.Locator) *Semgrep {
	return &Semgrep{Root: root, Locator: loc, Timeout: 5 * time.Minute}
}

func (s *Semgrep) Name() string          { return "semgrep" }
func (s *Semgrep) RequiresNetwork() bool { return false }

// Scan implements Adapter. Semgrep exits 1 when findings exist, so both 0
// and 1 are success.
func (s *Semgrep) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := s.Locator.Lookup("semgrep")
	if err != nil {
		return nil, err
	}

	var args []string
	for _, pack := range semgrepRulePacks {
		args = append(args, "--config", pack)
	}
	args = append(args,
		"--json",
		"--quiet",
		"--no-git-ignore",
		"--metrics", "off",
	)
	for _, pattern := range ignored {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, s.Root)

	out, err := run(ctx, invocation{
		tool:        "semgrep",
		binary:      binary,
		args:        args,
		timeout:     s.Timeout,
		okExitCodes: []int{0, 1},
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	findings, err := parseSemgrep(out, s.Root)
	if err != nil {
		return nil, &OutputError{Tool: "semgrep", Err: err}
	}
	return findings, nil
}

type semgrepReport struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		Extra struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
			Lines    string `json:"lines"`
		} `json:"extra"`
	} `json:"results"`
}

var semgrepSeverities = map[string]types.Severity{
	"ERROR":   types.SevHigh,
	"WARNING": types.SevMedium,
	"INFO":    types.SevLow,
}

func parseSemgrep(data []byte, root string) ([]types.Finding, error) {
	var report semgrepReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, result := range report.Results {
		message := sanitizeASCII(result.Extra.Message)
		findings = append(findings, types.Finding{
			Tool:        "semgrep",
			Type:        types.TypeSAST,
			Severity:    normalizeSeverity(result.Extra.Severity, semgrepSeverities, types.SevMedium),
			RuleID:      sanitizeASCII(result.CheckID),
			Title:       truncate(message, 200),
			Description: truncate(message, 500),
			Message:     truncate(message, 200),
			File:        projectRelative(root, result.Path),
			Line:        result.Start.Line,
			CodeSnippet: truncate(sanitizeASCII(result.Extra.Lines), 300),
		})
	}
	return findings, nil
}

// projectRelative rewrites an absolute tool-reported path relative to the
// project root where possible.
func projectRelative(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
