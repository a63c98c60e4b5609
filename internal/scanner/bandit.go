package scanner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// Bandit wraps the Bandit Python security scanner. Pattern-based and fast,
// so it gets the shortest budget in the set.
type Bandit struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewBandit(root string, loc tools.Locator) *Bandit {
	return &Bandit{Root: root, Locator: loc, Timeout: 2 * time.Minute}
}

func (b *Bandit) Name() string          { return "bandit" }
func (b *Bandit) RequiresNetwork() bool { return false }

// Scan implements Adapter. Bandit exits 1 when issues are found.
func (b *Bandit) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := b.Locator.Lookup("bandit")
	if err != nil {
		return nil, err
	}

	// Bandit takes one comma-separated exclude list; glob patterns are not
	// segment excludes and are left to its own defaults.
	var excludes []string
	for _, pattern := range ignored {
		if !strings.ContainsAny(pattern, "*?[]") {
			excludes = append(excludes, pattern)
		}
	}

	args := []string{
		"-r", b.Root,
		"-f", "json",
		"-ll", // medium severity and up
		"-q",
	}
	if len(excludes) > 0 {
		args = append(args, "-x", strings.Join(excludes, ","))
	}

	out, err := run(ctx, invocation{
		tool:        "bandit",
		binary:      binary,
		args:        args,
		timeout:     b.Timeout,
		okExitCodes: []int{0, 1},
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	findings, err := parseBandit(out, b.Root)
	if err != nil {
		return nil, &OutputError{Tool: "bandit", Err: err}
	}
	return findings, nil
}

type banditReport struct {
	Results []struct {
		TestID        string `json:"test_id"`
		IssueText     string `json:"issue_text"`
		IssueSeverity string `json:"issue_severity"`
		Filename      string `json:"filename"`
		LineNumber    int    `json:"line_number"`
		Code          string `json:"code"`
	} `json:"results"`
}

var banditSeverities = map[string]types.Severity{
	"HIGH":   types.SevHigh,
	"MEDIUM": types.SevMedium,
	"LOW":    types.SevLow,
}

func parseBandit(data []byte, root string) ([]types.Finding, error) {
	var report banditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, result := range report.Results {
		findings = append(findings, types.Finding{
			Tool:        "bandit",
			Type:        types.TypeSAST,
			Severity:    normalizeSeverity(result.IssueSeverity, banditSeverities, types.SevMedium),
			RuleID:      result.TestID,
			Title:       truncate(result.IssueText, 200),
			Description: truncate(result.IssueText, 500),
			Message:     truncate(result.IssueText, 200),
			File:        projectRelative(root, result.Filename),
			Line:        result.LineNumber,
			CodeSnippet: truncate(result.Code, 300),
		})
	}
	return findings, nil
}
