package scanner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// Checkov wraps the Checkov IaC scanner.
type Checkov struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewCheckov(root string, loc tools.Locator) *Checkov {
	return &Checkov{Root: root, Locator: loc, Timeout: 10 * time.Minute}
}

func (c *Checkov) Name() string          { return "checkov" }
func (c *Checkov) RequiresNetwork() bool { return false }

// Scan implements Adapter. Checkov exits 1 when failed checks exist.
func (c *Checkov) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := c.Locator.Lookup("checkov")
	if err != nil {
		return nil, err
	}

	args := []string{
		"-d", c.Root,
		"--output", "json",
		"--quiet",
	}
	for _, pattern := range ignored {
		if !strings.ContainsAny(pattern, "*?[]") {
			args = append(args, "--skip-path", pattern)
		}
	}

	out, err := run(ctx, invocation{
		tool:        "checkov",
		binary:      binary,
		args:        args,
		timeout:     c.Timeout,
		okExitCodes: []int{0, 1},
	})
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return nil, nil
	}

	// Checkov emits either one JSON document or several, one per framework.
	if findings, err := parseCheckov([]byte(raw)); err == nil {
		return findings, nil
	}

	var findings []types.Finding
	parsedAny := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		fs, err := parseCheckov([]byte(line))
		if err != nil {
			continue
		}
		parsedAny = true
		findings = append(findings, fs...)
	}
	if !parsedAny {
		return nil, &OutputError{Tool: "checkov", Err: errNoParseableDocument}
	}
	return findings, nil
}

var errNoParseableDocument = jsonDocError{}

type jsonDocError struct{}

func (jsonDocError) Error() string { return "no parseable JSON document in output" }

type checkovReport struct {
	Results struct {
		FailedChecks []struct {
			CheckID       string `json:"check_id"`
			CheckName     string `json:"check_name"`
			Severity      string `json:"severity"`
			FilePath      string `json:"file_path"`
			FileLineRange []int  `json:"file_line_range"`
		} `json:"failed_checks"`
	} `json:"results"`
}

var checkovSeverities = map[string]types.Severity{
	"CRITICAL": types.SevCritical,
	"HIGH":     types.SevHigh,
	"MEDIUM":   types.SevMedium,
	"LOW":      types.SevLow,
}

func parseCheckov(data []byte) ([]types.Finding, error) {
	var report checkovReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, check := range report.Results.FailedChecks {
		line := 0
		if len(check.FileLineRange) > 0 {
			line = check.FileLineRange[0]
		}
		findings = append(findings, types.Finding{
			Tool:        "checkov",
			Type:        types.TypeIaC,
			Severity:    normalizeSeverity(check.Severity, checkovSeverities, types.SevMedium),
			RuleID:      check.CheckID,
			Title:       truncate(check.CheckName, 200),
			Description: truncate(check.CheckName, 500),
			Message:     truncate(check.CheckName, 200),
			File:        strings.TrimPrefix(check.FilePath, "/"),
			Line:        line,
		})
	}
	return findings, nil
}
