package scanner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// Trivy wraps the Trivy filesystem scanner for dependency vulnerabilities and
// infrastructure misconfigurations. Trivy consults a live CVE database, so it
// is excluded from offline scan plans.
type Trivy struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

// NewTrivy builds a Trivy adapter with the default 10 minute budget, the
// longest in the set: dependency resolution dominates its runtime.
func NewTrivy(root string, loc tools.Locator) *Trivy {
	return &Trivy{Root: root, Locator: loc, Timeout: 10 * time.Minute}
}

func (t *Trivy) Name() string          { return "trivy" }
func (t *Trivy) RequiresNetwork() bool { return true }

// Scan implements Adapter. Trivy uses exit code 0 exclusively; any non-zero
// exit is a failure.
func (t *Trivy) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := t.Locator.Lookup("trivy")
	if err != nil {
		return nil, err
	}

	args := []string{
		"fs",
		"--severity", "CRITICAL,HIGH,MEDIUM",
		"--scanners", "vuln,misconfig",
		"--format", "json",
		"--quiet",
	}
	for _, pattern := range ignored {
		args = append(args, "--skip-dirs", pattern, "--skip-files", pattern)
	}
	args = append(args, t.Root)

	out, err := run(ctx, invocation{
		tool:        "trivy",
		binary:      binary,
		args:        args,
		timeout:     t.Timeout,
		okExitCodes: []int{0},
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	findings, err := parseTrivy(out)
	if err != nil {
		return nil, &OutputError{Tool: "trivy", Err: err}
	}
	return findings, nil
}

type trivyReport struct {
	Results []struct {
		Target          string `json:"Target"`
		Vulnerabilities []struct {
			VulnerabilityID string `json:"VulnerabilityID"`
			PkgName         string `json:"PkgName"`
			FixedVersion    string `json:"FixedVersion"`
			Severity        string `json:"Severity"`
			Title           string `json:"Title"`
			Description     string `json:"Description"`
		} `json:"Vulnerabilities"`
		Misconfigurations []struct {
			ID          string `json:"ID"`
			Title       string `json:"Title"`
			Description string `json:"Description"`
			Message     string `json:"Message"`
			Severity    string `json:"Severity"`
		} `json:"Misconfigurations"`
	} `json:"Results"`
}

var trivySeverities = map[string]types.Severity{
	"CRITICAL": types.SevCritical,
	"HIGH":     types.SevHigh,
	"MEDIUM":   types.SevMedium,
	"LOW":      types.SevLow,
}

func parseTrivy(data []byte) ([]types.Finding, error) {
	var report trivyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, result := range report.Results {
		target := result.Target
		if target == "" {
			target = "dependencies"
		}

		for _, vuln := range result.Vulnerabilities {
			findings = append(findings, types.Finding{
				Tool:         "trivy",
				Type:         types.TypeVulnerability,
				Severity:     normalizeSeverity(vuln.Severity, trivySeverities, types.SevMedium),
				RuleID:       vuln.VulnerabilityID,
				Title:        truncate(vuln.Title, 200),
				Description:  truncate(vuln.Description, 500),
				Message:      truncate(vuln.Title, 200),
				File:         target,
				Line:         0,
				CVE:          vuln.VulnerabilityID,
				Package:      vuln.PkgName,
				FixedVersion: vuln.FixedVersion,
			})
		}

		for _, mc := range result.Misconfigurations {
			message := mc.Message
			if message == "" {
				message = mc.Title
			}
			findings = append(findings, types.Finding{
				Tool:        "trivy",
				Type:        types.TypeMisconfig,
				Severity:    normalizeSeverity(mc.Severity, trivySeverities, types.SevMedium),
				RuleID:      mc.ID,
				Title:       truncate(mc.Title, 200),
				Description: truncate(mc.Description, 500),
				Message:     truncate(message, 200),
				File:        target,
				Line:        0,
			})
		}
	}
	return findings, nil
}
