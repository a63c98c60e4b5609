package scanner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// Grype wraps the Grype dependency vulnerability scanner. Like Trivy it
// matches against a live vulnerability database.
type Grype struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewGrype(root string, loc tools.Locator) *Grype {
	return &Grype{Root: root, Locator: loc, Timeout: 10 * time.Minute}
}

func (g *Grype) Name() string          { return "grype" }
func (g *Grype) RequiresNetwork() bool { return true }

// Scan implements Adapter. Grype exits 1 on some failures and 2 when
// vulnerabilities are found with --fail-on set; 0, 1 and 2 are all treated as
// "ran, output may be present" per its documented convention.
func (g *Grype) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := g.Locator.Lookup("grype")
	if err != nil {
		return nil, err
	}

	args := []string{
		"dir:" + g.Root,
		"-o", "json",
		"--quiet",
	}

	out, err := run(ctx, invocation{
		tool:        "grype",
		binary:      binary,
		args:        args,
		timeout:     g.Timeout,
		okExitCodes: []int{0, 1, 2},
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	findings, err := parseGrype(out)
	if err != nil {
		return nil, &OutputError{Tool: "grype", Err: err}
	}
	return findings, nil
}

type grypeReport struct {
	Matches []struct {
		Vulnerability struct {
			ID          string `json:"id"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Fix         struct {
				Versions []string `json:"versions"`
			} `json:"fix"`
		} `json:"vulnerability"`
		Artifact struct {
			Name      string `json:"name"`
			Locations []struct {
				Path string `json:"path"`
			} `json:"locations"`
		} `json:"artifact"`
	} `json:"matches"`
}

var grypeSeverities = map[string]types.Severity{
	"CRITICAL": types.SevCritical,
	"HIGH":     types.SevHigh,
	"MEDIUM":   types.SevMedium,
	"LOW":      types.SevLow,
}

func parseGrype(data []byte) ([]types.Finding, error) {
	var report grypeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, match := range report.Matches {
		vuln := match.Vulnerability
		artifact := match.Artifact

		file := "dependencies"
		if len(artifact.Locations) > 0 && artifact.Locations[0].Path != "" {
			file = artifact.Locations[0].Path
		}
		pkg := artifact.Name
		if pkg == "" {
			pkg = "package"
		}
		fixed := ""
		if len(vuln.Fix.Versions) > 0 {
			fixed = vuln.Fix.Versions[0]
		}

		findings = append(findings, types.Finding{
			Tool:         "grype",
			Type:         types.TypeVulnerability,
			Severity:     normalizeSeverity(vuln.Severity, grypeSeverities, types.SevMedium),
			RuleID:       vuln.ID,
			Title:        truncate(vuln.ID, 200),
			Description:  truncate(vuln.Description, 500),
			Message:      truncate(pkg+" vulnerable: "+vuln.ID, 200),
			File:         file,
			Line:         0,
			CVE:          vuln.ID,
			Package:      artifact.Name,
			FixedVersion: fixed,
		})
	}
	return findings, nil
}
