package scanner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// OSV wraps osv-scanner, which queries the OSV.dev vulnerability feed for
// lockfile dependencies.
type OSV struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewOSV(root string, loc tools.Locator) *OSV {
	return &OSV{Root: root, Locator: loc, Timeout: 10 * time.Minute}
}

func (o *OSV) Name() string          { return "osv-scanner" }
func (o *OSV) RequiresNetwork() bool { return true }

// Scan implements Adapter. osv-scanner exits 1 when vulnerabilities exist.
func (o *OSV) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := o.Locator.Lookup("osv-scanner")
	if err != nil {
		return nil, err
	}

	args := []string{
		"scan", "source",
		"-r", o.Root,
		"--format", "json",
	}

	out, err := run(ctx, invocation{
		tool:        "osv-scanner",
		binary:      binary,
		args:        args,
		timeout:     o.Timeout,
		okExitCodes: []int{0, 1},
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	findings, err := parseOSV(out)
	if err != nil {
		return nil, &OutputError{Tool: "osv-scanner", Err: err}
	}
	return findings, nil
}

type osvReport struct {
	Results []struct {
		Source struct {
			Path string `json:"path"`
		} `json:"source"`
		Packages []struct {
			Package struct {
				Name string `json:"name"`
			} `json:"package"`
			Vulnerabilities []struct {
				ID      string `json:"id"`
				Summary string `json:"summary"`
				Details string `json:"details"`
			} `json:"vulnerabilities"`
		} `json:"packages"`
	} `json:"results"`
}

func parseOSV(data []byte) ([]types.Finding, error) {
	var report osvReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for _, block := range report.Results {
		file := block.Source.Path
		if file == "" {
			file = "dependencies"
		}
		for _, pkg := range block.Packages {
			for _, vuln := range pkg.Vulnerabilities {
				title := vuln.Summary
				if title == "" {
					title = vuln.ID
				}
				details := vuln.Details
				if details == "" {
					details = vuln.Summary
				}
				findings = append(findings, types.Finding{
					Tool: "osv-scanner",
					Type: types.TypeVulnerability,
					// OSV advisories carry CVSS vectors, not labels; treat
					// every reported advisory as high until scored.
					Severity:    types.SevHigh,
					RuleID:      vuln.ID,
					Title:       truncate(title, 200),
					Description: truncate(details, 500),
					Message:     truncate("Dependency vulnerability: "+vuln.ID, 200),
					File:        file,
					Line:        0,
					CVE:         vuln.ID,
					Package:     pkg.Package.Name,
				})
			}
		}
	}
	return findings, nil
}
