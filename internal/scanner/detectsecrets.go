package scanner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// DetectSecrets wraps Yelp's detect-secrets scanner, a second opinion
// alongside gitleaks for hardcoded credentials.
type DetectSecrets struct {
	Root    string
	Locator tools.Locator
	Timeout time.Duration
}

func NewDetectSecrets(root string, loc tools.Locator) *DetectSecrets {
	return &DetectSecrets{Root: root, Locator: loc, Timeout: 5 * time.Minute}
}

func (d *DetectSecrets) Name() string          { return "detect-secrets" }
func (d *DetectSecrets) RequiresNetwork() bool { return false }

// Scan implements Adapter. detect-secrets uses exit code 0 exclusively.
func (d *DetectSecrets) Scan(ctx context.Context, ignored []string) ([]types.Finding, error) {
	binary, err := d.Locator.Lookup("detect-secrets")
	if err != nil {
		return nil, err
	}

	args := []string{
		"scan",
		"--all-files",
		d.Root,
	}

	out, err := run(ctx, invocation{
		tool:        "detect-secrets",
		binary:      binary,
		args:        args,
		timeout:     d.Timeout,
		okExitCodes: []int{0},
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	findings, err := parseDetectSecrets(out, ignored)
	if err != nil {
		return nil, &OutputError{Tool: "detect-secrets", Err: err}
	}
	return findings, nil
}

type detectSecretsReport struct {
	Results map[string][]struct {
		Type       string `json:"type"`
		LineNumber int    `json:"line_number"`
	} `json:"results"`
}

func parseDetectSecrets(data []byte, ignored []string) ([]types.Finding, error) {
	var report detectSecretsReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	var findings []types.Finding
	for file, secrets := range report.Results {
		if pathExcluded(file, ignored) {
			continue
		}
		for _, secret := range secrets {
			secretType := secret.Type
			if secretType == "" {
				secretType = "secret"
			}
			findings = append(findings, types.Finding{
				Tool:        "detect-secrets",
				Type:        types.TypeSecret,
				Severity:    types.SevCritical,
				RuleID:      secretType,
				Title:       truncate("Potential secret detected ("+secretType+")", 200),
				Description: "Potential secret detected by detect-secrets",
				Message:     truncate("Potential secret detected: "+secretType, 200),
				File:        file,
				Line:        secret.LineNumber,
			})
		}
	}
	return findings, nil
}
