package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authent8/authent8/internal/types"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures are not portable to windows")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestRunSuccessExitCodes(t *testing.T) {
	bin := writeScript(t, "tool", "echo '{}'\nexit 1\n")

	// exit 1 inside the success set
	out, err := run(context.Background(), invocation{
		tool: "tool", binary: bin, timeout: 5 * time.Second, okExitCodes: []int{0, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(out))

	// exit 1 outside the success set
	_, err = run(context.Background(), invocation{
		tool: "tool", binary: bin, timeout: 5 * time.Second, okExitCodes: []int{0},
	})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
}

func TestRunTimeout(t *testing.T) {
	bin := writeScript(t, "slow", "sleep 1\n")

	started := time.Now()
	_, err := run(context.Background(), invocation{
		tool: "slow", binary: bin, timeout: 300 * time.Millisecond, okExitCodes: []int{0},
	})
	elapsed := time.Since(started)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "slow", timeoutErr.Tool)
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestRunTimeoutWithLingeringChild(t *testing.T) {
	// The forked child inherits the stdio pipes and outlives the kill, the
	// way semgrep and checkov worker processes do. Waiting on the pipes
	// would hold run for the child's full two seconds.
	bin := writeScript(t, "forker", "sleep 2 &\nsleep 2\n")

	started := time.Now()
	_, err := run(context.Background(), invocation{
		tool: "forker", binary: bin, timeout: 300 * time.Millisecond, okExitCodes: []int{0},
	})
	elapsed := time.Since(started)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestParseTrivy(t *testing.T) {
	data := []byte(`{
		"Results": [
			{
				"Target": "requirements.txt",
				"Vulnerabilities": [
					{"VulnerabilityID": "CVE-2023-1234", "PkgName": "flask", "FixedVersion": "2.3.2",
					 "Severity": "HIGH", "Title": "Flask DoS", "Description": "Denial of service in flask."}
				]
			},
			{
				"Target": "Dockerfile",
				"Misconfigurations": [
					{"ID": "DS002", "Title": "Root user", "Description": "Image runs as root.",
					 "Message": "Specify USER", "Severity": "UNKNOWN"}
				]
			}
		]
	}`)

	findings, err := parseTrivy(data)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	vuln := findings[0]
	assert.Equal(t, "trivy", vuln.Tool)
	assert.Equal(t, types.TypeVulnerability, vuln.Type)
	assert.Equal(t, types.SevHigh, vuln.Severity)
	assert.Equal(t, "CVE-2023-1234", vuln.CVE)
	assert.Equal(t, "flask", vuln.Package)
	assert.Equal(t, "2.3.2", vuln.FixedVersion)
	assert.Equal(t, "requirements.txt", vuln.File)
	assert.Equal(t, 0, vuln.Line)
	assert.False(t, vuln.Validated)

	mc := findings[1]
	assert.Equal(t, types.TypeMisconfig, mc.Type)
	// unmapped severity collapses deterministically
	assert.Equal(t, types.SevMedium, mc.Severity)
	assert.Equal(t, "Specify USER", mc.Message)
}

func TestParseTrivyMalformed(t *testing.T) {
	_, err := parseTrivy([]byte("not json"))
	assert.Error(t, err)
}

func TestParseSemgrep(t *testing.T) {
	data := []byte(`{
		"results": [
			{
				"check_id": "python.lang.security.audit.dangerous-eval",
				"path": "/proj/app.py",
				"start": {"line": 42},
				"extra": {"message": "Detected eval… dangerous", "severity": "ERROR", "lines": "eval(user_input)"}
			}
		]
	}`)

	findings, err := parseSemgrep(data, "/proj")
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "semgrep", f.Tool)
	assert.Equal(t, types.TypeSAST, f.Type)
	assert.Equal(t, types.SevHigh, f.Severity)
	assert.Equal(t, "app.py", f.File)
	assert.Equal(t, 42, f.Line)
	assert.Equal(t, "eval(user_input)", f.CodeSnippet)
	// unicode ellipsis replaced with ASCII
	assert.Equal(t, "Detected eval... dangerous", f.Message)
}

func TestParseGitleaks(t *testing.T) {
	data := []byte(`[
		{"Description": "AWS Access Key", "RuleID": "aws-access-key", "File": "/proj/src/config.py", "StartLine": 7},
		{"Description": "Generic key", "RuleID": "generic-api-key", "File": "/proj/node_modules/pkg/index.js", "StartLine": 1}
	]`)

	findings, err := parseGitleaks(data, "/proj", []string{"node_modules"})
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, types.TypeSecret, f.Type)
	assert.Equal(t, types.SevCritical, f.Severity)
	assert.Equal(t, "aws-access-key", f.RuleID)
	assert.Equal(t, "src/config.py", f.File)
	assert.Equal(t, 7, f.Line)
	assert.Empty(t, f.CodeSnippet)
}

func TestParseBandit(t *testing.T) {
	data := []byte(`{
		"results": [
			{"test_id": "B602", "issue_text": "subprocess call with shell=True",
			 "issue_severity": "HIGH", "filename": "/proj/run.py", "line_number": 12,
			 "code": "subprocess.call(cmd, shell=True)"}
		]
	}`)

	findings, err := parseBandit(data, "/proj")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "B602", findings[0].RuleID)
	assert.Equal(t, types.SevHigh, findings[0].Severity)
	assert.Equal(t, "run.py", findings[0].File)
	assert.Equal(t, "subprocess.call(cmd, shell=True)", findings[0].CodeSnippet)
}

func TestParseCheckov(t *testing.T) {
	data := []byte(`{
		"results": {
			"failed_checks": [
				{"check_id": "CKV_AWS_20", "check_name": "S3 bucket is public",
				 "severity": "HIGH", "file_path": "/main.tf", "file_line_range": [3, 9]}
			]
		}
	}`)

	findings, err := parseCheckov(data)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, types.TypeIaC, findings[0].Type)
	assert.Equal(t, "main.tf", findings[0].File)
	assert.Equal(t, 3, findings[0].Line)
}

func TestParseGrype(t *testing.T) {
	data := []byte(`{
		"matches": [
			{
				"vulnerability": {"id": "GHSA-xxxx", "severity": "Critical",
					"description": "RCE in dependency", "fix": {"versions": ["1.2.3"]}},
				"artifact": {"name": "lodash", "locations": [{"path": "package-lock.json"}]}
			}
		]
	}`)

	findings, err := parseGrype(data)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, types.SevCritical, f.Severity)
	assert.Equal(t, "lodash", f.Package)
	assert.Equal(t, "1.2.3", f.FixedVersion)
	assert.Equal(t, "package-lock.json", f.File)
}

func TestParseOSV(t *testing.T) {
	data := []byte(`{
		"results": [
			{
				"source": {"path": "go.sum"},
				"packages": [
					{"package": {"name": "golang.org/x/text"},
					 "vulnerabilities": [{"id": "GO-2022-1059", "summary": "DoS in x/text"}]}
				]
			}
		]
	}`)

	findings, err := parseOSV(data)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "GO-2022-1059", findings[0].RuleID)
	assert.Equal(t, "go.sum", findings[0].File)
	assert.Equal(t, types.SevHigh, findings[0].Severity)
}

func TestParseDetectSecrets(t *testing.T) {
	data := []byte(`{
		"results": {
			"config/settings.py": [{"type": "Secret Keyword", "line_number": 4}],
			"vendor/lib.js": [{"type": "Hex High Entropy String", "line_number": 9}]
		}
	}`)

	findings, err := parseDetectSecrets(data, []string{"vendor"})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "config/settings.py", findings[0].File)
	assert.Equal(t, "Secret Keyword", findings[0].RuleID)
	assert.Equal(t, types.SevCritical, findings[0].Severity)
}

func TestSanitizeASCII(t *testing.T) {
	assert.Equal(t, `say "hi" -- now...`, sanitizeASCII("say “hi” — now…"))
	assert.Equal(t, "plain", sanitizeASCII("plain"))
	assert.Equal(t, "", sanitizeASCII(""))
}

func TestNormalizeSeverity(t *testing.T) {
	table := map[string]types.Severity{"HIGH": types.SevHigh}
	assert.Equal(t, types.SevHigh, normalizeSeverity(" high ", table, types.SevLow))
	assert.Equal(t, types.SevLow, normalizeSeverity("bogus", table, types.SevLow))
}

func TestProjectRelative(t *testing.T) {
	assert.Equal(t, "src/app.py", projectRelative("/proj", "/proj/src/app.py"))
	assert.Equal(t, "/elsewhere/x.py", projectRelative("/proj", "/elsewhere/x.py"))
	assert.Equal(t, "already/rel.py", projectRelative("", "already/rel.py"))
}
