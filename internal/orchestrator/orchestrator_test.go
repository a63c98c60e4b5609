package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authent8/authent8/internal/scanner"
	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// stubAdapter is a scripted in-process Adapter.
type stubAdapter struct {
	name     string
	network  bool
	findings []types.Finding
	err      error
	delay    time.Duration
}

func (s *stubAdapter) Name() string          { return s.name }
func (s *stubAdapter) RequiresNetwork() bool { return s.network }

func (s *stubAdapter) Scan(ctx context.Context, _ []string) ([]types.Finding, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.findings, nil
}

func finding(tool, file string, sev types.Severity) types.Finding {
	return types.Finding{
		Tool:     tool,
		Type:     types.TypeSAST,
		Severity: sev,
		RuleID:   "rule-" + tool,
		File:     file,
		Line:     1,
	}
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestNewRejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "root.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestPlanOfflineDropsNetworkTools(t *testing.T) {
	o, err := New(t.TempDir(), WithLocator(tools.StaticLocator{}))
	require.NoError(t, err)

	online := o.Plan(true)
	assert.Equal(t, []string{
		"trivy", "semgrep", "gitleaks", "bandit",
		"checkov", "grype", "osv-scanner", "detect-secrets",
	}, online)

	offline := o.Plan(false)
	assert.Equal(t, []string{
		"semgrep", "gitleaks", "bandit", "checkov", "detect-secrets",
	}, offline)
}

func TestRunAllIsolatesFailures(t *testing.T) {
	root := t.TempDir()
	o, err := New(root, WithAdapters(
		&stubAdapter{name: "alpha", findings: []types.Finding{
			finding("alpha", "a.py", types.SevHigh),
			finding("alpha", "b.py", types.SevLow),
		}},
		&stubAdapter{name: "broken", err: &tools.NotFoundError{Tool: "broken"}},
		&stubAdapter{name: "beta", findings: []types.Finding{
			finding("beta", "c.py", types.SevCritical),
		}},
	))
	require.NoError(t, err)

	results := o.RunAll(context.Background(), true)
	require.Len(t, results, 3)

	assert.Len(t, results["alpha"].Findings, 2)
	assert.Len(t, results["beta"].Findings, 1)

	var notFound *tools.NotFoundError
	require.ErrorAs(t, results["broken"].Err, &notFound)

	all := o.Aggregate()
	assert.Len(t, all, 3, "aggregation equals the sum of the successful adapters")
}

func TestRunAllOverallDeadlineAbandonsSlowAdapter(t *testing.T) {
	o, err := New(t.TempDir(),
		WithAdapters(
			&stubAdapter{name: "fast", findings: []types.Finding{finding("fast", "a.py", types.SevHigh)}},
			&stubAdapter{name: "slow", delay: time.Second},
		),
		WithOverallTimeout(300*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	results := o.RunAll(context.Background(), true)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 900*time.Millisecond, "deadline must not wait for the slow adapter")
	require.Len(t, results, 2)
	assert.Len(t, results["fast"].Findings, 1)

	var timeout *scanner.TimeoutError
	require.ErrorAs(t, results["slow"].Err, &timeout)
	assert.Equal(t, "slow", timeout.Tool)

	assert.Len(t, o.Aggregate(), 1)
}

func TestRunAllDeadlineWithSaturatedWorkers(t *testing.T) {
	// With one worker, the second adapter never leaves the queue while the
	// first is wedged. The deadline still has to fire on time for both.
	o, err := New(t.TempDir(),
		WithAdapters(
			&stubAdapter{name: "wedged", delay: 2 * time.Second},
			&stubAdapter{name: "queued", delay: 2 * time.Second},
		),
		WithWorkers(1),
		WithOverallTimeout(300*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	results := o.RunAll(context.Background(), true)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 900*time.Millisecond, "deadline must fire even when workers are saturated")
	require.Len(t, results, 2)
	for _, name := range []string{"wedged", "queued"} {
		var timeout *scanner.TimeoutError
		require.ErrorAs(t, results[name].Err, &timeout, name)
		assert.Equal(t, name, timeout.Tool)
	}
}

func TestAggregateRederivesSnippets(t *testing.T) {
	root := t.TempDir()
	src := "import os\npassword = \"hunter2\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte(src), 0o644))

	withSnippet := finding("alpha", "app.py", types.SevHigh)
	withSnippet.CodeSnippet = "password = ..."

	empty := finding("alpha", "app.py", types.SevHigh)
	empty.Line = 2

	placeholder := finding("alpha", "app.py", types.SevHigh)
	placeholder.Line = 2
	placeholder.CodeSnippet = "requires login"

	unreadable := finding("alpha", "gone.py", types.SevLow)
	unreadable.Line = 7

	o, err := New(root, WithAdapters(&stubAdapter{
		name:     "alpha",
		findings: []types.Finding{withSnippet, empty, placeholder, unreadable},
	}))
	require.NoError(t, err)

	o.RunAll(context.Background(), true)
	all := o.Aggregate()
	require.Len(t, all, 4)

	assert.Equal(t, "password = ...", all[0].CodeSnippet, "plausible snippets are untouched")
	assert.Equal(t, `password = "hunter2"`, all[1].CodeSnippet)
	assert.Equal(t, `password = "hunter2"`, all[2].CodeSnippet)
	assert.Empty(t, all[3].CodeSnippet, "missing file keeps the adapter value")
}

func TestSuppressionSurvivesRescan(t *testing.T) {
	root := t.TempDir()
	f := finding("alpha", "app.py", types.SevHigh)
	f.CodeSnippet = "eval(user_input)"

	adapter := &stubAdapter{name: "alpha", findings: []types.Finding{f}}

	first, err := New(root, WithAdapters(adapter))
	require.NoError(t, err)
	first.RunAll(context.Background(), true)
	require.Len(t, first.Aggregate(), 1)
	require.NoError(t, first.Store().Add(f))

	second, err := New(root, WithAdapters(adapter))
	require.NoError(t, err)
	second.RunAll(context.Background(), true)
	assert.Empty(t, second.Aggregate(), "suppression persists across orchestrator instances")
	assert.Equal(t, 1, second.Summarize().Suppressed)
}

func TestSummarizeCountsAndFailures(t *testing.T) {
	o, err := New(t.TempDir(), WithAdapters(
		&stubAdapter{name: "alpha", findings: []types.Finding{
			finding("alpha", "a.py", types.SevCritical),
			finding("alpha", "b.py", types.SevHigh),
		}},
		&stubAdapter{name: "broken", err: errors.New("binary exploded")},
	))
	require.NoError(t, err)

	o.RunAll(context.Background(), true)
	o.Aggregate()
	s := o.Summarize()

	assert.Equal(t, 2, s.TotalFindings)
	assert.Equal(t, 2, s.ByTool["alpha"])
	assert.Equal(t, 1, s.BySeverity[types.SevCritical])
	assert.Equal(t, 1, s.BySeverity[types.SevHigh])
	assert.Equal(t, "binary exploded", s.Failures["broken"])
	assert.Equal(t, []string{"broken"}, o.FailedTools())
}

func TestEveryToolBrokenStillCompletes(t *testing.T) {
	o, err := New(t.TempDir(), WithAdapters(
		&stubAdapter{name: "a", err: &tools.NotFoundError{Tool: "a"}},
		&stubAdapter{name: "b", err: &tools.NotFoundError{Tool: "b"}},
	))
	require.NoError(t, err)

	results := o.RunAll(context.Background(), true)
	require.Len(t, results, 2)
	assert.Empty(t, o.Aggregate())

	s := o.Summarize()
	assert.Equal(t, 0, s.TotalFindings)
	assert.Len(t, s.Failures, 2)
}
