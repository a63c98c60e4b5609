// Package scanner wraps external vulnerability-scanning binaries behind one
// Adapter interface. Each adapter owns only its tool's invocation details and
// output parsing; execution, timeout, and exit-code handling are shared.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/authent8/authent8/internal/types"
)

// Adapter is the shared contract implemented once per wrapped tool.
type Adapter interface {
	// Name is the stable tool identifier used in results and summaries.
	Name() string

	// RequiresNetwork reports whether the underlying tool depends on a live
	// data feed (e.g. a CVE database) and must be skipped offline.
	RequiresNetwork() bool

	// Scan invokes the tool against the project root and returns canonical
	// findings. Ignored patterns are translated into the tool's own exclude
	// flags where supported. Errors are typed: *tools.NotFoundError,
	// *TimeoutError, *OutputError, or *ExitError.
	Scan(ctx context.Context, ignored []string) ([]types.Finding, error)
}

// TimeoutError reports that a tool exceeded its wall-clock budget.
type TimeoutError struct {
	Tool  string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Tool, e.Limit)
}

// OutputError reports that a tool exited successfully but produced output
// this adapter could not parse. It is never collapsed into an empty result:
// "no issues" and "garbled output" must stay distinguishable.
type OutputError struct {
	Tool string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s produced unparseable output: %v", e.Tool, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// ExitError reports an exit code outside the tool's documented success set.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed with exit code %d", e.Tool, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		if len(s) > 300 {
			s = s[:300]
		}
		msg += ": " + s
	}
	return msg
}

// invocation describes one external tool run. OKExitCodes is the per-tool
// convention for "ran successfully, findings may be present"; it is never
// assumed uniform across tools.
type invocation struct {
	tool        string
	binary      string
	args        []string
	timeout     time.Duration
	okExitCodes []int
}

// run executes the invocation under its wall-clock budget and returns stdout.
// An exit code in okExitCodes is success even when non-zero (several tools
// signal "findings present" that way).
func run(ctx context.Context, inv invocation) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.binary, inv.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// The kill at the deadline only reaches the direct child. Tools that
	// fork workers (semgrep, checkov) leave grandchildren holding the stdio
	// pipes, and Wait would block on them until they exit. WaitDelay puts a
	// bound on that.
	cmd.WaitDelay = 200 * time.Millisecond

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, &TimeoutError{Tool: inv.tool, Limit: inv.timeout}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			for _, ok := range inv.okExitCodes {
				if code == ok {
					return stdout.Bytes(), nil
				}
			}
			return nil, &ExitError{Tool: inv.tool, Code: code, Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("%s execution failed: %w", inv.tool, err)
	}
	return stdout.Bytes(), nil
}

// truncate caps s at n bytes; adapters apply fixed caps to titles,
// descriptions and snippets so records stay bounded.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sanitizeASCII replaces common typographic Unicode with ASCII equivalents
// and strips the rest, avoiding encoding surprises downstream.
func sanitizeASCII(s string) string {
	if s == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"…", "...",
		"’", "'",
		"‘", "'",
		"“", `"`,
		"”", `"`,
		"—", "--",
		"–", "-",
		" ", " ",
	)
	s = replacer.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeSeverity collapses a tool-native severity onto the canonical four
// levels using the adapter's mapping table, falling back when unmapped.
func normalizeSeverity(raw string, table map[string]types.Severity, fallback types.Severity) types.Severity {
	if sev, ok := table[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return sev
	}
	return fallback
}
