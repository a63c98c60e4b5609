// Package report renders the final finding list for humans and machines.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/olekukonko/tablewriter"

	"github.com/authent8/authent8/internal/gitmeta"
	"github.com/authent8/authent8/internal/orchestrator"
	"github.com/authent8/authent8/internal/types"
)

type PrintOptions struct {
	NoColor bool
	Verbose bool
}

// PrintTable writes the findings table sorted by severity then location.
// Suppression status and model verdicts show up in the STATUS column.
func PrintTable(w io.Writer, findings []types.Finding, opts PrintOptions) {
	sorted := make([]types.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Line < sorted[j].Line
	})

	if len(sorted) == 0 {
		fmt.Fprintln(w, "No findings 🎉")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("SEVERITY", "TOOL", "RULE", "LOCATION", "STATUS")
	for _, f := range sorted {
		sev := string(f.Severity)
		if !opts.NoColor {
			sev = colorSeverity(f.Severity)
		}
		loc := f.File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		_ = table.Append(sev, f.Tool, shorten(f.RuleID, 40), loc, status(f))
	}
	_ = table.Render()

	if opts.Verbose {
		for _, f := range sorted {
			printDetail(w, f, opts.NoColor)
		}
	}
}

func printDetail(w io.Writer, f types.Finding, noColor bool) {
	fmt.Fprintf(w, "\n%s %s (%s)\n", string(f.Severity), f.Title, f.Tool)
	if f.File != "" {
		fmt.Fprintf(w, "  at %s:%d\n", f.File, f.Line)
	}
	if f.CodeSnippet != "" {
		snippet := f.CodeSnippet
		if !noColor {
			snippet = highlightSnippet(snippet, f.File)
		}
		fmt.Fprintf(w, "  | %s\n", snippet)
	}
	if f.FixSuggestion != "" {
		fmt.Fprintf(w, "  fix: %s\n", f.FixSuggestion)
	}
	if f.RiskContext != "" {
		fmt.Fprintf(w, "  risk: %s\n", f.RiskContext)
	}
	if f.AIReasoning != "" {
		fmt.Fprintf(w, "  note: %s\n", f.AIReasoning)
	}
}

func status(f types.Finding) string {
	switch {
	case f.IsFalsePositive:
		return fmt.Sprintf("false positive (%d%%)", f.AIConfidence)
	case f.Validated:
		return fmt.Sprintf("confirmed (%d%%)", f.AIConfidence)
	}
	return "unvalidated"
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return "\x1b[35mCRITICAL\x1b[0m" // magenta
	case types.SevHigh:
		return "\x1b[31mHIGH\x1b[0m" // red
	case types.SevMedium:
		return "\x1b[33mMEDIUM\x1b[0m" // yellow
	default:
		return "\x1b[36mLOW\x1b[0m" // cyan
	}
}

// highlightSnippet renders one code line with terminal colors, falling back
// to the raw text whenever the file type or terminal support is unknown.
func highlightSnippet(code, filename string) string {
	lexer := lexers.Match(filepath.Base(filename))
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// PrintSummary writes the per-tool and per-severity breakdown.
func PrintSummary(w io.Writer, s orchestrator.Summary, meta gitmeta.Metadata) {
	fmt.Fprintf(w, "\nFindings: %d (critical: %d, high: %d, medium: %d, low: %d)\n",
		s.TotalFindings,
		s.BySeverity[types.SevCritical],
		s.BySeverity[types.SevHigh],
		s.BySeverity[types.SevMedium],
		s.BySeverity[types.SevLow],
	)
	if s.Suppressed > 0 {
		fmt.Fprintf(w, "Suppressed as known false positives: %d\n", s.Suppressed)
	}
	for _, tc := range sortedCounts(s.ByTool) {
		fmt.Fprintf(w, "  %-15s %d\n", tc.name, tc.count)
	}
	for tool, msg := range s.Failures {
		fmt.Fprintf(w, "  %-15s failed: %s\n", tool, msg)
	}
	if s.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", s.Duration.Seconds())
	}
	if meta.Repo != "" {
		fmt.Fprintf(w, "Repository: %s", meta.Repo)
		if meta.Branch != "" {
			fmt.Fprintf(w, " (%s)", meta.Branch)
		}
		fmt.Fprintln(w)
	}
}

type toolCount struct {
	name  string
	count int
}

func sortedCounts(m map[string]int) []toolCount {
	out := make([]toolCount, 0, len(m))
	for name, count := range m {
		out = append(out, toolCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// JSONReport is the machine-readable output shape.
type JSONReport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Repository  gitmeta.Metadata     `json:"repository,omitempty"`
	Summary     orchestrator.Summary `json:"summary"`
	Findings    []types.Finding      `json:"findings"`
}

// WriteJSON emits the full report as indented JSON.
func WriteJSON(w io.Writer, findings []types.Finding, s orchestrator.Summary, meta gitmeta.Metadata) error {
	rep := JSONReport{
		GeneratedAt: time.Now().UTC(),
		Repository:  meta,
		Summary:     s,
		Findings:    findings,
	}
	if rep.Findings == nil {
		rep.Findings = []types.Finding{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
