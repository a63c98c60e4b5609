// Package orchestrator plans and runs the wrapped scanners concurrently,
// isolates per-tool failures, and turns the per-tool results into one
// enriched, suppression-filtered finding list plus a summary.
package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/authent8/authent8/internal/fpstore"
	"github.com/authent8/authent8/internal/ignore"
	"github.com/authent8/authent8/internal/scanner"
	"github.com/authent8/authent8/internal/tools"
	"github.com/authent8/authent8/internal/types"
)

// snippetCap bounds re-derived code snippets the same way adapters bound
// their own.
const snippetCap = 300

// Result is the outcome of one adapter run. Exactly one of Findings and Err
// is meaningful.
type Result struct {
	Findings []types.Finding
	Err      error
	Duration time.Duration
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithLocator overrides binary resolution, mainly for tests.
func WithLocator(loc tools.Locator) Option {
	return func(o *Orchestrator) { o.locator = loc }
}

// WithAdapters replaces the default adapter set.
func WithAdapters(adapters ...scanner.Adapter) Option {
	return func(o *Orchestrator) { o.adapters = adapters }
}

// WithWorkers bounds the concurrent adapter pool. Values below one fall back
// to the default.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithOverallTimeout imposes a deadline on RunAll. Adapters still running at
// the deadline are abandoned and recorded as timed out.
func WithOverallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.overall = d }
}

// WithStore substitutes the suppression store, mainly for tests that keep it
// away from the project root.
func WithStore(store *fpstore.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithDisabledTools removes the named tools from every scan plan.
func WithDisabledTools(names ...string) Option {
	return func(o *Orchestrator) {
		if o.disabled == nil {
			o.disabled = make(map[string]bool, len(names))
		}
		for _, name := range names {
			o.disabled[name] = true
		}
	}
}

// Orchestrator owns one scan run over a project root. It is not safe for
// concurrent use; run one scan per instance.
type Orchestrator struct {
	root    string
	locator tools.Locator
	matcher ignore.Matcher
	store   *fpstore.Store

	adapters []scanner.Adapter
	disabled map[string]bool
	workers  int
	overall  time.Duration

	results    map[string]Result
	planned    []string
	suppressed int
	duration   time.Duration
}

// New validates the project root, loads the ignore patterns and the
// suppression store once, and assembles the default adapter set. An absent
// or unreadable root is the one fatal construction error.
func New(root string, opts ...Option) (*Orchestrator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	o := &Orchestrator{
		root:    abs,
		locator: tools.ExecLocator{},
		matcher: ignore.Load(abs),
		workers: 4,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		o.store = fpstore.Load(abs)
	}
	if o.adapters == nil {
		o.adapters = defaultAdapters(abs, o.locator)
	}
	return o, nil
}

// defaultAdapters is the full wrapped-tool set in stable plan order.
func defaultAdapters(root string, loc tools.Locator) []scanner.Adapter {
	return []scanner.Adapter{
		scanner.NewTrivy(root, loc),
		scanner.NewSemgrep(root, loc),
		scanner.NewGitleaks(root, loc),
		scanner.NewBandit(root, loc),
		scanner.NewCheckov(root, loc),
		scanner.NewGrype(root, loc),
		scanner.NewOSV(root, loc),
		scanner.NewDetectSecrets(root, loc),
	}
}

// Root returns the resolved project root.
func (o *Orchestrator) Root() string { return o.root }

// Store exposes the suppression store for callers managing entries.
func (o *Orchestrator) Store() *fpstore.Store { return o.store }

// IgnorePatterns returns the effective ignore list for this run.
func (o *Orchestrator) IgnorePatterns() []string { return o.matcher.Patterns() }

// Plan returns the adapter names selected for this run, in stable order.
// Offline runs drop every adapter whose tool needs a live data feed.
func (o *Orchestrator) Plan(online bool) []string {
	plan := make([]string, 0, len(o.adapters))
	for _, a := range o.adapters {
		if o.disabled[a.Name()] {
			continue
		}
		if !online && a.RequiresNetwork() {
			continue
		}
		plan = append(plan, a.Name())
	}
	return plan
}

// RunAll executes every planned adapter concurrently and returns a complete
// per-tool result map: one entry per planned adapter, holding either its
// findings or its typed error. A failing adapter never disturbs another's
// results. With an overall timeout configured, adapters that have not
// finished by the deadline are abandoned and recorded as timed out.
func (o *Orchestrator) RunAll(ctx context.Context, online bool) map[string]Result {
	o.planned = o.Plan(online)
	planned := make(map[string]bool, len(o.planned))
	for _, name := range o.planned {
		planned[name] = true
	}
	ignored := o.matcher.Patterns()

	start := time.Now()
	var mu sync.Mutex
	results := make(map[string]Result, len(o.planned))

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	// Enqueue from the waiter goroutine: with the limit set, g.Go blocks
	// once all workers are busy, and the deadline select below must stay
	// reachable even then.
	done := make(chan struct{})
	go func() {
		for _, a := range o.adapters {
			if !planned[a.Name()] {
				continue
			}
			adapter := a
			g.Go(func() error {
				t0 := time.Now()
				findings, err := adapter.Scan(runCtx, ignored)
				mu.Lock()
				results[adapter.Name()] = Result{
					Findings: findings,
					Err:      err,
					Duration: time.Since(t0),
				}
				mu.Unlock()
				// Errors stay in the result map; returning one here would
				// cancel sibling adapters.
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	if o.overall > 0 {
		select {
		case <-done:
		case <-time.After(o.overall):
		}
	} else {
		<-done
	}

	mu.Lock()
	for _, name := range o.planned {
		if _, ok := results[name]; !ok {
			results[name] = Result{
				Err:      &scanner.TimeoutError{Tool: name, Limit: o.overall},
				Duration: time.Since(start),
			}
		}
	}
	snapshot := make(map[string]Result, len(results))
	for name, r := range results {
		snapshot[name] = r
	}
	mu.Unlock()

	o.results = snapshot
	o.duration = time.Since(start)
	return snapshot
}

// Aggregate flattens the per-tool results in plan order, re-derives missing
// or placeholder code snippets from disk, and drops findings the suppression
// store already covers. It must be called after RunAll.
func (o *Orchestrator) Aggregate() []types.Finding {
	var all []types.Finding
	for _, name := range o.planned {
		r, ok := o.results[name]
		if !ok || r.Err != nil {
			continue
		}
		all = append(all, r.Findings...)
	}

	for i, f := range all {
		if !snippetImplausible(f.CodeSnippet) {
			continue
		}
		if snippet, ok := o.readLine(f.File, f.Line); ok {
			all[i] = f.WithSnippet(snippet)
		}
	}

	kept, suppressed := o.store.Filter(all)
	o.suppressed = suppressed
	return kept
}

// snippetImplausible reports whether a snippet carries no information worth
// showing: empty, or a known placeholder some tools emit instead of code.
func snippetImplausible(snippet string) bool {
	s := strings.ToLower(strings.TrimSpace(snippet))
	switch s {
	case "", "requires login", "n/a", "redacted":
		return true
	}
	return false
}

// readLine fetches the 1-based line of a project file. Unreadable files and
// out-of-range lines report !ok so the adapter-provided value survives.
func (o *Orchestrator) readLine(file string, line int) (string, bool) {
	if file == "" || line <= 0 {
		return "", false
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.root, file)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		if n == line {
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				return "", false
			}
			if len(text) > snippetCap {
				text = text[:snippetCap]
			}
			return text, true
		}
	}
	return "", false
}

// Summary describes one completed scan run.
type Summary struct {
	TotalFindings int                    `json:"total_findings"`
	ByTool        map[string]int         `json:"by_tool"`
	BySeverity    map[types.Severity]int `json:"by_severity"`
	Suppressed    int                    `json:"suppressed"`
	Failures      map[string]string      `json:"failures,omitempty"`
	Duration      time.Duration          `json:"duration"`
}

// Summarize computes per-tool and per-severity counts over the last run,
// including the per-tool failure breakdown and the suppression count from
// the last Aggregate call.
func (o *Orchestrator) Summarize() Summary {
	s := Summary{
		ByTool: make(map[string]int, len(o.planned)),
		BySeverity: map[types.Severity]int{
			types.SevCritical: 0,
			types.SevHigh:     0,
			types.SevMedium:   0,
			types.SevLow:      0,
		},
		Suppressed: o.suppressed,
		Failures:   make(map[string]string),
		Duration:   o.duration,
	}
	for _, name := range o.planned {
		r, ok := o.results[name]
		if !ok {
			continue
		}
		if r.Err != nil {
			s.Failures[name] = r.Err.Error()
			continue
		}
		s.ByTool[name] = len(r.Findings)
		s.TotalFindings += len(r.Findings)
		for _, f := range r.Findings {
			s.BySeverity[f.Severity]++
		}
	}
	if len(s.Failures) == 0 {
		s.Failures = nil
	}
	return s
}

// FailedTools lists the tools whose last run ended in an error, sorted for
// stable output.
func (o *Orchestrator) FailedTools() []string {
	var failed []string
	for name, r := range o.results {
		if r.Err != nil {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}
