package validate

import (
	"path"
	"strings"

	"github.com/authent8/authent8/internal/types"
)

// Rule pairs a predicate with the verdict applied when it matches. Rules are
// evaluated in order and the first match wins, so each one stays
// independently testable without any shared control flow.
type Rule struct {
	Name    string
	Match   func(types.Finding) bool
	Verdict types.Verdict
}

// HeuristicRules is the fixed, ordered rule table applied before the model
// stage. No rule touches the network.
func HeuristicRules() []Rule {
	return []Rule{
		{
			Name: "test-path",
			// Secrets under test paths are handled by the stricter
			// placeholder rule below: a real credential committed into a
			// test file is still a leak.
			Match: func(f types.Finding) bool {
				return f.Type != types.TypeSecret && underTestPath(f.File)
			},
			Verdict: types.Verdict{
				IsFalsePositive: true,
				Confidence:      80,
				Reasoning:       "Located under a test/fixture path",
				Validated:       true,
			},
		},
		{
			Name: "documentation",
			Match: func(f types.Finding) bool {
				return isDocumentation(f.File)
			},
			Verdict: types.Verdict{
				IsFalsePositive: true,
				Confidence:      75,
				Reasoning:       "Located inside documentation",
				Validated:       true,
			},
		},
		{
			Name: "installer-script",
			Match: func(f types.Finding) bool {
				return isInstallerScript(f.File) && hasDownloadChmodIdiom(f)
			},
			Verdict: types.Verdict{
				IsFalsePositive: true,
				Confidence:      70,
				Reasoning:       "Install-script download/chmod idiom",
				Validated:       true,
			},
		},
		{
			Name: "placeholder-secret",
			Match: func(f types.Finding) bool {
				return f.Type == types.TypeSecret && underTestPath(f.File) && hasPlaceholderEvidence(f)
			},
			Verdict: types.Verdict{
				IsFalsePositive: true,
				Confidence:      85,
				Reasoning:       "Placeholder credential in test code",
				Validated:       true,
			},
		},
	}
}

// applyHeuristics runs the rule table over each finding, returning a new
// slice (inputs are never mutated) plus the number of findings classified.
func applyHeuristics(rules []Rule, findings []types.Finding) ([]types.Finding, int) {
	out := make([]types.Finding, len(findings))
	classified := 0
	for i, f := range findings {
		out[i] = f
		for _, rule := range rules {
			if rule.Match(f) {
				out[i] = f.WithVerdict(rule.Verdict)
				classified++
				break
			}
		}
	}
	return out, classified
}

var testPathMarkers = []string{
	"test", "tests", "spec", "specs", "mock", "mocks",
	"fixture", "fixtures", "__tests__", "testdata",
}

func underTestPath(file string) bool {
	lower := strings.ToLower(normalizeSlashes(file))
	base := path.Base(lower)
	for _, seg := range strings.Split(lower, "/") {
		for _, marker := range testPathMarkers {
			if seg == marker {
				return true
			}
		}
	}
	// filename conventions: foo_test.py, foo.test.js, test_foo.py
	if strings.Contains(base, "_test.") || strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") || strings.HasPrefix(base, "test_") ||
		strings.HasPrefix(base, "security_check") {
		return true
	}
	return false
}

func isDocumentation(file string) bool {
	lower := strings.ToLower(normalizeSlashes(file))
	base := path.Base(lower)
	if strings.HasSuffix(base, ".md") || strings.HasSuffix(base, ".rst") ||
		strings.HasPrefix(base, "readme") || strings.HasPrefix(base, "changelog") {
		return true
	}
	for _, seg := range strings.Split(lower, "/") {
		if seg == "docs" || seg == "doc" || seg == "documentation" {
			return true
		}
	}
	return false
}

func isInstallerScript(file string) bool {
	lower := strings.ToLower(path.Base(normalizeSlashes(file)))
	if !strings.HasSuffix(lower, ".sh") && !strings.HasSuffix(lower, ".bash") {
		return false
	}
	return strings.Contains(lower, "install") || strings.Contains(lower, "bootstrap") ||
		strings.Contains(lower, "setup")
}

func hasDownloadChmodIdiom(f types.Finding) bool {
	evidence := strings.ToLower(f.CodeSnippet + " " + f.Message + " " + f.Title)
	downloads := strings.Contains(evidence, "curl") || strings.Contains(evidence, "wget")
	return downloads && strings.Contains(evidence, "chmod")
}

var placeholderMarkers = []string{
	"example", "dummy", "sample", "mock", "placeholder", "changeme", "fake",
}

func hasPlaceholderEvidence(f types.Finding) bool {
	evidence := strings.ToLower(f.CodeSnippet + " " + f.Message + " " + f.Title)
	for _, marker := range placeholderMarkers {
		if strings.Contains(evidence, marker) {
			return true
		}
	}
	return hasTrivialDigitRun(evidence)
}

// hasTrivialDigitRun detects sequential or single-digit-repeated runs of at
// least four digits ("12345", "0000"), a common shape for placeholder keys.
// Any four-digit window counts, so "1234567890" trips on its prefix.
func hasTrivialDigitRun(s string) bool {
	for i := 0; i+4 <= len(s); i++ {
		if !allDigits(s[i : i+4]) {
			continue
		}
		if isTrivialDigits(s[i : i+4]) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isTrivialDigits(digits string) bool {
	repeated, sequential := true, true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			repeated = false
		}
		if digits[i] != digits[i-1]+1 {
			sequential = false
		}
	}
	return repeated || sequential
}

// normalizeSlashes normalizes separators so Windows-style tool output matches too.
func normalizeSlashes(file string) string {
	return strings.ReplaceAll(file, "\\", "/")
}
