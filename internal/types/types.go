package types

// Severity is the canonical risk level for a finding. Every adapter collapses
// its tool's native scale onto these four values.
type Severity string

const (
	SevCritical Severity = "CRITICAL"
	SevHigh     Severity = "HIGH"
	SevMedium   Severity = "MEDIUM"
	SevLow      Severity = "LOW"
)

// Valid reports whether s is one of the four canonical levels.
func (s Severity) Valid() bool {
	switch s {
	case SevCritical, SevHigh, SevMedium, SevLow:
		return true
	}
	return false
}

// Rank orders severities for threshold comparisons; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SevCritical:
		return 4
	case SevHigh:
		return 3
	case SevMedium:
		return 2
	case SevLow:
		return 1
	}
	return 0
}

// FindingType classifies what kind of issue a wrapped tool reported.
type FindingType string

const (
	TypeVulnerability FindingType = "vulnerability"
	TypeSAST          FindingType = "sast"
	TypeSecret        FindingType = "secret"
	TypeMisconfig     FindingType = "misconfig"
	TypeIaC           FindingType = "iac"
)

// Finding is the canonical record produced by every adapter. Instances are
// treated as values: pipeline stages never mutate a shared Finding in place,
// they derive new ones via WithVerdict.
type Finding struct {
	Tool        string      `json:"tool"`
	Type        FindingType `json:"type"`
	Severity    Severity    `json:"severity"`
	RuleID      string      `json:"rule_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Message     string      `json:"message"`

	// Location. File is project-relative; Line is 1-based, 0 meaning the
	// finding has no meaningful line (e.g. a dependency-level CVE).
	File        string `json:"file"`
	Line        int    `json:"line"`
	CodeSnippet string `json:"code_snippet,omitempty"`

	// Tool-specific optional fields.
	CVE          string `json:"cve,omitempty"`
	Package      string `json:"package,omitempty"`
	FixedVersion string `json:"fixed_version,omitempty"`

	// Classification results. Zero values until the validation pipeline
	// touches the record.
	IsFalsePositive bool   `json:"is_false_positive"`
	AIConfidence    int    `json:"ai_confidence"`
	FixSuggestion   string `json:"fix_suggestion,omitempty"`
	AIReasoning     string `json:"ai_reasoning,omitempty"`
	RiskContext     string `json:"risk_context,omitempty"`
	Validated       bool   `json:"validated"`
}

// Verdict is one classification decision, produced either by a heuristic rule
// or by the model stage, and merged onto a Finding as an explicit step.
type Verdict struct {
	IsFalsePositive bool   `json:"is_false_positive"`
	Confidence      int    `json:"confidence"`
	FixSuggestion   string `json:"fix_suggestion"`
	Reasoning       string `json:"reasoning"`
	RiskContext     string `json:"risk_context"`
	Validated       bool   `json:"validated"`
}

// WithVerdict returns a copy of f carrying the verdict. The receiver is left
// untouched so the orchestrator's working set and the pipeline's never alias.
func (f Finding) WithVerdict(v Verdict) Finding {
	f.IsFalsePositive = v.IsFalsePositive
	f.AIConfidence = v.Confidence
	if v.FixSuggestion != "" {
		f.FixSuggestion = v.FixSuggestion
	}
	if v.Reasoning != "" {
		f.AIReasoning = v.Reasoning
	}
	if v.RiskContext != "" {
		f.RiskContext = v.RiskContext
	}
	f.Validated = v.Validated
	return f
}

// WithSnippet returns a copy of f with the code snippet replaced.
func (f Finding) WithSnippet(snippet string) Finding {
	f.CodeSnippet = snippet
	return f
}
