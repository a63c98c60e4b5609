// Package validate classifies findings in two stages: a deterministic,
// offline heuristic pass, then a batched model pass over whatever the
// heuristics left undecided. Stage two only runs when a completion client is
// configured; without one the pipeline degrades to heuristics plus a notice.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/authent8/authent8/internal/llm"
	"github.com/authent8/authent8/internal/types"
)

// batchSize keeps each model request inside the endpoint's payload limits.
const batchSize = 3

// NoCredentialNotice is surfaced when stage two is skipped entirely.
const NoCredentialNotice = "no API credential configured, skipping model validation"

const systemPrompt = `You are an expert security engineer validating security scan findings.

For EACH finding, analyze and provide:

1. is_false_positive (boolean): Is this a false alarm? Consider:
   - Test/example/mock data (likely false positive)
   - Commented code (likely false positive)
   - Development-only configs (may be acceptable)
   - Real production secrets/vulnerabilities (NOT false positive)

2. confidence (0-100): Your confidence in this assessment

3. fix_suggestion (string): ACTIONABLE, SPECIFIC fix. Examples:
   - For .env secrets: "Add .env to .gitignore and use environment variables in production"
   - For SQL injection: "Use parameterized queries: cursor.execute('SELECT * FROM users WHERE id = ?', (user_id,))"
   - For hardcoded API key: "Move to environment variable: api_key = os.getenv('API_KEY')"
   - For secrets in code: "Remove hardcoded secret, use secret manager or .env file"

4. reasoning (string): Brief explanation (max 100 chars)

5. risk_context (string): Explain real-world impact if exploited

IMPORTANT: Provide SPECIFIC, ACTIONABLE fixes - not generic "fix the issue" responses.

Respond ONLY with valid JSON array. No markdown, no explanation.`

// Pipeline runs the two classification stages. A nil client is valid and
// limits the pipeline to stage one.
type Pipeline struct {
	client llm.Client
	rules  []Rule
}

// New builds a pipeline around the given client, which may be nil.
func New(client llm.Client) *Pipeline {
	return &Pipeline{client: client, rules: HeuristicRules()}
}

// Result is the outcome of one pipeline run. Findings preserves input order
// and always has the same length as the input slice.
type Result struct {
	Findings      []types.Finding
	HeuristicHits int
	ModelBatches  int
	FailedBatches int
	Notice        string
}

// Run classifies findings. Findings the heuristic stage decides never reach
// the network; the rest are batched to the model stage in input order and
// merged back by position. Batch failures annotate their findings but never
// drop or fabricate any.
func (p *Pipeline) Run(ctx context.Context, findings []types.Finding) Result {
	out, hits := applyHeuristics(p.rules, findings)
	res := Result{Findings: out, HeuristicHits: hits}

	var pending []int
	for i, f := range out {
		if !f.Validated {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return res
	}
	if p.client == nil {
		res.Notice = NoCredentialNotice
		return res
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		idx := pending[start:end]
		batch := make([]types.Finding, len(idx))
		for j, i := range idx {
			batch[j] = out[i]
		}

		res.ModelBatches++
		verdicts, err := p.validateBatch(ctx, batch)
		if err != nil {
			res.FailedBatches++
			for j, i := range idx {
				out[i] = batch[j].WithVerdict(types.Verdict{
					FixSuggestion: fallbackSuggestion(batch[j]),
					Reasoning:     fmt.Sprintf("model validation failed: %v", err),
					RiskContext:   riskContext(batch[j]),
				})
			}
			continue
		}
		// Correlation is strictly positional. A short reply leaves the
		// trailing findings of the batch unvalidated.
		for j, i := range idx {
			if j < len(verdicts) {
				out[i] = batch[j].WithVerdict(verdicts[j])
			}
		}
	}
	return res
}

// batchVerdict is the wire shape requested from the model, one per finding.
type batchVerdict struct {
	ID              int    `json:"id"`
	IsFalsePositive bool   `json:"is_false_positive"`
	Confidence      int    `json:"confidence"`
	FixSuggestion   string `json:"fix_suggestion"`
	Reasoning       string `json:"reasoning"`
	RiskContext     string `json:"risk_context"`
}

func (p *Pipeline) validateBatch(ctx context.Context, batch []types.Finding) ([]types.Verdict, error) {
	prompt, err := buildPrompt(batch)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    4096,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, err
	}

	var parsed []batchVerdict
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse verdicts: %w", err)
	}

	verdicts := make([]types.Verdict, len(parsed))
	for i, v := range parsed {
		verdicts[i] = types.Verdict{
			IsFalsePositive: v.IsFalsePositive,
			Confidence:      v.Confidence,
			FixSuggestion:   v.FixSuggestion,
			Reasoning:       v.Reasoning,
			RiskContext:     v.RiskContext,
			Validated:       true,
		}
	}
	return verdicts, nil
}

// promptFinding is what the model actually sees: per-field length caps, only
// the basename of the file, and a coarse classification of where the file
// sits in the project.
type promptFinding struct {
	ID          int               `json:"id"`
	Tool        string            `json:"tool"`
	Type        types.FindingType `json:"type"`
	Severity    types.Severity    `json:"severity"`
	RuleID      string            `json:"rule_id"`
	Message     string            `json:"message"`
	CodeSnippet string            `json:"code_snippet,omitempty"`
	File        string            `json:"file"`
	FileContext string            `json:"file_context"`
	Line        int               `json:"line"`
}

func buildPrompt(batch []types.Finding) (string, error) {
	sanitized := make([]promptFinding, len(batch))
	for i, f := range batch {
		msg := f.Message
		if msg == "" {
			msg = f.Description
		}
		name := path.Base(normalizeSlashes(f.File))
		if name == "." || name == "/" || name == "" {
			name = "unknown"
		}
		sanitized[i] = promptFinding{
			ID:          i,
			Tool:        f.Tool,
			Type:        f.Type,
			Severity:    f.Severity,
			RuleID:      capField(f.RuleID, 60),
			Message:     capField(msg, 200),
			CodeSnippet: capField(f.CodeSnippet, 150),
			File:        name,
			FileContext: fileContext(f.File),
			Line:        f.Line,
		}
	}

	body, err := json.MarshalIndent(sanitized, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt findings: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d security findings and provide validation with ACTIONABLE fix suggestions.\n\n", len(sanitized))
	b.WriteString("Findings:\n")
	b.Write(body)
	fmt.Fprintf(&b, "\n\nFor EACH finding (all %d), respond with:\n", len(sanitized))
	b.WriteString(`{
  "id": <finding_id>,
  "is_false_positive": <true/false>,
  "confidence": <0-100>,
  "fix_suggestion": "<SPECIFIC, ACTIONABLE fix - not generic>",
  "reasoning": "<brief explanation max 100 chars>",
  "risk_context": "<what could happen if exploited>"
}

IMPORTANT:
- For .env files: suggest adding to .gitignore, not "remove secret"
- For hardcoded secrets: suggest moving to env vars or secret manager
- For code vulnerabilities: provide actual code fix example
- Be specific about the file context (is it test file? config file? production code?)

`)
	fmt.Fprintf(&b, "Respond with JSON array of exactly %d validation objects.", len(sanitized))
	return b.String(), nil
}

// capField truncates s to at most n bytes of printable ASCII.
func capField(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\t' {
			r = ' '
		}
		if r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteByte(byte(r))
		if b.Len() >= n {
			break
		}
	}
	return b.String()
}

// fileContext buckets a path so the model can weigh test and config files
// differently from production code.
func fileContext(file string) string {
	lower := strings.ToLower(normalizeSlashes(file))
	switch {
	case strings.Contains(lower, "test") || strings.Contains(lower, "spec") ||
		strings.Contains(lower, "mock"):
		return "test_file"
	case strings.Contains(lower, ".env"):
		return "env_config"
	case strings.Contains(lower, "example") || strings.Contains(lower, "sample") ||
		strings.Contains(lower, "demo") || strings.Contains(lower, "fixture"):
		return "example_file"
	case strings.Contains(lower, "config") || strings.Contains(lower, "settings") ||
		strings.Contains(lower, "conf"):
		return "config_file"
	case strings.Contains(lower, ".md") || strings.Contains(lower, "readme") ||
		strings.Contains(lower, "docs"):
		return "documentation"
	case strings.Contains(lower, "migration") || strings.Contains(lower, "schema"):
		return "database_schema"
	default:
		return "production_code"
	}
}

// stripFences tolerates replies wrapped in a markdown code block.
func stripFences(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}

// fallbackSuggestion gives a keyword-matched remediation hint when the model
// stage cannot be reached.
func fallbackSuggestion(f types.Finding) string {
	file := strings.ToLower(f.File)
	msg := strings.ToLower(f.Message)
	rule := strings.ToLower(f.RuleID)

	switch {
	case strings.Contains(file, ".env"):
		return "Add .env to .gitignore and never commit secrets. Use environment variables in production."
	case containsAny(msg, "hardcoded", "api key", "secret", "password", "token"):
		return "Move secrets to environment variables or use a secret manager (AWS Secrets Manager, HashiCorp Vault)."
	case strings.Contains(msg, "sql") || strings.Contains(rule, "sql-injection"):
		return "Use parameterized queries instead of string concatenation for SQL."
	case containsAny(msg, "command", "shell", "os.system", "subprocess"):
		return "Avoid shell=True, sanitize inputs, use subprocess with list arguments."
	case strings.Contains(msg, "eval"):
		return "Replace eval() with ast.literal_eval() or use JSON parsing."
	case strings.Contains(msg, "xss") || strings.Contains(msg, "innerhtml"):
		return "Sanitize user input before rendering. Use textContent instead of innerHTML."
	case strings.Contains(msg, "pickle") || strings.Contains(msg, "deserializ"):
		return "Use JSON instead of pickle. Never deserialize untrusted data."
	case strings.ToLower(f.Tool) == "gitleaks":
		return "Remove or rotate this secret immediately. Add pattern to .gitignore."
	}
	return "Review this finding and apply security best practices."
}

// riskContext pairs the fallback suggestion with a short impact statement.
func riskContext(f types.Finding) string {
	msg := strings.ToLower(f.Message)
	switch {
	case strings.Contains(msg, "sql"):
		return "Attacker could read/modify/delete database data"
	case strings.Contains(msg, "command") || strings.Contains(msg, "os.system"):
		return "Attacker could execute arbitrary system commands"
	case strings.Contains(msg, "eval"):
		return "Attacker could execute arbitrary code"
	case containsAny(msg, "secret", "api key", "hardcoded"):
		return "Exposed credentials could be used to access external services"
	case strings.Contains(msg, "xss"):
		return "Attacker could steal user sessions or deface website"
	case strings.Contains(msg, "pickle") || strings.Contains(msg, "deserializ"):
		return "Attacker could execute arbitrary code via malicious data"
	case f.Severity == types.SevCritical:
		return "This is a critical vulnerability that should be fixed immediately"
	case f.Severity == types.SevHigh:
		return "This vulnerability could be exploited to compromise the application"
	}
	return "This issue should be reviewed and addressed"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
