package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithVerdictLeavesReceiverUntouched(t *testing.T) {
	orig := Finding{Tool: "semgrep", Severity: SevHigh, RuleID: "r1"}
	merged := orig.WithVerdict(Verdict{
		IsFalsePositive: true,
		Confidence:      80,
		Reasoning:       "test data",
		Validated:       true,
	})

	assert.False(t, orig.Validated)
	assert.False(t, orig.IsFalsePositive)

	assert.True(t, merged.Validated)
	assert.True(t, merged.IsFalsePositive)
	assert.Equal(t, 80, merged.AIConfidence)
	assert.Equal(t, "test data", merged.AIReasoning)
}

func TestWithVerdictKeepsExistingTextOnEmpty(t *testing.T) {
	orig := Finding{FixSuggestion: "rotate the key", AIReasoning: "prior note"}
	merged := orig.WithVerdict(Verdict{Validated: true})

	assert.Equal(t, "rotate the key", merged.FixSuggestion)
	assert.Equal(t, "prior note", merged.AIReasoning)
}

func TestSeverityRankOrdering(t *testing.T) {
	assert.Greater(t, SevCritical.Rank(), SevHigh.Rank())
	assert.Greater(t, SevHigh.Rank(), SevMedium.Rank())
	assert.Greater(t, SevMedium.Rank(), SevLow.Rank())
	assert.Equal(t, 0, Severity("BOGUS").Rank())
	assert.False(t, Severity("BOGUS").Valid())
}
