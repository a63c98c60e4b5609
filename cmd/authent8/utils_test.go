package authent8

import (
	"testing"

	"github.com/authent8/authent8/internal/types"
)

func TestPickPrecedence(t *testing.T) {
	local, global := "local", "global"
	if got := pickString("cli", &local, &global); got != "cli" {
		t.Fatalf("expected cli to win, got %q", got)
	}
	if got := pickString("", &local, &global); got != "local" {
		t.Fatalf("expected local to win, got %q", got)
	}
	if got := pickString("", nil, &global); got != "global" {
		t.Fatalf("expected global fallback, got %q", got)
	}
	if got := pickString("", nil, nil); got != "" {
		t.Fatalf("expected empty default, got %q", got)
	}

	seven := 7
	if got := pickInt(0, &seven, nil); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}

	truthy := true
	if !pickBool(false, &truthy, nil) {
		t.Fatal("expected local bool to apply")
	}
}

func TestBreached(t *testing.T) {
	findings := []types.Finding{
		{Severity: types.SevMedium},
		{Severity: types.SevCritical, IsFalsePositive: true},
	}
	if breached(findings, "high") {
		t.Fatal("false positives must not breach the threshold")
	}
	if !breached(findings, "medium") {
		t.Fatal("expected medium finding to breach medium threshold")
	}
	if breached(findings, "bogus") {
		t.Fatal("unknown threshold never breaches")
	}
}
