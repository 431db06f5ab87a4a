package quality

import (
	"testing"

	"meridian/internal/shared/policy"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestScoreSumsWeightsOfValidFields(t *testing.T) {
	critical := []policy.CriticalField{
		{Field: "facility_code", Weight: 40, Pattern: "^[A-Z]{2}[0-9]{4}$"},
		{Field: "rating", Weight: 30, Min: floatPtr(0), Max: floatPtr(100)},
		{Field: "status", Weight: 30, OneOf: []string{"ACTIVE", "CLOSED"}},
	}
	score, issues := Score(map[string]string{
		"facility_code": "NY1234",
		"rating":        "85",
		"status":        "active",
	}, critical)
	if score != 100 {
		t.Fatalf("expected full score, got %d", score)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestScoreReportsMissingAndInvalidInDeclarationOrder(t *testing.T) {
	critical := []policy.CriticalField{
		{Field: "facility_code", Weight: 40, Pattern: "^[A-Z]{2}[0-9]{4}$"},
		{Field: "rating", Weight: 30, Min: floatPtr(0), Max: floatPtr(100)},
		{Field: "status", Weight: 30},
	}
	score, issues := Score(map[string]string{
		"facility_code": "bad-code",
		"status":        "ACTIVE",
	}, critical)
	if score != 30 {
		t.Fatalf("expected score 30, got %d", score)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
	if issues[0] != "invalid:facility_code" || issues[1] != "missing:rating" {
		t.Fatalf("unexpected issue order: %v", issues)
	}
}

func TestScoreRangeValidator(t *testing.T) {
	critical := []policy.CriticalField{
		{Field: "rating", Weight: 50, Min: floatPtr(0), Max: floatPtr(100)},
	}
	if score, _ := Score(map[string]string{"rating": "150"}, critical); score != 0 {
		t.Fatalf("expected out-of-range value to score 0, got %d", score)
	}
	if score, _ := Score(map[string]string{"rating": "not-a-number"}, critical); score != 0 {
		t.Fatalf("expected non-numeric value to score 0, got %d", score)
	}
}

func TestScoreCapsAtMax(t *testing.T) {
	critical := []policy.CriticalField{
		{Field: "a", Weight: 80},
		{Field: "b", Weight: 80},
	}
	score, _ := Score(map[string]string{"a": "x", "b": "y"}, critical)
	if score != MaxScore {
		t.Fatalf("expected capped score %d, got %d", MaxScore, score)
	}
}

func TestScoreReusesCompiledPattern(t *testing.T) {
	pattern := "^[A-Z]{2}[0-9]{4}-cache$"
	critical := []policy.CriticalField{{Field: "facility_code", Weight: 40, Pattern: pattern}}

	if score, _ := Score(map[string]string{"facility_code": "NY1234-cache"}, critical); score != 40 {
		t.Fatalf("expected matching value to score, got %d", score)
	}
	first, ok := patternCache.Load(pattern)
	if !ok || first == nil {
		t.Fatalf("expected pattern to be cached after first score")
	}

	if score, _ := Score(map[string]string{"facility_code": "NY1234-cache"}, critical); score != 40 {
		t.Fatalf("expected matching value to score on reuse, got %d", score)
	}
	second, _ := patternCache.Load(pattern)
	if first != second {
		t.Fatalf("expected the same compiled pattern instance to be reused")
	}
}

func TestScoreUncompilablePatternFailsValue(t *testing.T) {
	critical := []policy.CriticalField{{Field: "facility_code", Weight: 40, Pattern: "([unclosed-cache"}}
	for i := 0; i < 2; i++ {
		score, issues := Score(map[string]string{"facility_code": "NY1234"}, critical)
		if score != 0 {
			t.Fatalf("expected uncompilable pattern to fail the value, got score %d", score)
		}
		if len(issues) != 1 || issues[0] != "invalid:facility_code" {
			t.Fatalf("expected invalid issue, got %v", issues)
		}
	}
}

func TestScorePresenceOnlyField(t *testing.T) {
	critical := []policy.CriticalField{{Field: "name", Weight: 60}}
	if score, issues := Score(map[string]string{"name": "alpha"}, critical); score != 60 || len(issues) != 0 {
		t.Fatalf("expected presence-only field to pass, got score=%d issues=%v", score, issues)
	}
	if _, issues := Score(map[string]string{}, critical); len(issues) != 1 || issues[0] != "missing:name" {
		t.Fatalf("expected missing issue, got %v", issues)
	}
}
