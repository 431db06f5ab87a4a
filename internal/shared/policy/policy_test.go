package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePolicy = `
window_days: 60
entities:
  facility:
    source_a: registry
    source_b: claims
    fields:
      facility_code:
        primary: registry
        normalize: upper
      region:
        primary: claims
    tracked: [facility_code, region]
    critical:
      - field: facility_code
        weight: 50
        pattern: "^[A-Z]{2}[0-9]{4}$"
  veteran:
    source_a: registry
    source_b: claims
    window_days: 30
    depends_on: [facility]
    fields:
      rating:
        primary: registry
    tracked: [rating]
`

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy fixture: %v", err)
	}
	return path
}

func TestLoadParsesAndBackfillsEntityTypes(t *testing.T) {
	p, err := Load(writePolicy(t, samplePolicy))
	if err != nil {
		t.Fatalf("load policy failed: %v", err)
	}
	if p.WindowDays != 60 {
		t.Fatalf("expected window_days 60, got %d", p.WindowDays)
	}

	facility, ok := p.Entity("facility")
	if !ok {
		t.Fatalf("expected facility entity")
	}
	if facility.EntityType != "facility" {
		t.Fatalf("expected entity type backfilled, got %q", facility.EntityType)
	}
	if facility.Fields["facility_code"].Normalize != "upper" {
		t.Fatalf("expected normalize rule to survive parsing")
	}

	veteran, _ := p.Entity("veteran")
	if veteran.Window(p.WindowDays) != 30 {
		t.Fatalf("expected entity window override, got %d", veteran.Window(p.WindowDays))
	}
	if facility.Window(p.WindowDays) != 60 {
		t.Fatalf("expected policy-wide window fallback, got %d", facility.Window(p.WindowDays))
	}
}

func TestFallbackReturnsOtherSource(t *testing.T) {
	entity := EntityPolicy{SourceA: "registry", SourceB: "claims"}
	if entity.Fallback("registry") != "claims" {
		t.Fatalf("expected claims fallback")
	}
	if entity.Fallback("claims") != "registry" {
		t.Fatalf("expected registry fallback")
	}
}

func TestLoadRejectsInvalidPolicies(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "same sources",
			content: `
entities:
  facility:
    source_a: registry
    source_b: registry
    fields:
      code: {primary: registry}
    tracked: [code]
`,
			wantErr: "must differ",
		},
		{
			name: "primary not a source",
			content: `
entities:
  facility:
    source_a: registry
    source_b: claims
    fields:
      code: {primary: billing}
    tracked: [code]
`,
			wantErr: "not a configured source",
		},
		{
			name: "unknown normalize rule",
			content: `
entities:
  facility:
    source_a: registry
    source_b: claims
    fields:
      code: {primary: registry, normalize: soundex}
    tracked: [code]
`,
			wantErr: "unknown normalize rule",
		},
		{
			name: "missing tracked set",
			content: `
entities:
  facility:
    source_a: registry
    source_b: claims
    fields:
      code: {primary: registry}
`,
			wantErr: "tracked field set is required",
		},
		{
			name: "self dependency",
			content: `
entities:
  facility:
    source_a: registry
    source_b: claims
    depends_on: [facility]
    fields:
      code: {primary: registry}
    tracked: [code]
`,
			wantErr: "cannot depend on itself",
		},
		{
			name: "unknown dependency",
			content: `
entities:
  facility:
    source_a: registry
    source_b: claims
    depends_on: [region]
    fields:
      code: {primary: registry}
    tracked: [code]
`,
			wantErr: "unknown dependency",
		},
		{
			name: "bad critical pattern",
			content: `
entities:
  facility:
    source_a: registry
    source_b: claims
    fields:
      code: {primary: registry}
    tracked: [code]
    critical:
      - field: code
        weight: 50
        pattern: "(["
`,
			wantErr: "bad pattern",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writePolicy(t, tc.content))
			if err == nil {
				t.Fatalf("expected load to fail")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
