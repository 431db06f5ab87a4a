package records

import (
	"testing"
	"time"
)

func TestCollapseLatestKeepsMostRecentPerKey(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	latest, orphans := CollapseLatest([]SourceRecord{
		{NaturalKey: "K1", Attributes: map[string]string{"rating": "50"}, IngestedAt: base},
		{NaturalKey: "K1", Attributes: map[string]string{"rating": "60"}, IngestedAt: base.Add(time.Hour)},
		{NaturalKey: "K2", Attributes: map[string]string{"rating": "70"}, IngestedAt: base},
	})
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans, got %d", len(orphans))
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 collapsed keys, got %d", len(latest))
	}
	if latest["K1"].Attributes["rating"] != "60" {
		t.Fatalf("expected most recent record for K1, got %v", latest["K1"].Attributes)
	}
}

func TestCollapseLatestReportsBlankKeysAsOrphans(t *testing.T) {
	latest, orphans := CollapseLatest([]SourceRecord{
		{NaturalKey: "  ", Attributes: map[string]string{"rating": "50"}},
		{NaturalKey: "K1", Attributes: map[string]string{"rating": "60"}},
	})
	if len(latest) != 1 {
		t.Fatalf("expected 1 collapsed key, got %d", len(latest))
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
}

func TestCollapseLatestTieBreakIsOrderIndependent(t *testing.T) {
	at := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	first := SourceRecord{NaturalKey: "K1", Attributes: map[string]string{"rating": "50"}, IngestedAt: at}
	second := SourceRecord{NaturalKey: "K1", Attributes: map[string]string{"rating": "70"}, IngestedAt: at}

	forward, _ := CollapseLatest([]SourceRecord{first, second})
	reversed, _ := CollapseLatest([]SourceRecord{second, first})

	if forward["K1"].Attributes["rating"] != reversed["K1"].Attributes["rating"] {
		t.Fatalf("tie-break depends on input order: %q vs %q",
			forward["K1"].Attributes["rating"], reversed["K1"].Attributes["rating"])
	}
}
