package unit

import (
	"context"
	"testing"
	"time"

	pipeline "meridian/contexts/warehouse-core/pipeline"
	"meridian/internal/shared/records"
)

func TestMergeLogsConflictWithResolvedPrimaryValue(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", ingested)
	seedRecord(module, "claims", "facility", "K1",
		map[string]string{"rating": "70", "status": "active"}, "batch-1", ingested)

	if _, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	conflicts, err := module.Store.ListConflicts(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("list conflicts failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %v", len(conflicts), conflicts)
	}
	entry := conflicts[0]
	if entry.Field != "rating" {
		t.Fatalf("expected rating conflict, got %q", entry.Field)
	}
	if entry.SourceAValue != "50" || entry.SourceBValue != "70" || entry.ResolvedValue != "50" {
		t.Fatalf("unexpected conflict values: %+v", entry)
	}
	if entry.ResolutionRule != records.ResolutionPreferPrimary {
		t.Fatalf("expected prefer_primary_source rule, got %q", entry.ResolutionRule)
	}
	if entry.EntityID != "K1" || entry.EntryID == "" {
		t.Fatalf("expected identified audit row, got %+v", entry)
	}
}

func TestMergeReplayKeepsSingleConflictEntry(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", ingested)
	seedRecord(module, "claims", "facility", "K1",
		map[string]string{"rating": "70", "status": "active"}, "batch-1", ingested)

	if _, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	replay, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.Conflicts != 1 {
		t.Fatalf("expected replay to report the same conflict, got %d", replay.Conflicts)
	}

	conflicts, err := module.Store.ListConflicts(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("list conflicts failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly one conflict entry per (entity, field, batch) after replay, got %d", len(conflicts))
	}
	if conflicts[0].Field != "rating" || conflicts[0].EntityID != "K1" {
		t.Fatalf("unexpected surviving conflict entry: %+v", conflicts[0])
	}
}

func TestMergeSingleSourceKeyTakesThatSourcesValues(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "claims", "facility", "K2",
		map[string]string{"rating": "70", "status": "closed"}, "batch-1", ingested)

	report, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Conflicts != 0 {
		t.Fatalf("expected no conflicts for a single-source key, got %d", report.Conflicts)
	}

	entries, _ := module.Store.ListCrosswalk(context.Background(), "facility", "batch-1")
	if entries[0].MatchMethod != records.MatchSourceBOnly || entries[0].Confidence != records.ConfidenceSingle {
		t.Fatalf("expected SOURCE_B_ONLY at confidence 90, got %+v", entries[0])
	}
	if entries[0].SourceARef != nil || entries[0].SourceBRef == nil {
		t.Fatalf("expected only source B ref populated, got %+v", entries[0])
	}

	merged, _ := module.Store.ListMerged(context.Background(), "facility", "batch-1")
	if merged[0].Attributes["rating"] != "70" {
		t.Fatalf("expected fallback to source B value, got %q", merged[0].Attributes["rating"])
	}
	if merged[0].Attributes["status"] != "CLOSED" {
		t.Fatalf("expected normalized status, got %q", merged[0].Attributes["status"])
	}
}

func TestMergeBuildsDerivedComposite(t *testing.T) {
	p := testPolicy()
	module := pipeline.NewInMemoryModule(p, nil, nil)
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", ingested)
	if _, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1"); err != nil {
		t.Fatalf("facility run failed: %v", err)
	}

	seedRecord(module, "registry", "veteran", "V1",
		map[string]string{"first_name": " Ana ", "last_name": "SILVA", "rating": "80"}, "batch-1", ingested)
	if _, err := module.Service.ProcessBatch(context.Background(), "veteran", "batch-1"); err != nil {
		t.Fatalf("veteran run failed: %v", err)
	}

	merged, _ := module.Store.ListMerged(context.Background(), "veteran", "batch-1")
	if merged[0].Attributes["full_name"] != "ana silva" {
		t.Fatalf("expected derived full_name from folded parts, got %q", merged[0].Attributes["full_name"])
	}
}

func TestMergeMissingCriticalFieldLowersScore(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	// No name in either source: one missing issue, score loses its weight.
	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "status": "active"}, "batch-1", ingested)

	if _, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	merged, _ := module.Store.ListMerged(context.Background(), "facility", "batch-1")
	if merged[0].DQScore != 70 {
		t.Fatalf("expected score 70, got %d", merged[0].DQScore)
	}
	if len(merged[0].DQIssues) != 1 || merged[0].DQIssues[0] != "missing:name" {
		t.Fatalf("expected single missing:name issue, got %v", merged[0].DQIssues)
	}
}
