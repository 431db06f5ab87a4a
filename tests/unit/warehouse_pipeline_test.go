package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	mergeerrors "meridian/contexts/warehouse-core/field-merge-engine/domain/errors"
	pipeline "meridian/contexts/warehouse-core/pipeline"
	pipelineerrors "meridian/contexts/warehouse-core/pipeline/domain/errors"
	"meridian/contexts/warehouse-core/pipeline/ports"
	httptransport "meridian/contexts/warehouse-core/pipeline/transport/http"
	"meridian/internal/shared/policy"
	"meridian/internal/shared/records"
)

func floatPtr(v float64) *float64 {
	return &v
}

func testPolicy() policy.Policy {
	return policy.Policy{
		WindowDays: 90,
		Entities: map[string]policy.EntityPolicy{
			"facility": {
				EntityType: "facility",
				SourceA:    "registry",
				SourceB:    "claims",
				Fields: map[string]policy.FieldRule{
					"rating": {Primary: "registry"},
					"name":   {Primary: "registry", Normalize: "fold"},
					"status": {Primary: "claims", Normalize: "upper"},
				},
				Tracked: []string{"name", "rating", "status"},
				Critical: []policy.CriticalField{
					{Field: "rating", Weight: 40, Min: floatPtr(0), Max: floatPtr(100)},
					{Field: "name", Weight: 30},
					{Field: "status", Weight: 30, OneOf: []string{"ACTIVE", "CLOSED"}},
				},
			},
			"veteran": {
				EntityType: "veteran",
				SourceA:    "registry",
				SourceB:    "claims",
				DependsOn:  []string{"facility"},
				Fields: map[string]policy.FieldRule{
					"first_name": {Primary: "registry", Normalize: "fold"},
					"last_name":  {Primary: "registry", Normalize: "fold"},
					"rating":     {Primary: "registry"},
				},
				Derived: []policy.DerivedField{
					{Field: "full_name", Parts: []string{"first_name", "last_name"}},
				},
				Tracked: []string{"first_name", "last_name", "rating"},
			},
		},
	}
}

func pinnedNow() time.Time {
	return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
}

func newTestModule() pipeline.Module {
	return pipeline.NewInMemoryModule(testPolicy(), nil, nil)
}

func seedRecord(
	module pipeline.Module,
	source string,
	entityType string,
	key string,
	attrs map[string]string,
	batchID string,
	at time.Time,
) {
	module.Store.SeedSourceRecords(records.SourceRecord{
		EntityType:   entityType,
		SourceSystem: source,
		NaturalKey:   key,
		Attributes:   attrs,
		BatchID:      batchID,
		IngestedAt:   at,
	})
}

func TestPipelineRunResolvesBatchEndToEnd(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha  Clinic", "status": "active"}, "batch-1", ingested)
	seedRecord(module, "claims", "facility", "K1",
		map[string]string{"rating": "70", "status": "Active"}, "batch-1", ingested)

	resp, err := module.Handler.RunBatchHandler(context.Background(), httptransport.RunRequest{
		EntityType: "facility",
		BatchID:    "batch-1",
	})
	if err != nil {
		t.Fatalf("run batch failed: %v", err)
	}
	report := resp.Data
	if report.Status != ports.RunStatusSucceeded {
		t.Fatalf("expected succeeded run, got %q", report.Status)
	}
	if report.CrosswalkEntries != 1 || report.RowCount != 1 {
		t.Fatalf("expected one crosswalk entry and one merged row, got %+v", report)
	}
	if report.Conflicts != 1 {
		t.Fatalf("expected exactly one conflict (rating), got %d", report.Conflicts)
	}
	if report.VersionsOpened != 1 || report.VersionsSuperseded != 0 {
		t.Fatalf("expected one opened version, got %+v", report)
	}

	entries, err := module.Store.ListCrosswalk(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("list crosswalk failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 crosswalk entry, got %d", len(entries))
	}
	if entries[0].Confidence != records.ConfidenceBoth || entries[0].MatchMethod != records.MatchBothExact {
		t.Fatalf("expected BOTH_EXACT at confidence 100, got %+v", entries[0])
	}

	merged, err := module.Store.ListMerged(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("list merged failed: %v", err)
	}
	attrs := merged[0].Attributes
	if attrs["rating"] != "50" {
		t.Fatalf("expected primary source rating 50, got %q", attrs["rating"])
	}
	if attrs["name"] != "alpha clinic" {
		t.Fatalf("expected folded name, got %q", attrs["name"])
	}
	if attrs["status"] != "ACTIVE" {
		t.Fatalf("expected uppercased status, got %q", attrs["status"])
	}
	if merged[0].DQScore != 100 {
		t.Fatalf("expected full quality score, got %d", merged[0].DQScore)
	}

	run, err := module.Service.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	if run.Status != ports.RunStatusSucceeded || run.RowCount != 1 {
		t.Fatalf("unexpected run registry row: %+v", run)
	}
	if run.FinishedAt == nil {
		t.Fatalf("expected finished run to carry a finish time")
	}
}

func TestPipelineRunFailsWhenNoSourceRecords(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())

	report, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-empty")
	if !errors.Is(err, mergeerrors.ErrCrosswalkNotReady) {
		t.Fatalf("expected crosswalk-not-ready failure, got %v", err)
	}
	if report.Status != ports.RunStatusFailed {
		t.Fatalf("expected failed report, got %q", report.Status)
	}

	run, err := module.Service.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	if run.Status != ports.RunStatusFailed || run.Error == "" {
		t.Fatalf("expected failed run with recorded error, got %+v", run)
	}
}

func TestPipelineRejectsEmptyBatchAndUnknownEntity(t *testing.T) {
	module := newTestModule()

	if _, err := module.Service.ProcessBatch(context.Background(), "facility", "  "); !errors.Is(err, pipelineerrors.ErrEmptyBatchID) {
		t.Fatalf("expected empty batch id error, got %v", err)
	}
	if _, err := module.Service.ProcessBatch(context.Background(), "unknown", "batch-1"); !errors.Is(err, pipelineerrors.ErrUnknownEntityType) {
		t.Fatalf("expected unknown entity type error, got %v", err)
	}
}

func TestPipelineDependencyGate(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "registry", "veteran", "V1",
		map[string]string{"first_name": "Ana", "last_name": "Silva", "rating": "80"}, "batch-1", ingested)

	_, err := module.Service.ProcessBatch(context.Background(), "veteran", "batch-1")
	if !errors.Is(err, pipelineerrors.ErrDependencyNotReady) {
		t.Fatalf("expected dependency gate to reject the run, got %v", err)
	}

	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", ingested)
	if _, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1"); err != nil {
		t.Fatalf("facility run failed: %v", err)
	}

	report, err := module.Service.ProcessBatch(context.Background(), "veteran", "batch-1")
	if err != nil {
		t.Fatalf("veteran run failed after dependency satisfied: %v", err)
	}
	if report.RowCount != 1 {
		t.Fatalf("expected one merged veteran, got %d", report.RowCount)
	}
}

func TestPipelineSerializesRunsPerEntityType(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)
	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", ingested)

	if err := module.Store.BeginRun(context.Background(), ports.Run{
		RunID:      "run-held",
		EntityType: "facility",
		BatchID:    "batch-0",
		Status:     ports.RunStatusRunning,
		StartedAt:  pinnedNow(),
	}); err != nil {
		t.Fatalf("seed running run failed: %v", err)
	}

	_, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1")
	if !errors.Is(err, pipelineerrors.ErrRunActive) {
		t.Fatalf("expected run lock rejection, got %v", err)
	}
}
