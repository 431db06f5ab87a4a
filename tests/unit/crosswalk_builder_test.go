package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	crosswalkapp "meridian/contexts/warehouse-core/crosswalk-builder/application"
	crosswalkerrors "meridian/contexts/warehouse-core/crosswalk-builder/domain/errors"
	crosswalkports "meridian/contexts/warehouse-core/crosswalk-builder/ports"
	"meridian/contexts/warehouse-core/pipeline/adapters/memory"
)

func TestBuildCrosswalkRejectsEntityWithoutSources(t *testing.T) {
	store := memory.NewStore()
	service := crosswalkapp.Service{Sources: store, Crosswalk: store, Clock: store}

	_, err := service.BuildCrosswalk(context.Background(), crosswalkports.BuildInput{
		EntityType: "facility",
		BatchID:    "batch-1",
		WindowDays: 90,
	})
	if !errors.Is(err, crosswalkerrors.ErrUnknownEntity) {
		t.Fatalf("expected unknown entity rejection, got %v", err)
	}
}

func TestBuildCrosswalkReportsOrphansWithoutFailing(t *testing.T) {
	module := newTestModule()
	module.Store.SetNow(pinnedNow())
	ingested := pinnedNow().Add(-time.Hour)

	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", ingested)
	seedRecord(module, "registry", "facility", "",
		map[string]string{"rating": "60"}, "batch-1", ingested)

	report, err := module.Service.ProcessBatch(context.Background(), "facility", "batch-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.OrphanRecords != 1 {
		t.Fatalf("expected one orphan record, got %d", report.OrphanRecords)
	}
	if report.CrosswalkEntries != 1 {
		t.Fatalf("expected keyless record to stay out of the crosswalk, got %d entries", report.CrosswalkEntries)
	}
}
