package ports

import (
	"context"
	"time"

	"meridian/internal/shared/records"
)

type SourceReader interface {
	ListSourceRecords(ctx context.Context, entityType string, sourceSystem string, since time.Time) ([]records.SourceRecord, error)
}

type CrosswalkReader interface {
	ListCrosswalk(ctx context.Context, entityType string, batchID string) ([]records.CrosswalkEntry, error)
}

// MergedStore owns the merged staging table. ReplaceMerged is delete-then-insert
// scoped to (entity_type, batch_id).
type MergedStore interface {
	ReplaceMerged(ctx context.Context, entityType string, batchID string, merged []records.MergedRecord) error
	ListMerged(ctx context.Context, entityType string, batchID string) ([]records.MergedRecord, error)
}

// ConflictLog is append-only by construction: the port offers no update or
// delete. Every logged entry is permanent audit trail. Implementations must
// dedupe on (entity_type, entity_id, batch_id, field) so replaying a batch
// that re-detects the same disagreement leaves a single entry.
type ConflictLog interface {
	AppendConflict(ctx context.Context, entry records.ConflictLogEntry) error
}

// ConflictLogReader serves the reconciliation audit surface.
type ConflictLogReader interface {
	ListConflicts(ctx context.Context, entityType string, batchID string) ([]records.ConflictLogEntry, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// MergeInput identifies one merge pass. Policy is injected per call.
type MergeInput struct {
	EntityType string
	BatchID    string
	WindowDays int
}

// MergeResult summarizes one merge pass.
type MergeResult struct {
	Merged    int
	Conflicts int
}
