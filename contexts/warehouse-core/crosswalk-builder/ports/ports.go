package ports

import (
	"context"
	"time"

	"meridian/internal/shared/records"
)

// SourceReader supplies one source system's raw records for an entity type,
// bounded to the rolling recency window. The source adapter behind it is
// read-only input; the pipeline never writes source records.
type SourceReader interface {
	ListSourceRecords(ctx context.Context, entityType string, sourceSystem string, since time.Time) ([]records.SourceRecord, error)
}

// CrosswalkStore owns the entity_crosswalk table. ReplaceCrosswalk is
// delete-then-insert scoped to (entity_type, batch_id) so replays are
// idempotent and never leave partial output.
type CrosswalkStore interface {
	ReplaceCrosswalk(ctx context.Context, entityType string, batchID string, entries []records.CrosswalkEntry) error
	ListCrosswalk(ctx context.Context, entityType string, batchID string) ([]records.CrosswalkEntry, error)
	HasCrosswalkEntries(ctx context.Context, entityType string) (bool, error)
}

type Clock interface {
	Now() time.Time
}

// BuildInput identifies one crosswalk build.
type BuildInput struct {
	EntityType string
	BatchID    string
	SourceA    string
	SourceB    string
	WindowDays int
}

// OrphanIssue reports a record excluded from matching for lack of a natural key.
type OrphanIssue struct {
	SourceSystem string
	BatchID      string
	IngestedAt   time.Time
}

// BuildResult summarizes one crosswalk build.
type BuildResult struct {
	Entries     int
	BothExact   int
	SourceAOnly int
	SourceBOnly int
	Orphans     []OrphanIssue
}
