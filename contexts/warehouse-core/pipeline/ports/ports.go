package ports

import (
	"context"
	"time"

	"meridian/internal/shared/records"
)

// Run statuses in the pipeline_runs registry.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one ProcessBatch invocation. A run row in status running doubles as
// the per-entity-type lock: Begin refuses a second concurrent run for the same
// entity type, which is what keeps overlapping batches serialized.
type Run struct {
	RunID      string
	EntityType string
	BatchID    string
	Status     string
	RowCount   int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

type RunStore interface {
	BeginRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID string, status string, rowCount int, errMessage string, finishedAt time.Time) error
	GetRun(ctx context.Context, runID string) (Run, error)
}

// DependencyProbe answers whether an entity type's crosswalk exists yet, used
// to gate runs whose merge references other entity types.
type DependencyProbe interface {
	HasCrosswalkEntries(ctx context.Context, entityType string) (bool, error)
}

// Envelope is the run lifecycle event published on the in-process bus.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	EntityType string    `json:"entity_type"`
	BatchID    string    `json:"batch_id"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	RowCount   int       `json:"row_count"`
}

// Run lifecycle event types.
const (
	EventRunCompleted = "pipeline.run.completed"
	EventRunFailed    = "pipeline.run.failed"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Envelope) error
}

// RunObserver receives run outcomes for instrumentation. Implementations live
// at the platform edge (prometheus); a nil observer is ignored.
type RunObserver interface {
	ObserveRun(entityType string, status string, duration time.Duration, report RunReport)
}

// ConflictAuditReader serves the reconciliation audit endpoint.
type ConflictAuditReader interface {
	ListConflicts(ctx context.Context, entityType string, batchID string) ([]records.ConflictLogEntry, error)
}

// DimensionHistoryReader serves the version history endpoint.
type DimensionHistoryReader interface {
	ListVersionHistory(ctx context.Context, entityType string, masterID string) ([]records.DimensionVersion, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// RunReport is the caller-facing summary of one ProcessBatch invocation.
type RunReport struct {
	RunID              string
	EntityType         string
	BatchID            string
	Status             string
	RowCount           int
	CrosswalkEntries   int
	Conflicts          int
	VersionsOpened     int
	VersionsSuperseded int
	VersionsUnchanged  int
	OrphanRecords      int
}
