package ports

import (
	"context"
	"time"

	"meridian/internal/shared/records"
)

type MergedReader interface {
	ListMerged(ctx context.Context, entityType string, batchID string) ([]records.MergedRecord, error)
}

// DimensionStore owns the versioned dimension table. SupersedeVersion must close the
// existing current row and insert its replacement atomically: no observable
// instant may show zero or two current rows for a master identifier.
type DimensionStore interface {
	CurrentVersions(ctx context.Context, entityType string, masterID string) ([]records.DimensionVersion, error)
	OpenFirstVersion(ctx context.Context, version records.DimensionVersion) error
	SupersedeVersion(ctx context.Context, closeVersionID string, closedAt time.Time, next records.DimensionVersion) error
	ListVersionHistory(ctx context.Context, entityType string, masterID string) ([]records.DimensionVersion, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// HistorizeResult summarizes one historization pass.
type HistorizeResult struct {
	Opened     int
	Superseded int
	Unchanged  int
}
