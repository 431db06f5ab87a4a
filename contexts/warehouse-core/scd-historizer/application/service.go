package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/scd-historizer/domain/errors"
	"meridian/contexts/warehouse-core/scd-historizer/ports"
	"meridian/internal/shared/records"
)

type Service struct {
	Merged ports.MergedReader
	Store  ports.DimensionStore
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Historize runs the per-master-id state machine over one merged batch:
// a first-seen master opens a current version; a changed fingerprint closes
// the current row and opens its successor in one atomic store operation; an
// unchanged fingerprint writes nothing, which is what makes batch replays
// idempotent. Finding two current rows is a logic defect, not data variance,
// and halts the pass with ErrIntegrityViolation.
func (s Service) Historize(ctx context.Context, entityType string, batchID string) (ports.HistorizeResult, error) {
	trimmed := strings.TrimSpace(batchID)
	if trimmed == "" {
		return ports.HistorizeResult{}, fmt.Errorf("%w: entity_type=%s", domainerrors.ErrEmptyBatchID, entityType)
	}

	merged, err := s.Merged.ListMerged(ctx, entityType, trimmed)
	if err != nil {
		return ports.HistorizeResult{}, fmt.Errorf("list merged batch entity_type=%s batch_id=%s: %w", entityType, trimmed, err)
	}
	if len(merged) == 0 {
		return ports.HistorizeResult{}, fmt.Errorf("%w: entity_type=%s batch_id=%s", domainerrors.ErrMergeNotReady, entityType, trimmed)
	}

	now := s.now()
	result := ports.HistorizeResult{}
	for _, record := range merged {
		current, err := s.Store.CurrentVersions(ctx, entityType, record.MasterID)
		if err != nil {
			return ports.HistorizeResult{}, fmt.Errorf("load current version entity_type=%s master_id=%s: %w", entityType, record.MasterID, err)
		}
		if len(current) > 1 {
			return ports.HistorizeResult{}, fmt.Errorf("%w: entity_type=%s master_id=%s count=%d",
				domainerrors.ErrIntegrityViolation, entityType, record.MasterID, len(current))
		}

		switch {
		case len(current) == 0:
			version, err := s.newVersion(ctx, record, now)
			if err != nil {
				return ports.HistorizeResult{}, err
			}
			if err := s.Store.OpenFirstVersion(ctx, version); err != nil {
				return ports.HistorizeResult{}, fmt.Errorf("open first version entity_type=%s master_id=%s: %w", entityType, record.MasterID, err)
			}
			result.Opened++
		case current[0].Fingerprint == record.Fingerprint:
			result.Unchanged++
		default:
			version, err := s.newVersion(ctx, record, now)
			if err != nil {
				return ports.HistorizeResult{}, err
			}
			if err := s.Store.SupersedeVersion(ctx, current[0].VersionID, now, version); err != nil {
				return ports.HistorizeResult{}, fmt.Errorf("supersede version entity_type=%s master_id=%s: %w", entityType, record.MasterID, err)
			}
			result.Superseded++
		}
	}

	resolveLogger(s.Logger).Info("dimension batch historized",
		"event", "dimension_batch_historized",
		"module", "warehouse-core/scd-historizer",
		"layer", "application",
		"entity_type", entityType,
		"batch_id", trimmed,
		"opened", result.Opened,
		"superseded", result.Superseded,
		"unchanged", result.Unchanged,
	)
	return result, nil
}

func (s Service) newVersion(ctx context.Context, record records.MergedRecord, at time.Time) (records.DimensionVersion, error) {
	versionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return records.DimensionVersion{}, fmt.Errorf("allocate version id master_id=%s: %w", record.MasterID, err)
	}
	return records.DimensionVersion{
		VersionID:      versionID,
		EntityType:     record.EntityType,
		MasterID:       record.MasterID,
		Attributes:     record.Attributes,
		Fingerprint:    record.Fingerprint,
		EffectiveStart: at,
		EffectiveEnd:   records.OpenEndedEffectiveEnd,
		IsCurrent:      true,
	}, nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
