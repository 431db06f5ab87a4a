package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/field-merge-engine/domain/errors"
	"meridian/contexts/warehouse-core/field-merge-engine/domain/quality"
	"meridian/contexts/warehouse-core/field-merge-engine/ports"
	"meridian/internal/shared/policy"
	"meridian/internal/shared/records"
)

type Service struct {
	Sources   ports.SourceReader
	Crosswalk ports.CrosswalkReader
	Merged    ports.MergedStore
	Conflicts ports.ConflictLog
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// MergeBatch resolves one canonical attribute set per master identifier in the
// batch, under the injected system-of-record policy: each field takes the
// configured primary source's value, falling back to the other source when the
// primary is null. Tracked-field disagreements are logged once each to the
// append-only conflict log; the primary value is always the one kept. Aborts
// with ErrCrosswalkNotReady rather than succeeding silently on empty input.
func (s Service) MergeBatch(
	ctx context.Context,
	input ports.MergeInput,
	entity policy.EntityPolicy,
) (ports.MergeResult, error) {
	batchID := strings.TrimSpace(input.BatchID)
	if batchID == "" {
		return ports.MergeResult{}, fmt.Errorf("%w: entity_type=%s", domainerrors.ErrEmptyBatchID, input.EntityType)
	}

	entries, err := s.Crosswalk.ListCrosswalk(ctx, input.EntityType, batchID)
	if err != nil {
		return ports.MergeResult{}, fmt.Errorf("list crosswalk batch entity_type=%s batch_id=%s: %w", input.EntityType, batchID, err)
	}
	if len(entries) == 0 {
		return ports.MergeResult{}, fmt.Errorf("%w: entity_type=%s batch_id=%s", domainerrors.ErrCrosswalkNotReady, input.EntityType, batchID)
	}

	now := s.now()
	since := now.AddDate(0, 0, -input.WindowDays)

	rawA, err := s.Sources.ListSourceRecords(ctx, input.EntityType, entity.SourceA, since)
	if err != nil {
		return ports.MergeResult{}, fmt.Errorf("list %s source records: %w", entity.SourceA, err)
	}
	rawB, err := s.Sources.ListSourceRecords(ctx, input.EntityType, entity.SourceB, since)
	if err != nil {
		return ports.MergeResult{}, fmt.Errorf("list %s source records: %w", entity.SourceB, err)
	}
	latestA, _ := records.CollapseLatest(rawA)
	latestB, _ := records.CollapseLatest(rawB)

	fields := make([]string, 0, len(entity.Fields))
	for field := range entity.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	tracked := make(map[string]struct{}, len(entity.Tracked))
	for _, field := range entity.Tracked {
		tracked[field] = struct{}{}
	}

	result := ports.MergeResult{}
	merged := make([]records.MergedRecord, 0, len(entries))
	for _, entry := range entries {
		recA, inA := latestA[entry.MasterID]
		recB, inB := latestB[entry.MasterID]

		attrs := make(map[string]string, len(fields))
		var conflictFields []string

		for _, field := range fields {
			rule := entity.Fields[field]
			var valueA, valueB string
			if inA {
				valueA = records.NormalizeValue(recA.Attributes[field], rule.Normalize)
			}
			if inB {
				valueB = records.NormalizeValue(recB.Attributes[field], rule.Normalize)
			}

			primary, fallback := valueA, valueB
			if rule.Primary == entity.SourceB {
				primary, fallback = valueB, valueA
			}
			resolved := primary
			if resolved == "" {
				resolved = fallback
			}
			if resolved != "" {
				attrs[field] = resolved
			}

			if _, isTracked := tracked[field]; !isTracked {
				continue
			}
			if valueA == "" || valueB == "" || valueA == valueB {
				continue
			}
			if err := s.logConflict(ctx, input.EntityType, batchID, entry.MasterID, field, valueA, valueB, resolved, now); err != nil {
				return ports.MergeResult{}, err
			}
			conflictFields = append(conflictFields, field)
			result.Conflicts++
		}

		for _, derived := range entity.Derived {
			separator := derived.Separator
			if separator == "" {
				separator = " "
			}
			parts := make([]string, 0, len(derived.Parts))
			for _, part := range derived.Parts {
				if value := attrs[part]; value != "" {
					parts = append(parts, value)
				}
			}
			if len(parts) > 0 {
				attrs[derived.Field] = strings.Join(parts, separator)
			}
		}

		score, issues := quality.Score(attrs, entity.Critical)
		merged = append(merged, records.MergedRecord{
			EntityType:     input.EntityType,
			BatchID:        batchID,
			MasterID:       entry.MasterID,
			Attributes:     attrs,
			Fingerprint:    records.Fingerprint(attrs, entity.Tracked),
			DQScore:        score,
			DQIssues:       issues,
			ConflictFields: conflictFields,
		})
	}

	if err := s.Merged.ReplaceMerged(ctx, input.EntityType, batchID, merged); err != nil {
		return ports.MergeResult{}, fmt.Errorf("replace merged batch entity_type=%s batch_id=%s: %w", input.EntityType, batchID, err)
	}
	result.Merged = len(merged)

	resolveLogger(s.Logger).Info("merge batch resolved",
		"event", "merge_batch_resolved",
		"module", "warehouse-core/field-merge-engine",
		"layer", "application",
		"entity_type", input.EntityType,
		"batch_id", batchID,
		"merged", result.Merged,
		"conflicts", result.Conflicts,
	)
	return result, nil
}

func (s Service) logConflict(
	ctx context.Context,
	entityType string,
	batchID string,
	masterID string,
	field string,
	valueA string,
	valueB string,
	resolved string,
	at time.Time,
) error {
	entryID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrConflictLogFailure, err)
	}
	entry := records.ConflictLogEntry{
		EntryID:        entryID,
		EntityType:     entityType,
		EntityID:       masterID,
		BatchID:        batchID,
		Field:          field,
		SourceAValue:   valueA,
		SourceBValue:   valueB,
		ResolvedValue:  resolved,
		ResolutionRule: records.ResolutionPreferPrimary,
		LoggedAt:       at,
	}
	if err := s.Conflicts.AppendConflict(ctx, entry); err != nil {
		return fmt.Errorf("%w: entity_type=%s batch_id=%s field=%s: %v", domainerrors.ErrConflictLogFailure, entityType, batchID, field, err)
	}
	return nil
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
