package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/crosswalk-builder/domain/errors"
	"meridian/contexts/warehouse-core/crosswalk-builder/ports"
	"meridian/internal/shared/records"
)

type Service struct {
	Sources   ports.SourceReader
	Crosswalk ports.CrosswalkStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

// BuildCrosswalk collapses each source to one record per natural key, outer-
// matches the keys across the two sources, and atomically replaces the batch's
// crosswalk rows. Keys present in both sources get confidence 100, keys in
// exactly one get 90. Records without a natural key become orphan issues.
func (s Service) BuildCrosswalk(ctx context.Context, input ports.BuildInput) (ports.BuildResult, error) {
	batchID := strings.TrimSpace(input.BatchID)
	if batchID == "" {
		return ports.BuildResult{}, fmt.Errorf("%w: entity_type=%s", domainerrors.ErrEmptyBatchID, input.EntityType)
	}
	if strings.TrimSpace(input.SourceA) == "" || strings.TrimSpace(input.SourceB) == "" {
		return ports.BuildResult{}, fmt.Errorf("%w: entity_type=%s", domainerrors.ErrUnknownEntity, input.EntityType)
	}

	since := s.now().AddDate(0, 0, -input.WindowDays)

	rawA, err := s.Sources.ListSourceRecords(ctx, input.EntityType, input.SourceA, since)
	if err != nil {
		return ports.BuildResult{}, fmt.Errorf("list %s source records: %w", input.SourceA, err)
	}
	rawB, err := s.Sources.ListSourceRecords(ctx, input.EntityType, input.SourceB, since)
	if err != nil {
		return ports.BuildResult{}, fmt.Errorf("list %s source records: %w", input.SourceB, err)
	}

	latestA, orphansA := records.CollapseLatest(rawA)
	latestB, orphansB := records.CollapseLatest(rawB)

	keys := make(map[string]struct{}, len(latestA)+len(latestB))
	for key := range latestA {
		keys[key] = struct{}{}
	}
	for key := range latestB {
		keys[key] = struct{}{}
	}
	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	result := ports.BuildResult{}
	entries := make([]records.CrosswalkEntry, 0, len(ordered))
	for _, key := range ordered {
		_, inA := latestA[key]
		_, inB := latestB[key]

		entry := records.CrosswalkEntry{
			EntityType: input.EntityType,
			BatchID:    batchID,
			MasterID:   key,
		}
		switch {
		case inA && inB:
			entry.SourceARef = ref(key)
			entry.SourceBRef = ref(key)
			entry.Confidence = records.ConfidenceBoth
			entry.MatchMethod = records.MatchBothExact
			result.BothExact++
		case inA:
			entry.SourceARef = ref(key)
			entry.Confidence = records.ConfidenceSingle
			entry.MatchMethod = records.MatchSourceAOnly
			result.SourceAOnly++
		default:
			entry.SourceBRef = ref(key)
			entry.Confidence = records.ConfidenceSingle
			entry.MatchMethod = records.MatchSourceBOnly
			result.SourceBOnly++
		}
		entries = append(entries, entry)
	}

	if err := s.Crosswalk.ReplaceCrosswalk(ctx, input.EntityType, batchID, entries); err != nil {
		return ports.BuildResult{}, fmt.Errorf("replace crosswalk batch entity_type=%s batch_id=%s: %w", input.EntityType, batchID, err)
	}

	result.Entries = len(entries)
	result.Orphans = append(orphanIssues(orphansA), orphanIssues(orphansB)...)
	for _, orphan := range result.Orphans {
		resolveLogger(s.Logger).Warn("source record excluded from matching",
			"event", "crosswalk_orphan_record",
			"module", "warehouse-core/crosswalk-builder",
			"layer", "application",
			"entity_type", input.EntityType,
			"batch_id", batchID,
			"source_system", orphan.SourceSystem,
		)
	}

	resolveLogger(s.Logger).Info("crosswalk batch built",
		"event", "crosswalk_batch_built",
		"module", "warehouse-core/crosswalk-builder",
		"layer", "application",
		"entity_type", input.EntityType,
		"batch_id", batchID,
		"entries", result.Entries,
		"both_exact", result.BothExact,
		"source_a_only", result.SourceAOnly,
		"source_b_only", result.SourceBOnly,
		"orphans", len(result.Orphans),
	)
	return result, nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func orphanIssues(orphans []records.SourceRecord) []ports.OrphanIssue {
	issues := make([]ports.OrphanIssue, 0, len(orphans))
	for _, rec := range orphans {
		issues = append(issues, ports.OrphanIssue{
			SourceSystem: rec.SourceSystem,
			BatchID:      rec.BatchID,
			IngestedAt:   rec.IngestedAt,
		})
	}
	return issues
}

func ref(key string) *string {
	value := key
	return &value
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
