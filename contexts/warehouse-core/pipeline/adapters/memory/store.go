package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "meridian/contexts/warehouse-core/pipeline/domain/errors"
	"meridian/contexts/warehouse-core/pipeline/ports"
	scderrors "meridian/contexts/warehouse-core/scd-historizer/domain/errors"
	"meridian/internal/shared/records"

	"github.com/google/uuid"
)

// Store is the whole warehouse in memory: it satisfies every storage port of
// the crosswalk, merge, historizer and pipeline modules, plus Clock and
// IDGenerator, so the full pipeline runs without postgres in tests.
type Store struct {
	mu sync.Mutex

	sources    []records.SourceRecord
	crosswalk  map[string][]records.CrosswalkEntry
	merged     map[string][]records.MergedRecord
	conflicts  []records.ConflictLogEntry
	dimensions []records.DimensionVersion
	runs       map[string]ports.Run

	now *time.Time
}

func NewStore() *Store {
	return &Store{
		crosswalk: make(map[string][]records.CrosswalkEntry),
		merged:    make(map[string][]records.MergedRecord),
		runs:      make(map[string]ports.Run),
	}
}

func batchKey(entityType string, batchID string) string {
	return strings.TrimSpace(entityType) + "|" + strings.TrimSpace(batchID)
}

// SeedSourceRecords loads raw upstream rows; the source adapter is read-only
// input in production, so tests seed it directly.
func (s *Store) SeedSourceRecords(recs ...records.SourceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, recs...)
}

// SetNow pins the clock for deterministic tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned := now.UTC()
	s.now = &pinned
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now != nil {
		return *s.now
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) ListSourceRecords(
	_ context.Context,
	entityType string,
	sourceSystem string,
	since time.Time,
) ([]records.SourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.SourceRecord
	for _, rec := range s.sources {
		if rec.EntityType != entityType || rec.SourceSystem != sourceSystem {
			continue
		}
		if rec.IngestedAt.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) ReplaceCrosswalk(
	_ context.Context,
	entityType string,
	batchID string,
	entries []records.CrosswalkEntry,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crosswalk[batchKey(entityType, batchID)] = append([]records.CrosswalkEntry(nil), entries...)
	return nil
}

func (s *Store) ListCrosswalk(_ context.Context, entityType string, batchID string) ([]records.CrosswalkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]records.CrosswalkEntry(nil), s.crosswalk[batchKey(entityType, batchID)]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].MasterID < entries[j].MasterID })
	return entries, nil
}

func (s *Store) HasCrosswalkEntries(_ context.Context, entityType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entries := range s.crosswalk {
		if strings.HasPrefix(key, strings.TrimSpace(entityType)+"|") && len(entries) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ReplaceMerged(
	_ context.Context,
	entityType string,
	batchID string,
	merged []records.MergedRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merged[batchKey(entityType, batchID)] = append([]records.MergedRecord(nil), merged...)
	return nil
}

func (s *Store) ListMerged(_ context.Context, entityType string, batchID string) ([]records.MergedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := append([]records.MergedRecord(nil), s.merged[batchKey(entityType, batchID)]...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].MasterID < merged[j].MasterID })
	return merged, nil
}

// AppendConflict keeps at most one entry per (entity_type, entity_id,
// batch_id, field), mirroring the unique index of the postgres adapter so
// batch replays never duplicate audit rows.
func (s *Store) AppendConflict(_ context.Context, entry records.ConflictLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conflicts {
		if existing.EntityType == entry.EntityType &&
			existing.EntityID == entry.EntityID &&
			existing.BatchID == entry.BatchID &&
			existing.Field == entry.Field {
			return nil
		}
	}
	s.conflicts = append(s.conflicts, entry)
	return nil
}

func (s *Store) ListConflicts(_ context.Context, entityType string, batchID string) ([]records.ConflictLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.ConflictLogEntry
	for _, entry := range s.conflicts {
		if entry.EntityType != strings.TrimSpace(entityType) {
			continue
		}
		if strings.TrimSpace(batchID) != "" && entry.BatchID != strings.TrimSpace(batchID) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Field < out[j].Field
	})
	return out, nil
}

func (s *Store) CurrentVersions(_ context.Context, entityType string, masterID string) ([]records.DimensionVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.DimensionVersion
	for _, version := range s.dimensions {
		if version.EntityType == entityType && version.MasterID == masterID && version.IsCurrent {
			out = append(out, version)
		}
	}
	return out, nil
}

func (s *Store) OpenFirstVersion(_ context.Context, version records.DimensionVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions = append(s.dimensions, version)
	return nil
}

// SupersedeVersion closes and inserts under one lock hold, mirroring the
// single-transaction guarantee of the postgres adapter.
func (s *Store) SupersedeVersion(
	_ context.Context,
	closeVersionID string,
	closedAt time.Time,
	next records.DimensionVersion,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.dimensions {
		if s.dimensions[i].VersionID == closeVersionID && s.dimensions[i].IsCurrent {
			s.dimensions[i].IsCurrent = false
			s.dimensions[i].EffectiveEnd = closedAt
			s.dimensions = append(s.dimensions, next)
			return nil
		}
	}
	return scderrors.ErrVersionNotFound
}

func (s *Store) ListVersionHistory(_ context.Context, entityType string, masterID string) ([]records.DimensionVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.DimensionVersion
	for _, version := range s.dimensions {
		if version.EntityType == entityType && version.MasterID == masterID {
			out = append(out, version)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveStart.Before(out[j].EffectiveStart) })
	return out, nil
}

func (s *Store) BeginRun(_ context.Context, run ports.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.runs {
		if existing.EntityType == run.EntityType && existing.Status == ports.RunStatusRunning {
			return fmt.Errorf("%w: entity_type=%s run_id=%s", domainerrors.ErrRunActive, run.EntityType, existing.RunID)
		}
	}
	s.runs[run.RunID] = run
	return nil
}

func (s *Store) FinishRun(
	_ context.Context,
	runID string,
	status string,
	rowCount int,
	errMessage string,
	finishedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return domainerrors.ErrRunNotFound
	}
	run.Status = status
	run.RowCount = rowCount
	run.Error = errMessage
	run.FinishedAt = &finishedAt
	s.runs[runID] = run
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (ports.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[strings.TrimSpace(runID)]
	if !ok {
		return ports.Run{}, domainerrors.ErrRunNotFound
	}
	return run, nil
}
