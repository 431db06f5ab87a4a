package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	crosswalkports "meridian/contexts/warehouse-core/crosswalk-builder/ports"
	mergeports "meridian/contexts/warehouse-core/field-merge-engine/ports"
	domainerrors "meridian/contexts/warehouse-core/pipeline/domain/errors"
	"meridian/contexts/warehouse-core/pipeline/ports"
	scdports "meridian/contexts/warehouse-core/scd-historizer/ports"
	"meridian/internal/shared/policy"
)

// CrosswalkBuilder, FieldMerger and Historizer are the three pipeline stages,
// satisfied by the sibling modules' application services.
type CrosswalkBuilder interface {
	BuildCrosswalk(ctx context.Context, input crosswalkports.BuildInput) (crosswalkports.BuildResult, error)
}

type FieldMerger interface {
	MergeBatch(ctx context.Context, input mergeports.MergeInput, entity policy.EntityPolicy) (mergeports.MergeResult, error)
}

type Historizer interface {
	Historize(ctx context.Context, entityType string, batchID string) (scdports.HistorizeResult, error)
}

type Service struct {
	Policy    policy.Policy
	Crosswalk CrosswalkBuilder
	Merge     FieldMerger
	Historize Historizer
	Runs      ports.RunStore
	Deps      ports.DependencyProbe
	Bus       ports.EventPublisher
	Observer  ports.RunObserver
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// ProcessBatch drives one (entity_type, batch_id) through crosswalk, merge and
// historization. Retrying the same batch id is idempotent: crosswalk and merge
// replace their output wholesale and historization compares fingerprints. A
// failed step marks the run failed before the error escalates, so the external
// scheduler never consumes partial output.
func (s Service) ProcessBatch(ctx context.Context, entityType string, batchID string) (ports.RunReport, error) {
	entityType = strings.TrimSpace(entityType)
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return ports.RunReport{}, fmt.Errorf("%w: entity_type=%s", domainerrors.ErrEmptyBatchID, entityType)
	}
	entity, ok := s.Policy.Entity(entityType)
	if !ok {
		return ports.RunReport{}, fmt.Errorf("%w: entity_type=%s", domainerrors.ErrUnknownEntityType, entityType)
	}

	for _, dep := range entity.DependsOn {
		ready, err := s.Deps.HasCrosswalkEntries(ctx, dep)
		if err != nil {
			return ports.RunReport{}, fmt.Errorf("probe dependency %s: %w", dep, err)
		}
		if !ready {
			return ports.RunReport{}, fmt.Errorf("%w: entity_type=%s batch_id=%s dependency=%s",
				domainerrors.ErrDependencyNotReady, entityType, batchID, dep)
		}
	}

	runID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.RunReport{}, fmt.Errorf("allocate run id: %w", err)
	}
	started := s.now()
	if err := s.Runs.BeginRun(ctx, ports.Run{
		RunID:      runID,
		EntityType: entityType,
		BatchID:    batchID,
		Status:     ports.RunStatusRunning,
		StartedAt:  started,
	}); err != nil {
		return ports.RunReport{}, fmt.Errorf("begin run entity_type=%s batch_id=%s: %w", entityType, batchID, err)
	}

	report, runErr := s.execute(ctx, entity, entityType, batchID)
	report.RunID = runID
	report.EntityType = entityType
	report.BatchID = batchID

	finished := s.now()
	duration := finished.Sub(started)

	if runErr != nil {
		report.Status = ports.RunStatusFailed
		if err := s.Runs.FinishRun(ctx, runID, ports.RunStatusFailed, 0, runErr.Error(), finished); err != nil {
			resolveLogger(s.Logger).Error("failed to record run failure",
				"event", "pipeline_run_finish_failed",
				"module", "warehouse-core/pipeline",
				"layer", "application",
				"run_id", runID,
				"error", err.Error(),
			)
		}
		s.publish(ctx, ports.EventRunFailed, report, finished)
		s.observe(entityType, ports.RunStatusFailed, duration, report)
		resolveLogger(s.Logger).Error("pipeline run failed",
			"event", "pipeline_run_failed",
			"module", "warehouse-core/pipeline",
			"layer", "application",
			"run_id", runID,
			"entity_type", entityType,
			"batch_id", batchID,
			"error", runErr.Error(),
		)
		return report, runErr
	}

	report.Status = ports.RunStatusSucceeded
	if err := s.Runs.FinishRun(ctx, runID, ports.RunStatusSucceeded, report.RowCount, "", finished); err != nil {
		return report, fmt.Errorf("finish run entity_type=%s batch_id=%s: %w", entityType, batchID, err)
	}
	s.publish(ctx, ports.EventRunCompleted, report, finished)
	s.observe(entityType, ports.RunStatusSucceeded, duration, report)

	resolveLogger(s.Logger).Info("pipeline run completed",
		"event", "pipeline_run_completed",
		"module", "warehouse-core/pipeline",
		"layer", "application",
		"run_id", runID,
		"entity_type", entityType,
		"batch_id", batchID,
		"row_count", report.RowCount,
		"conflicts", report.Conflicts,
		"versions_opened", report.VersionsOpened,
		"versions_superseded", report.VersionsSuperseded,
	)
	return report, nil
}

// GetRun returns one run from the registry.
func (s Service) GetRun(ctx context.Context, runID string) (ports.Run, error) {
	run, err := s.Runs.GetRun(ctx, strings.TrimSpace(runID))
	if err != nil {
		return ports.Run{}, err
	}
	return run, nil
}

func (s Service) execute(
	ctx context.Context,
	entity policy.EntityPolicy,
	entityType string,
	batchID string,
) (ports.RunReport, error) {
	report := ports.RunReport{}
	window := entity.Window(s.Policy.WindowDays)

	crosswalk, err := s.Crosswalk.BuildCrosswalk(ctx, crosswalkports.BuildInput{
		EntityType: entityType,
		BatchID:    batchID,
		SourceA:    entity.SourceA,
		SourceB:    entity.SourceB,
		WindowDays: window,
	})
	if err != nil {
		return report, err
	}
	report.CrosswalkEntries = crosswalk.Entries
	report.OrphanRecords = len(crosswalk.Orphans)

	merge, err := s.Merge.MergeBatch(ctx, mergeports.MergeInput{
		EntityType: entityType,
		BatchID:    batchID,
		WindowDays: window,
	}, entity)
	if err != nil {
		return report, err
	}
	report.Conflicts = merge.Conflicts
	report.RowCount = merge.Merged

	historized, err := s.Historize.Historize(ctx, entityType, batchID)
	if err != nil {
		return report, err
	}
	report.VersionsOpened = historized.Opened
	report.VersionsSuperseded = historized.Superseded
	report.VersionsUnchanged = historized.Unchanged
	return report, nil
}

func (s Service) publish(ctx context.Context, eventType string, report ports.RunReport, at time.Time) {
	if s.Bus == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		eventID = report.RunID
	}
	if err := s.Bus.Publish(ctx, eventType, ports.Envelope{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: at,
		EntityType: report.EntityType,
		BatchID:    report.BatchID,
		RunID:      report.RunID,
		Status:     report.Status,
		RowCount:   report.RowCount,
	}); err != nil {
		resolveLogger(s.Logger).Warn("run event publish failed",
			"event", "pipeline_event_publish_failed",
			"module", "warehouse-core/pipeline",
			"layer", "application",
			"run_id", report.RunID,
			"error", err.Error(),
		)
	}
}

func (s Service) observe(entityType string, status string, duration time.Duration, report ports.RunReport) {
	if s.Observer == nil {
		return
	}
	s.Observer.ObserveRun(entityType, status, duration, report)
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
