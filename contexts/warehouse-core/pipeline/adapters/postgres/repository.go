package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/pipeline/domain/errors"
	"meridian/contexts/warehouse-core/pipeline/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// BeginRun registers a run and enforces the per-entity-type serialization the
// historizer depends on. The transaction takes an advisory lock keyed on the
// entity type, so two concurrent callers cannot both observe "no running run"
// and insert.
func (r *Repository) BeginRun(ctx context.Context, run ports.Run) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", strings.TrimSpace(run.EntityType)).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&runModel{}).
			Where("entity_type = ?", strings.TrimSpace(run.EntityType)).
			Where("status = ?", ports.RunStatusRunning).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domainerrors.ErrRunActive
		}
		row := runModelFromRun(run)
		return tx.Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrRunActive) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrRunActive
		}
		return r.logError("pipeline_repo_begin_run_failed", err,
			"entity_type", run.EntityType,
			"batch_id", run.BatchID,
		)
	}
	return nil
}

func (r *Repository) FinishRun(
	ctx context.Context,
	runID string,
	status string,
	rowCount int,
	errMessage string,
	finishedAt time.Time,
) error {
	update := r.db.WithContext(ctx).Model(&runModel{}).
		Where("id = ?", strings.TrimSpace(runID)).
		Updates(map[string]any{
			"status":      status,
			"row_count":   rowCount,
			"error":       errMessage,
			"finished_at": finishedAt,
		})
	if update.Error != nil {
		return r.logError("pipeline_repo_finish_run_failed", update.Error, "run_id", runID)
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrRunNotFound
	}
	return nil
}

func (r *Repository) GetRun(ctx context.Context, runID string) (ports.Run, error) {
	var row runModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(runID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Run{}, domainerrors.ErrRunNotFound
		}
		return ports.Run{}, r.logError("pipeline_repo_get_run_failed", err, "run_id", runID)
	}
	return row.toRun(), nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "warehouse-core/pipeline",
		"layer", "adapter/postgres",
		"error", err.Error(),
	}, args...)
	r.logger.Error("pipeline repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type runModel struct {
	RunID      string     `gorm:"column:id;primaryKey"`
	EntityType string     `gorm:"column:entity_type"`
	BatchID    string     `gorm:"column:batch_id"`
	Status     string     `gorm:"column:status"`
	RowCount   int        `gorm:"column:row_count"`
	Error      string     `gorm:"column:error"`
	StartedAt  time.Time  `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (runModel) TableName() string {
	return "pipeline_runs"
}

func runModelFromRun(run ports.Run) runModel {
	return runModel{
		RunID:      strings.TrimSpace(run.RunID),
		EntityType: strings.TrimSpace(run.EntityType),
		BatchID:    strings.TrimSpace(run.BatchID),
		Status:     run.Status,
		RowCount:   run.RowCount,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func (m runModel) toRun() ports.Run {
	return ports.Run{
		RunID:      m.RunID,
		EntityType: m.EntityType,
		BatchID:    m.BatchID,
		Status:     m.Status,
		RowCount:   m.RowCount,
		Error:      m.Error,
		StartedAt:  m.StartedAt.UTC(),
		FinishedAt: m.FinishedAt,
	}
}
