package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/field-merge-engine/domain/errors"
	"meridian/internal/shared/records"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) ReplaceMerged(
	ctx context.Context,
	entityType string,
	batchID string,
	merged []records.MergedRecord,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("entity_type = ?", strings.TrimSpace(entityType)).
			Where("batch_id = ?", strings.TrimSpace(batchID)).
			Delete(&mergedModel{}).Error; err != nil {
			return err
		}
		if len(merged) == 0 {
			return nil
		}
		rows := make([]mergedModel, 0, len(merged))
		for _, record := range merged {
			row, err := mergedModelFromRecord(record)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return r.logError("merge_repo_replace_batch_failed", err,
			"entity_type", entityType,
			"batch_id", batchID,
		)
	}
	return nil
}

func (r *Repository) ListMerged(ctx context.Context, entityType string, batchID string) ([]records.MergedRecord, error) {
	var rows []mergedModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ?", strings.TrimSpace(entityType)).
		Where("batch_id = ?", strings.TrimSpace(batchID)).
		Order("master_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("merge_repo_list_batch_failed", err,
			"entity_type", entityType,
			"batch_id", batchID,
		)
	}
	out := make([]records.MergedRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, r.logError("merge_repo_decode_merged_failed", err,
				"entity_type", entityType,
				"batch_id", batchID,
			)
		}
		out = append(out, record)
	}
	return out, nil
}

// AppendConflict inserts one reconciliation row. The repository exposes no update or
// delete path for this table. The table carries a unique index on
// (entity_type, entity_id, batch_id, field); a replayed batch re-detecting the
// same disagreement inserts nothing, so one conflict exists per
// (entity, field, batch) no matter how often the batch runs.
func (r *Repository) AppendConflict(ctx context.Context, entry records.ConflictLogEntry) error {
	row := conflictModelFromEntry(entry)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "batch_id"},
			{Name: "field"},
		},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflictLogFailure
		}
		return r.logError("merge_repo_append_conflict_failed", err,
			"entity_type", entry.EntityType,
			"batch_id", entry.BatchID,
			"field", entry.Field,
		)
	}
	return nil
}

func (r *Repository) ListConflicts(ctx context.Context, entityType string, batchID string) ([]records.ConflictLogEntry, error) {
	tx := r.db.WithContext(ctx).Model(&conflictModel{}).
		Where("entity_type = ?", strings.TrimSpace(entityType))
	if strings.TrimSpace(batchID) != "" {
		tx = tx.Where("batch_id = ?", strings.TrimSpace(batchID))
	}
	var rows []conflictModel
	if err := tx.Order("logged_at ASC, entity_id ASC, field ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("merge_repo_list_conflicts_failed", err,
			"entity_type", entityType,
			"batch_id", batchID,
		)
	}
	out := make([]records.ConflictLogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntry())
	}
	return out, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "warehouse-core/field-merge-engine",
		"layer", "adapter/postgres",
		"error", err.Error(),
	}, args...)
	r.logger.Error("merge repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type mergedModel struct {
	EntityType     string `gorm:"column:entity_type;primaryKey"`
	BatchID        string `gorm:"column:batch_id;primaryKey"`
	MasterID       string `gorm:"column:master_id;primaryKey"`
	Attributes     string `gorm:"column:attributes"`
	Fingerprint    string `gorm:"column:fingerprint_hash"`
	DQScore        int    `gorm:"column:dq_score"`
	DQIssues       string `gorm:"column:dq_issues"`
	ConflictFields string `gorm:"column:conflict_fields"`
}

func (mergedModel) TableName() string {
	return "merged_entities"
}

func mergedModelFromRecord(record records.MergedRecord) (mergedModel, error) {
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return mergedModel{}, err
	}
	issues, err := json.Marshal(record.DQIssues)
	if err != nil {
		return mergedModel{}, err
	}
	conflicts, err := json.Marshal(record.ConflictFields)
	if err != nil {
		return mergedModel{}, err
	}
	return mergedModel{
		EntityType:     strings.TrimSpace(record.EntityType),
		BatchID:        strings.TrimSpace(record.BatchID),
		MasterID:       strings.TrimSpace(record.MasterID),
		Attributes:     string(attrs),
		Fingerprint:    record.Fingerprint,
		DQScore:        record.DQScore,
		DQIssues:       string(issues),
		ConflictFields: string(conflicts),
	}, nil
}

func (m mergedModel) toRecord() (records.MergedRecord, error) {
	record := records.MergedRecord{
		EntityType:  m.EntityType,
		BatchID:     m.BatchID,
		MasterID:    m.MasterID,
		Fingerprint: m.Fingerprint,
		DQScore:     m.DQScore,
	}
	if strings.TrimSpace(m.Attributes) != "" {
		if err := json.Unmarshal([]byte(m.Attributes), &record.Attributes); err != nil {
			return records.MergedRecord{}, err
		}
	}
	if strings.TrimSpace(m.DQIssues) != "" {
		if err := json.Unmarshal([]byte(m.DQIssues), &record.DQIssues); err != nil {
			return records.MergedRecord{}, err
		}
	}
	if strings.TrimSpace(m.ConflictFields) != "" {
		if err := json.Unmarshal([]byte(m.ConflictFields), &record.ConflictFields); err != nil {
			return records.MergedRecord{}, err
		}
	}
	return record, nil
}

type conflictModel struct {
	EntryID        string    `gorm:"column:id;primaryKey"`
	EntityType     string    `gorm:"column:entity_type"`
	EntityID       string    `gorm:"column:entity_id"`
	BatchID        string    `gorm:"column:batch_id"`
	Field          string    `gorm:"column:field"`
	SourceAValue   string    `gorm:"column:source_a_value"`
	SourceBValue   string    `gorm:"column:source_b_value"`
	ResolvedValue  string    `gorm:"column:resolved_value"`
	ResolutionRule string    `gorm:"column:resolution_rule"`
	LoggedAt       time.Time `gorm:"column:logged_at"`
}

func (conflictModel) TableName() string {
	return "reconciliation_log"
}

func conflictModelFromEntry(entry records.ConflictLogEntry) conflictModel {
	return conflictModel{
		EntryID:        strings.TrimSpace(entry.EntryID),
		EntityType:     strings.TrimSpace(entry.EntityType),
		EntityID:       strings.TrimSpace(entry.EntityID),
		BatchID:        strings.TrimSpace(entry.BatchID),
		Field:          entry.Field,
		SourceAValue:   entry.SourceAValue,
		SourceBValue:   entry.SourceBValue,
		ResolvedValue:  entry.ResolvedValue,
		ResolutionRule: entry.ResolutionRule,
		LoggedAt:       entry.LoggedAt,
	}
}

func (m conflictModel) toEntry() records.ConflictLogEntry {
	return records.ConflictLogEntry{
		EntryID:        m.EntryID,
		EntityType:     m.EntityType,
		EntityID:       m.EntityID,
		BatchID:        m.BatchID,
		Field:          m.Field,
		SourceAValue:   m.SourceAValue,
		SourceBValue:   m.SourceBValue,
		ResolvedValue:  m.ResolvedValue,
		ResolutionRule: m.ResolutionRule,
		LoggedAt:       m.LoggedAt.UTC(),
	}
}
