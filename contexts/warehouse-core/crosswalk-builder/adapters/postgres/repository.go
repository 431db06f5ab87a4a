package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/crosswalk-builder/domain/errors"
	"meridian/internal/shared/records"

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

func (r *Repository) ListSourceRecords(
	ctx context.Context,
	entityType string,
	sourceSystem string,
	since time.Time,
) ([]records.SourceRecord, error) {
	var rows []sourceRecordModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ?", strings.TrimSpace(entityType)).
		Where("source_system = ?", strings.TrimSpace(sourceSystem)).
		Where("ingested_at >= ?", since).
		Order("ingested_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("crosswalk_repo_list_source_records_failed", err,
			"entity_type", entityType,
			"source_system", sourceSystem,
		)
	}

	out := make([]records.SourceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, r.logError("crosswalk_repo_decode_source_record_failed", err,
				"entity_type", entityType,
				"source_system", sourceSystem,
			)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReplaceCrosswalk deletes and re-inserts the batch's crosswalk rows in one
// transaction, so a retried batch never leaves duplicate or partial output.
func (r *Repository) ReplaceCrosswalk(
	ctx context.Context,
	entityType string,
	batchID string,
	entries []records.CrosswalkEntry,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("entity_type = ?", strings.TrimSpace(entityType)).
			Where("batch_id = ?", strings.TrimSpace(batchID)).
			Delete(&crosswalkModel{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]crosswalkModel, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, crosswalkModelFromEntry(entry))
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrReplaceConflict
		}
		return r.logError("crosswalk_repo_replace_batch_failed", err,
			"entity_type", entityType,
			"batch_id", batchID,
		)
	}
	return nil
}

func (r *Repository) ListCrosswalk(ctx context.Context, entityType string, batchID string) ([]records.CrosswalkEntry, error) {
	var rows []crosswalkModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ?", strings.TrimSpace(entityType)).
		Where("batch_id = ?", strings.TrimSpace(batchID)).
		Order("master_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("crosswalk_repo_list_batch_failed", err,
			"entity_type", entityType,
			"batch_id", batchID,
		)
	}
	entries := make([]records.CrosswalkEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

func (r *Repository) HasCrosswalkEntries(ctx context.Context, entityType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&crosswalkModel{}).
		Where("entity_type = ?", strings.TrimSpace(entityType)).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, r.logError("crosswalk_repo_has_entries_failed", err, "entity_type", entityType)
	}
	return count > 0, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "warehouse-core/crosswalk-builder",
		"layer", "adapter/postgres",
		"error", err.Error(),
	}, args...)
	r.logger.Error("crosswalk repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type sourceRecordModel struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	EntityType   string    `gorm:"column:entity_type"`
	SourceSystem string    `gorm:"column:source_system"`
	NaturalKey   string    `gorm:"column:natural_key"`
	Attributes   string    `gorm:"column:attributes"`
	BatchID      string    `gorm:"column:batch_id"`
	IngestedAt   time.Time `gorm:"column:ingested_at"`
}

func (sourceRecordModel) TableName() string {
	return "source_records"
}

func (m sourceRecordModel) toRecord() (records.SourceRecord, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(m.Attributes) != "" {
		if err := json.Unmarshal([]byte(m.Attributes), &attrs); err != nil {
			return records.SourceRecord{}, err
		}
	}
	return records.SourceRecord{
		EntityType:   m.EntityType,
		SourceSystem: m.SourceSystem,
		NaturalKey:   m.NaturalKey,
		Attributes:   attrs,
		BatchID:      m.BatchID,
		IngestedAt:   m.IngestedAt.UTC(),
	}, nil
}

type crosswalkModel struct {
	EntityType  string  `gorm:"column:entity_type;primaryKey"`
	BatchID     string  `gorm:"column:batch_id;primaryKey"`
	MasterID    string  `gorm:"column:master_id;primaryKey"`
	SourceARef  *string `gorm:"column:source_a_ref"`
	SourceBRef  *string `gorm:"column:source_b_ref"`
	Confidence  int     `gorm:"column:confidence"`
	MatchMethod string  `gorm:"column:match_method"`
}

func (crosswalkModel) TableName() string {
	return "entity_crosswalk"
}

func crosswalkModelFromEntry(entry records.CrosswalkEntry) crosswalkModel {
	return crosswalkModel{
		EntityType:  strings.TrimSpace(entry.EntityType),
		BatchID:     strings.TrimSpace(entry.BatchID),
		MasterID:    strings.TrimSpace(entry.MasterID),
		SourceARef:  entry.SourceARef,
		SourceBRef:  entry.SourceBRef,
		Confidence:  entry.Confidence,
		MatchMethod: entry.MatchMethod,
	}
}

func (m crosswalkModel) toEntry() records.CrosswalkEntry {
	return records.CrosswalkEntry{
		EntityType:  m.EntityType,
		BatchID:     m.BatchID,
		MasterID:    m.MasterID,
		SourceARef:  m.SourceARef,
		SourceBRef:  m.SourceBRef,
		Confidence:  m.Confidence,
		MatchMethod: m.MatchMethod,
	}
}
