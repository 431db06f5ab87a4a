package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "meridian/contexts/warehouse-core/scd-historizer/domain/errors"
	"meridian/internal/shared/records"

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

func (r *Repository) CurrentVersions(ctx context.Context, entityType string, masterID string) ([]records.DimensionVersion, error) {
	var rows []dimensionModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ?", strings.TrimSpace(entityType)).
		Where("master_id = ?", strings.TrimSpace(masterID)).
		Where("is_current = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("scd_repo_current_versions_failed", err,
			"entity_type", entityType,
			"master_id", masterID,
		)
	}
	return toVersions(rows)
}

func (r *Repository) OpenFirstVersion(ctx context.Context, version records.DimensionVersion) error {
	row, err := dimensionModelFromVersion(version)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("scd_repo_open_first_failed", err,
			"entity_type", version.EntityType,
			"master_id", version.MasterID,
		)
	}
	return nil
}

// SupersedeVersion closes the current row and inserts its replacement in one
// transaction, locking the closing row so concurrent historizers of the same
// master id cannot both open a successor.
func (r *Repository) SupersedeVersion(
	ctx context.Context,
	closeVersionID string,
	closedAt time.Time,
	next records.DimensionVersion,
) error {
	nextRow, err := dimensionModelFromVersion(next)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current dimensionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", strings.TrimSpace(closeVersionID)).
			Where("is_current = ?", true).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrVersionNotFound
			}
			return err
		}
		update := tx.Model(&dimensionModel{}).
			Where("id = ?", current.VersionID).
			Updates(map[string]any{
				"effective_end": closedAt,
				"is_current":    false,
			})
		if update.Error != nil {
			return update.Error
		}
		return tx.Create(&nextRow).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVersionNotFound) {
			return err
		}
		return r.logError("scd_repo_supersede_failed", err,
			"entity_type", next.EntityType,
			"master_id", next.MasterID,
			"closed_version_id", closeVersionID,
		)
	}
	return nil
}

func (r *Repository) ListVersionHistory(ctx context.Context, entityType string, masterID string) ([]records.DimensionVersion, error) {
	var rows []dimensionModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ?", strings.TrimSpace(entityType)).
		Where("master_id = ?", strings.TrimSpace(masterID)).
		Order("effective_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("scd_repo_list_history_failed", err,
			"entity_type", entityType,
			"master_id", masterID,
		)
	}
	return toVersions(rows)
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "warehouse-core/scd-historizer",
		"layer", "adapter/postgres",
		"error", err.Error(),
	}, args...)
	r.logger.Error("dimension repository operation failed", fields...)
	return err
}

type dimensionModel struct {
	VersionID      string    `gorm:"column:id;primaryKey"`
	EntityType     string    `gorm:"column:entity_type"`
	MasterID       string    `gorm:"column:master_id"`
	Attributes     string    `gorm:"column:attributes"`
	Fingerprint    string    `gorm:"column:fingerprint_hash"`
	EffectiveStart time.Time `gorm:"column:effective_start"`
	EffectiveEnd   time.Time `gorm:"column:effective_end"`
	IsCurrent      bool      `gorm:"column:is_current"`
}

func (dimensionModel) TableName() string {
	return "dim_entity_versions"
}

func dimensionModelFromVersion(version records.DimensionVersion) (dimensionModel, error) {
	attrs, err := json.Marshal(version.Attributes)
	if err != nil {
		return dimensionModel{}, err
	}
	return dimensionModel{
		VersionID:      strings.TrimSpace(version.VersionID),
		EntityType:     strings.TrimSpace(version.EntityType),
		MasterID:       strings.TrimSpace(version.MasterID),
		Attributes:     string(attrs),
		Fingerprint:    version.Fingerprint,
		EffectiveStart: version.EffectiveStart,
		EffectiveEnd:   version.EffectiveEnd,
		IsCurrent:      version.IsCurrent,
	}, nil
}

func toVersions(rows []dimensionModel) ([]records.DimensionVersion, error) {
	out := make([]records.DimensionVersion, 0, len(rows))
	for _, row := range rows {
		version := records.DimensionVersion{
			VersionID:      row.VersionID,
			EntityType:     row.EntityType,
			MasterID:       row.MasterID,
			Fingerprint:    row.Fingerprint,
			EffectiveStart: row.EffectiveStart.UTC(),
			EffectiveEnd:   row.EffectiveEnd.UTC(),
			IsCurrent:      row.IsCurrent,
		}
		if strings.TrimSpace(row.Attributes) != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &version.Attributes); err != nil {
				return nil, err
			}
		}
		out = append(out, version)
	}
	return out, nil
}
