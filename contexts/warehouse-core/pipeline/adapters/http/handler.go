package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"meridian/contexts/warehouse-core/pipeline/application"
	"meridian/contexts/warehouse-core/pipeline/ports"
	httptransport "meridian/contexts/warehouse-core/pipeline/transport/http"
)

type Handler struct {
	Service    application.Service
	Conflicts  ports.ConflictAuditReader
	Dimensions ports.DimensionHistoryReader
	Logger     *slog.Logger
}

func (h Handler) RunBatchHandler(ctx context.Context, req httptransport.RunRequest) (httptransport.RunResponse, error) {
	logger := resolveLogger(h.Logger)
	logger.Debug("run batch request received",
		"event", "pipeline_http_run_received",
		"module", "warehouse-core/pipeline",
		"layer", "transport",
		"entity_type", req.EntityType,
		"batch_id", req.BatchID,
	)

	report, err := h.Service.ProcessBatch(ctx, req.EntityType, req.BatchID)
	if err != nil {
		logger.Error("run batch request failed",
			"event", "pipeline_http_run_failed",
			"module", "warehouse-core/pipeline",
			"layer", "transport",
			"entity_type", req.EntityType,
			"batch_id", req.BatchID,
			"error", err,
		)
		return httptransport.RunResponse{}, err
	}
	return httptransport.RunResponse{
		Status: "success",
		Data:   toReportDTO(report),
	}, nil
}

func (h Handler) GetRunHandler(ctx context.Context, runID string) (httptransport.RunStatusResponse, error) {
	run, err := h.Service.GetRun(ctx, runID)
	if err != nil {
		resolveLogger(h.Logger).Error("run lookup failed",
			"event", "pipeline_http_get_run_failed",
			"module", "warehouse-core/pipeline",
			"layer", "transport",
			"run_id", runID,
			"error", err,
		)
		return httptransport.RunStatusResponse{}, err
	}
	dto := httptransport.RunDTO{
		RunID:      run.RunID,
		EntityType: run.EntityType,
		BatchID:    run.BatchID,
		Status:     run.Status,
		RowCount:   run.RowCount,
		Error:      run.Error,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return httptransport.RunStatusResponse{
		Status: "success",
		Data:   dto,
	}, nil
}

func (h Handler) ListConflictsHandler(
	ctx context.Context,
	entityType string,
	batchID string,
) (httptransport.ConflictListResponse, error) {
	entries, err := h.Conflicts.ListConflicts(ctx, entityType, batchID)
	if err != nil {
		resolveLogger(h.Logger).Error("conflict listing failed",
			"event", "pipeline_http_list_conflicts_failed",
			"module", "warehouse-core/pipeline",
			"layer", "transport",
			"entity_type", entityType,
			"batch_id", batchID,
			"error", err,
		)
		return httptransport.ConflictListResponse{}, err
	}
	resp := httptransport.ConflictListResponse{
		Status: "success",
		Data:   make([]httptransport.ConflictDTO, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Data = append(resp.Data, httptransport.ConflictDTO{
			EntryID:        entry.EntryID,
			EntityType:     entry.EntityType,
			EntityID:       entry.EntityID,
			BatchID:        entry.BatchID,
			Field:          entry.Field,
			SourceAValue:   entry.SourceAValue,
			SourceBValue:   entry.SourceBValue,
			ResolvedValue:  entry.ResolvedValue,
			ResolutionRule: entry.ResolutionRule,
			LoggedAt:       entry.LoggedAt.Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (h Handler) GetHistoryHandler(
	ctx context.Context,
	entityType string,
	masterID string,
) (httptransport.HistoryResponse, error) {
	versions, err := h.Dimensions.ListVersionHistory(ctx, entityType, masterID)
	if err != nil {
		resolveLogger(h.Logger).Error("version history lookup failed",
			"event", "pipeline_http_get_history_failed",
			"module", "warehouse-core/pipeline",
			"layer", "transport",
			"entity_type", entityType,
			"master_id", masterID,
			"error", err,
		)
		return httptransport.HistoryResponse{}, err
	}
	resp := httptransport.HistoryResponse{
		Status: "success",
		Data:   make([]httptransport.DimensionVersionDTO, 0, len(versions)),
	}
	for _, version := range versions {
		resp.Data = append(resp.Data, httptransport.DimensionVersionDTO{
			VersionID:      version.VersionID,
			EntityType:     version.EntityType,
			MasterID:       version.MasterID,
			Attributes:     version.Attributes,
			Fingerprint:    version.Fingerprint,
			EffectiveStart: version.EffectiveStart.Format(time.RFC3339),
			EffectiveEnd:   version.EffectiveEnd.Format(time.RFC3339),
			IsCurrent:      version.IsCurrent,
		})
	}
	return resp, nil
}

func toReportDTO(report ports.RunReport) httptransport.RunReportDTO {
	return httptransport.RunReportDTO{
		RunID:              report.RunID,
		EntityType:         report.EntityType,
		BatchID:            report.BatchID,
		Status:             report.Status,
		RowCount:           report.RowCount,
		CrosswalkEntries:   report.CrosswalkEntries,
		Conflicts:          report.Conflicts,
		VersionsOpened:     report.VersionsOpened,
		VersionsSuperseded: report.VersionsSuperseded,
		VersionsUnchanged:  report.VersionsUnchanged,
		OrphanRecords:      report.OrphanRecords,
	}
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
