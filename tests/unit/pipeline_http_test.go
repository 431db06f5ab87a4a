package unit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	pipeline "meridian/contexts/warehouse-core/pipeline"
	pipelineerrors "meridian/contexts/warehouse-core/pipeline/domain/errors"
	httptransport "meridian/contexts/warehouse-core/pipeline/transport/http"
)

func TestRunBatchHandlerReturnsReport(t *testing.T) {
	module := pipeline.NewInMemoryModule(testPolicy(), nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	module.Store.SetNow(pinnedNow())
	seedRecord(module, "registry", "facility", "K1",
		map[string]string{"rating": "50", "name": "Alpha", "status": "active"}, "batch-1", pinnedNow().Add(-time.Hour))

	resp, err := module.Handler.RunBatchHandler(context.Background(), httptransport.RunRequest{
		EntityType: "facility",
		BatchID:    "batch-1",
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if resp.Status != "success" || resp.Data.RowCount != 1 || resp.Data.EntityType != "facility" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRunBatchHandlerLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	module := pipeline.NewInMemoryModule(testPolicy(), nil, logger)

	_, err := module.Handler.RunBatchHandler(context.Background(), httptransport.RunRequest{
		EntityType: "facility",
		BatchID:    "",
	})
	if !errors.Is(err, pipelineerrors.ErrEmptyBatchID) {
		t.Fatalf("expected empty batch rejection, got %v", err)
	}
	if !strings.Contains(buf.String(), "pipeline_http_run_failed") {
		t.Fatalf("expected handler failure log, got: %s", buf.String())
	}
}
