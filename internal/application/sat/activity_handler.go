package sat

import (
	"context"

	"go.uber.org/zap"

	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
	"github.com/mxsuite/backend/internal/infrastructure/logger"
)

// SyncActivityHandler records the lifecycle of download requests in the
// application log. It is the audit trail operators grep when a period
// never finishes syncing.
type SyncActivityHandler struct {
	logger *zap.Logger
}

// NewSyncActivityHandler creates a new SyncActivityHandler
func NewSyncActivityHandler(logger *zap.Logger) *SyncActivityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncActivityHandler{logger: logger.Named("sync_activity")}
}

// EventTypes implements shared.EventHandler
func (h *SyncActivityHandler) EventTypes() []string {
	return []string{
		sat.EventDownloadRequestCreated,
		sat.EventPackageRequested,
		sat.EventDownloadCompleted,
		sat.EventDownloadFailed,
		sat.EventDownloadPaused,
		sat.EventRequestReset,
		sat.EventDocumentsImported,
	}
}

// Handle implements shared.EventHandler
func (h *SyncActivityHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("request_id", event.AggregateID().String()),
	}
	if rid := logger.GetRequestID(ctx); rid != "" {
		fields = append(fields, zap.String("http_request_id", rid))
	}

	switch e := event.(type) {
	case *sat.DownloadRequestCreatedEvent:
		h.logger.Info("download request created",
			append(fields,
				zap.String("direction", e.Direction.String()),
				zap.Time("period_start", e.PeriodStart),
				zap.Time("period_end", e.PeriodEnd),
			)...)
	case *sat.PackageRequestedEvent:
		h.logger.Info("package request accepted",
			append(fields, zap.String("remote_request_id", e.RemoteRequestID))...)
	case *sat.DownloadCompletedEvent:
		h.logger.Info("download completed",
			append(fields,
				zap.Int("total_documents", e.TotalDocuments),
				zap.Int("error_documents", e.ErrorDocuments),
			)...)
	case *sat.DownloadFailedEvent:
		if e.Permanent {
			h.logger.Error("download failed permanently",
				append(fields,
					zap.Int("retry_count", e.RetryCount),
					zap.String("message", e.Message),
				)...)
		} else {
			h.logger.Warn("download step failed",
				append(fields,
					zap.Int("retry_count", e.RetryCount),
					zap.String("message", e.Message),
				)...)
		}
	case *sat.DownloadPausedEvent:
		pausedFields := append(fields, zap.String("throttle_kind", string(e.ThrottleKind)))
		if e.ResumeAt != nil {
			pausedFields = append(pausedFields, zap.Time("resume_at", *e.ResumeAt))
		}
		h.logger.Warn("download paused by quota", pausedFields...)
	case *sat.RequestResetEvent:
		h.logger.Info("request reset for retry", fields...)
	case *sat.DocumentsImportedEvent:
		h.logger.Info("staged documents imported",
			append(fields,
				zap.Int("inserted", e.Inserted),
				zap.Int("duplicates", e.Duplicates),
				zap.Int("errors", e.Errors),
			)...)
	default:
		h.logger.Debug("download event", fields...)
	}
	return nil
}

// Compile-time interface compliance check
var _ shared.EventHandler = (*SyncActivityHandler)(nil)
