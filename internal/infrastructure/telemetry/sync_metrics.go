package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by the sync metrics
var (
	AttrSyncAction  = attribute.Key("sync.action")
	AttrSyncOutcome = attribute.Key("sync.outcome")
)

// SyncMetrics tracks download sync activity: jobs started, jobs
// finished per outcome, and documents landed in the staging area.
// It satisfies the application layer's metrics port.
type SyncMetrics struct {
	jobsStarted     metric.Int64Counter
	jobsCompleted   metric.Int64Counter
	documentsStaged metric.Int64Counter
}

// NewSyncMetrics creates the sync instrument set on the given meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	jobsStarted, err := meter.Int64Counter(
		"sat_sync_jobs_started_total",
		metric.WithDescription("Total number of download sync jobs started"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync jobs started counter: %w", err)
	}

	jobsCompleted, err := meter.Int64Counter(
		"sat_sync_jobs_completed_total",
		metric.WithDescription("Total number of download sync jobs finished, by outcome"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync jobs completed counter: %w", err)
	}

	documentsStaged, err := meter.Int64Counter(
		"sat_documents_staged_total",
		metric.WithDescription("Total number of downloaded documents placed in the staging area"),
		metric.WithUnit("{documents}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged documents counter: %w", err)
	}

	return &SyncMetrics{
		jobsStarted:     jobsStarted,
		jobsCompleted:   jobsCompleted,
		documentsStaged: documentsStaged,
	}, nil
}

// JobStarted records that a sync job began executing
func (m *SyncMetrics) JobStarted(ctx context.Context, action string) {
	m.jobsStarted.Add(ctx, 1, metric.WithAttributes(AttrSyncAction.String(action)))
}

// JobCompleted records a finished sync job and its outcome
func (m *SyncMetrics) JobCompleted(ctx context.Context, action, outcome string) {
	m.jobsCompleted.Add(ctx, 1, metric.WithAttributes(
		AttrSyncAction.String(action),
		AttrSyncOutcome.String(outcome),
	))
}

// DocumentsStaged records documents added to the staging area
func (m *SyncMetrics) DocumentsStaged(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.documentsStaged.Add(ctx, int64(count))
}
