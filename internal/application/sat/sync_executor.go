package sat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// leaseTTL bounds how long a crashed worker can keep a request locked
const leaseTTL = 10 * time.Minute

// SyncMetrics records protocol outcomes. Implemented by the telemetry
// package; a nil-safe no-op is used in tests.
type SyncMetrics interface {
	JobStarted(ctx context.Context, action string)
	JobCompleted(ctx context.Context, action, outcome string)
	DocumentsStaged(ctx context.Context, count int)
}

// SyncExecutor runs the remote download protocol for one request at a
// time. Mutual exclusion per request is enforced through the lease store,
// so concurrent triggers and scheduler retries cannot interleave.
type SyncExecutor struct {
	requests    sat.DownloadRequestRepository
	staging     sat.StagedDocumentRepository
	client      sat.PackageClient
	credentials sat.CredentialProvider
	leases      sat.JobLeaseStore
	archive     sat.PayloadArchive
	policy      sat.RetryPolicy
	eventBus    shared.EventBus
	metrics     SyncMetrics
	logger      *zap.Logger
}

// NewSyncExecutor creates a new SyncExecutor
func NewSyncExecutor(
	requests sat.DownloadRequestRepository,
	staging sat.StagedDocumentRepository,
	client sat.PackageClient,
	credentials sat.CredentialProvider,
	leases sat.JobLeaseStore,
	archive sat.PayloadArchive,
	policy sat.RetryPolicy,
	eventBus shared.EventBus,
	metrics SyncMetrics,
	logger *zap.Logger,
) *SyncExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncExecutor{
		requests:    requests,
		staging:     staging,
		client:      client,
		credentials: credentials,
		leases:      leases,
		archive:     archive,
		policy:      policy,
		eventBus:    eventBus,
		metrics:     metrics,
		logger:      logger,
	}
}

// Execute runs one sync action on a request under its lease.
// Returns shared.ErrRequestInFlight when another job holds the lease.
func (e *SyncExecutor) Execute(ctx context.Context, requestID uuid.UUID, action sat.TriggerAction) error {
	acquired, err := e.leases.Acquire(ctx, requestID, action, leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire job lease: %w", err)
	}
	if !acquired {
		return shared.ErrRequestInFlight
	}
	defer func() {
		if err := e.leases.Release(context.WithoutCancel(ctx), requestID); err != nil {
			e.logger.Warn("failed to release job lease",
				zap.String("request_id", requestID.String()), zap.Error(err))
		}
	}()

	req, err := e.requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := req.CanTrigger(action); err != nil {
		// A coalesced or retried job can arrive after the state moved on;
		// apply a deferred cancel if one is pending, otherwise drop the job
		if req.CancelRequested {
			return e.applyDeferredCancel(ctx, req)
		}
		e.logger.Debug("dropping stale sync job",
			zap.String("request_id", requestID.String()),
			zap.String("action", string(action)),
			zap.String("status", req.Status.String()))
		return nil
	}

	if _, err := e.credentials.Credentials(ctx); err != nil {
		return shared.ErrMissingCredentials
	}

	if e.metrics != nil {
		e.metrics.JobStarted(ctx, string(action))
	}

	outcome := "ok"
	switch action {
	case sat.ActionRequest:
		err = e.runRequest(ctx, req)
	case sat.ActionVerify, sat.ActionRecheck:
		err = e.runPoll(ctx, req)
	default:
		err = shared.NewDomainError("INVALID_ACTION", fmt.Sprintf("Unknown action: %s", action))
	}
	if err != nil {
		outcome = "error"
	}
	if e.metrics != nil {
		e.metrics.JobCompleted(ctx, string(action), outcome)
	}

	return err
}

// runRequest performs the initial package request
func (e *SyncExecutor) runRequest(ctx context.Context, req *sat.DownloadRequest) error {
	criteria := sat.DownloadCriteria{
		Direction:   req.Direction,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	}

	remoteID, err := e.client.RequestPackage(ctx, criteria)
	if err != nil {
		if errors.Is(err, sat.ErrNoDocuments) {
			// The remote service has nothing for this range; the request
			// is done without ever holding a handle
			if err := req.CompleteEmpty(); err != nil {
				return err
			}
			return e.persist(ctx, req, nil)
		}
		return e.handleFailure(ctx, req, err)
	}

	if err := req.MarkRequested(remoteID); err != nil {
		return err
	}
	e.logger.Info("package requested",
		zap.String("request_id", req.ID.String()),
		zap.String("remote_request_id", remoteID))

	return e.persist(ctx, req, nil)
}

// runPoll checks the remote build state and fetches the package when ready
func (e *SyncExecutor) runPoll(ctx context.Context, req *sat.DownloadRequest) error {
	state, err := e.client.PollPackage(ctx, req.RequestID)
	if err != nil {
		return e.handleFailure(ctx, req, err)
	}

	switch state {
	case sat.PackagePending:
		if err := req.MarkWaiting(); err != nil {
			return err
		}
		return e.persist(ctx, req, nil)
	case sat.PackageExpired:
		return e.handleFailure(ctx, req, sat.ErrPackageExpired)
	case sat.PackageReady:
		if err := req.MarkReady(); err != nil {
			return err
		}
		if err := e.requests.Save(ctx, req); err != nil {
			return fmt.Errorf("failed to save download request: %w", err)
		}
		return e.fetchAndStage(ctx, req)
	default:
		return e.handleFailure(ctx, req, fmt.Errorf("unknown package state: %s", state))
	}
}

// fetchAndStage downloads the ready package and fills the staging area.
// Unreadable entries are counted but never block completion.
func (e *SyncExecutor) fetchAndStage(ctx context.Context, req *sat.DownloadRequest) error {
	if err := req.StartProcessing(); err != nil {
		return err
	}
	if err := e.requests.Save(ctx, req); err != nil {
		return fmt.Errorf("failed to save download request: %w", err)
	}

	result, err := e.client.FetchPackage(ctx, req.RequestID)
	if err != nil {
		return e.handleFailure(ctx, req, err)
	}

	staged, unreadable := 0, result.Unreadable
	for _, raw := range result.Documents {
		doc, err := sat.NewStagedDocument(req.ID, raw.FiscalUUID, raw.IssuerRFC, raw.IssuerName,
			raw.ReceiverRFC, raw.IssuedAt, raw.Total, raw.XML)
		if err != nil {
			unreadable++
			continue
		}

		inserted, err := e.staging.InsertIfAbsent(ctx, doc)
		if err != nil {
			return e.handleFailure(ctx, req, fmt.Errorf("failed to stage document: %w", err))
		}
		if inserted {
			staged++
			e.archivePayload(ctx, req.ID, doc.FiscalUUID, raw.XML)
		}
	}

	total := result.TotalDocuments
	if total < len(result.Documents)+result.Unreadable {
		total = len(result.Documents) + result.Unreadable
	}

	if err := req.CompleteFetch(total, unreadable); err != nil {
		return err
	}

	e.logger.Info("package fetched and staged",
		zap.String("request_id", req.ID.String()),
		zap.Int("total", total),
		zap.Int("staged", staged),
		zap.Int("unreadable", unreadable))
	if e.metrics != nil {
		e.metrics.DocumentsStaged(ctx, staged)
	}

	return e.persist(ctx, req, nil)
}

// handleFailure classifies a protocol error and records the outcome
func (e *SyncExecutor) handleFailure(ctx context.Context, req *sat.DownloadRequest, cause error) error {
	now := timeNow()

	switch e.policy.Classify(cause) {
	case sat.FailureRateLimited:
		var throttle *sat.ThrottleError
		kind := sat.ThrottleMinuteQuota
		if errors.As(cause, &throttle) {
			kind = throttle.Kind
		}
		if err := req.Throttle(kind, e.policy.ThrottleResumeAt(kind, now)); err != nil {
			return err
		}
	case sat.FailurePermanent:
		if err := req.FailPermanent(cause.Error()); err != nil {
			return err
		}
	default:
		var next *time.Time
		if !e.policy.Exhausted(req.RetryCount) {
			at := e.policy.NextRetryAt(req.RetryCount, now)
			next = &at
		}
		if err := req.FailTransient(cause.Error(), next); err != nil {
			return err
		}
	}

	e.logger.Warn("sync step failed",
		zap.String("request_id", req.ID.String()),
		zap.String("status", req.Status.String()),
		zap.Int("retry_count", req.RetryCount),
		zap.Error(cause))

	return e.persist(ctx, req, cause)
}

// applyDeferredCancel finishes a cancellation issued while a job ran
func (e *SyncExecutor) applyDeferredCancel(ctx context.Context, req *sat.DownloadRequest) error {
	if err := req.Cancel(); err != nil {
		return err
	}
	return e.persist(ctx, req, nil)
}

// persist saves the request, publishes its events and applies any
// deferred cancellation, then returns the original cause
func (e *SyncExecutor) persist(ctx context.Context, req *sat.DownloadRequest, cause error) error {
	if req.CancelRequested && !req.Status.IsTerminal() && req.Status != sat.StatusProcessing {
		if err := req.Cancel(); err != nil {
			e.logger.Warn("failed to apply deferred cancel",
				zap.String("request_id", req.ID.String()), zap.Error(err))
		}
	}

	if err := e.requests.Save(ctx, req); err != nil {
		return fmt.Errorf("failed to save download request: %w", err)
	}
	if e.eventBus != nil {
		_ = e.eventBus.Publish(ctx, req.GetDomainEvents()...)
		req.ClearDomainEvents()
	}
	return cause
}

func (e *SyncExecutor) archivePayload(ctx context.Context, requestID uuid.UUID, fiscalUUID, xml string) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Store(ctx, requestID, fiscalUUID, []byte(xml)); err != nil {
		// Archive is best effort; staging already holds the payload
		e.logger.Warn("failed to archive payload",
			zap.String("fiscal_uuid", fiscalUUID), zap.Error(err))
	}
}
