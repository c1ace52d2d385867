package sat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// SyncJob is one unit of scheduler work: run an action on a request
type SyncJob struct {
	RequestID uuid.UUID
	Action    sat.TriggerAction
}

// JobDispatcher enqueues sync jobs for asynchronous execution.
// Implementations coalesce duplicate jobs for the same request.
type JobDispatcher interface {
	Dispatch(job SyncJob) error
}

// DownloadService manages the download request catalog and hands sync
// work to the dispatcher. Protocol execution lives in SyncExecutor.
type DownloadService struct {
	requests   sat.DownloadRequestRepository
	staging    sat.StagedDocumentRepository
	dispatcher JobDispatcher
	eventBus   shared.EventBus
	windowDays int
}

// NewDownloadService creates a new DownloadService
func NewDownloadService(
	requests sat.DownloadRequestRepository,
	staging sat.StagedDocumentRepository,
	dispatcher JobDispatcher,
	eventBus shared.EventBus,
	windowDays int,
) *DownloadService {
	if windowDays <= 0 {
		windowDays = sat.MaxWindowDays
	}
	return &DownloadService{
		requests:   requests,
		staging:    staging,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		windowDays: windowDays,
	}
}

// CreateRange splits a period into download requests and persists them.
// Each sub-range becomes an independent request so one failed slice never
// blocks the rest of the period.
func (s *DownloadService) CreateRange(ctx context.Context, cmd CreateRangeCommand) ([]*DownloadRequestDTO, error) {
	reqs, err := sat.SplitRange(sat.Direction(cmd.Direction), cmd.PeriodStart, cmd.PeriodEnd, s.windowDays, timeNow())
	if err != nil {
		return nil, err
	}

	dtos := make([]*DownloadRequestDTO, 0, len(reqs))
	for _, req := range reqs {
		if err := s.requests.Save(ctx, req); err != nil {
			return nil, fmt.Errorf("failed to save download request: %w", err)
		}
		s.publishEvents(ctx, req)
		dtos = append(dtos, ToDownloadRequestDTO(req))
	}

	return dtos, nil
}

// Get returns a single download request
func (s *DownloadService) Get(ctx context.Context, id uuid.UUID) (*DownloadRequestDTO, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToDownloadRequestDTO(req), nil
}

// List returns a filtered page of download requests
func (s *DownloadService) List(ctx context.Context, query ListDownloadRequestsQuery) (*shared.Paginated[*DownloadRequestDTO], error) {
	filter := sat.DownloadRequestFilter{}
	if query.Status != "" {
		status := sat.DownloadStatus(query.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown status: %s", query.Status))
		}
		filter.Status = &status
	}
	if query.Direction != "" {
		direction := sat.Direction(query.Direction)
		if !direction.IsValid() {
			return nil, shared.NewDomainError("INVALID_DIRECTION", fmt.Sprintf("Unknown direction: %s", query.Direction))
		}
		filter.Direction = &direction
	}

	page, pageSize := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	result, err := s.requests.FindAll(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list download requests: %w", err)
	}

	dtos := make([]*DownloadRequestDTO, len(result.Items))
	for i, req := range result.Items {
		dtos[i] = ToDownloadRequestDTO(req)
	}
	paginated := shared.NewPaginated(dtos, result.Total, page, pageSize)
	return &paginated, nil
}

// Trigger validates and enqueues a sync action for a request. The action
// runs asynchronously; callers poll the request status for the outcome.
func (s *DownloadService) Trigger(ctx context.Context, id uuid.UUID, action sat.TriggerAction) (*DownloadRequestDTO, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := req.CanTrigger(action); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Dispatch(SyncJob{RequestID: req.ID, Action: action}); err != nil {
		return nil, fmt.Errorf("failed to dispatch sync job: %w", err)
	}

	return ToDownloadRequestDTO(req), nil
}

// ResetForRetry re-arms a stalled request so it can be requested again
func (s *DownloadService) ResetForRetry(ctx context.Context, id uuid.UUID) (*DownloadRequestDTO, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := req.ResetForRetry(); err != nil {
		return nil, err
	}

	if err := s.requests.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save download request: %w", err)
	}
	s.publishEvents(ctx, req)

	return ToDownloadRequestDTO(req), nil
}

// Cancel cancels a request, deferring if a job is in flight
func (s *DownloadService) Cancel(ctx context.Context, id uuid.UUID) (*DownloadRequestDTO, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := req.RequestCancel(); err != nil {
		return nil, err
	}

	if err := s.requests.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save download request: %w", err)
	}

	return ToDownloadRequestDTO(req), nil
}

// Delete removes a request and its staged documents. Only requests with
// no in-flight work can be deleted.
func (s *DownloadService) Delete(ctx context.Context, id uuid.UUID) error {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !req.CanDelete() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot delete request in %s status", req.Status))
	}

	if err := s.staging.DeleteByRequest(ctx, id); err != nil {
		return fmt.Errorf("failed to delete staged documents: %w", err)
	}
	if err := s.requests.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete download request: %w", err)
	}

	return nil
}

func (s *DownloadService) publishEvents(ctx context.Context, req *sat.DownloadRequest) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.Publish(ctx, req.GetDomainEvents()...)
	req.ClearDomainEvents()
}
