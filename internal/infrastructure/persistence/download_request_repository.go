package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
	"github.com/mxsuite/backend/internal/infrastructure/persistence/models"
)

// GormDownloadRequestRepository implements sat.DownloadRequestRepository using GORM
type GormDownloadRequestRepository struct {
	db *gorm.DB
}

// NewGormDownloadRequestRepository creates a new GormDownloadRequestRepository
func NewGormDownloadRequestRepository(db *gorm.DB) *GormDownloadRequestRepository {
	return &GormDownloadRequestRepository{db: db}
}

// FindByID finds a download request by ID
func (r *GormDownloadRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*sat.DownloadRequest, error) {
	var model models.DownloadRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns a filtered page of download requests, newest period first
func (r *GormDownloadRequestRepository) FindAll(ctx context.Context, filter sat.DownloadRequestFilter, page, pageSize int) (*shared.Paginated[*sat.DownloadRequest], error) {
	query := r.db.WithContext(ctx).Model(&models.DownloadRequestModel{})
	query = applyRequestFilters(query, filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	query = query.Order("period_start DESC, created_at DESC")

	var requestModels []models.DownloadRequestModel
	if err := query.Find(&requestModels).Error; err != nil {
		return nil, err
	}

	requests := make([]*sat.DownloadRequest, len(requestModels))
	for i := range requestModels {
		requests[i] = requestModels[i].ToDomain()
	}

	result := shared.NewPaginated(requests, totalCount, page, pageSize)
	return &result, nil
}

// FindDueForRetry returns error or paused requests whose retry time has passed
func (r *GormDownloadRequestRepository) FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*sat.DownloadRequest, error) {
	var requestModels []models.DownloadRequestModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			[]string{sat.StatusError.String(), sat.StatusPaused.String()}, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&requestModels).Error; err != nil {
		return nil, err
	}

	requests := make([]*sat.DownloadRequest, len(requestModels))
	for i := range requestModels {
		requests[i] = requestModels[i].ToDomain()
	}
	return requests, nil
}

// Save saves a download request. Updates carry a version check so two
// workers holding the same snapshot cannot clobber each other's counters;
// the loser gets shared.ErrConcurrencyConflict and must reload.
func (r *GormDownloadRequestRepository) Save(ctx context.Context, request *sat.DownloadRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Version 0 means no row yet; persisted rows start at 1
		var currentVersion int
		if err := tx.Model(&models.DownloadRequestModel{}).
			Where("id = ?", request.ID).
			Select("version").
			Scan(&currentVersion).Error; err != nil {
			return err
		}

		if currentVersion == 0 {
			return tx.Create(models.DownloadRequestModelFromDomain(request)).Error
		}

		if currentVersion != request.Version {
			return shared.ErrConcurrencyConflict
		}

		request.IncrementVersion()
		request.UpdatedAt = time.Now()
		model := models.DownloadRequestModelFromDomain(request)

		result := tx.Model(&models.DownloadRequestModel{}).
			Where("id = ? AND version = ?", request.ID, currentVersion).
			Updates(map[string]interface{}{
				"direction":           model.Direction,
				"period_start":        model.PeriodStart,
				"period_end":          model.PeriodEnd,
				"remote_request_id":   model.RemoteRequestID,
				"status":              model.Status,
				"retry_count":         model.RetryCount,
				"next_retry_at":       model.NextRetryAt,
				"throttle_kind":       model.ThrottleKind,
				"total_documents":     model.TotalDocuments,
				"inserted_documents":  model.InsertedDocuments,
				"duplicate_documents": model.DuplicateDocuments,
				"error_documents":     model.ErrorDocuments,
				"last_error":          model.LastError,
				"error_details":       model.ErrorDetails,
				"cancel_requested":    model.CancelRequested,
				"requested_at":        model.RequestedAt,
				"completed_at":        model.CompletedAt,
				"cancelled_at":        model.CancelledAt,
				"version":             model.Version,
				"updated_at":          model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return nil
	})
}

// Delete deletes a download request by ID
func (r *GormDownloadRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DownloadRequestModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func applyRequestFilters(query *gorm.DB, filter sat.DownloadRequestFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", filter.Direction.String())
	}
	if filter.From != nil {
		query = query.Where("period_end >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("period_start <= ?", *filter.To)
	}
	return query
}

// Compile-time interface compliance check
var _ sat.DownloadRequestRepository = (*GormDownloadRequestRepository)(nil)
