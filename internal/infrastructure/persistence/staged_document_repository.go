package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
	"github.com/mxsuite/backend/internal/infrastructure/persistence/models"
)

// GormStagedDocumentRepository implements sat.StagedDocumentRepository using GORM
type GormStagedDocumentRepository struct {
	db *gorm.DB
}

// NewGormStagedDocumentRepository creates a new GormStagedDocumentRepository
func NewGormStagedDocumentRepository(db *gorm.DB) *GormStagedDocumentRepository {
	return &GormStagedDocumentRepository{db: db}
}

// InsertIfAbsent stores the document unless its fiscal UUID is already
// staged. The unique index on fiscal_uuid makes the check atomic.
func (r *GormStagedDocumentRepository) InsertIfAbsent(ctx context.Context, doc *sat.StagedDocument) (bool, error) {
	model := models.StagedDocumentModelFromDomain(doc)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fiscal_uuid"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByID finds a staged document by ID
func (r *GormStagedDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*sat.StagedDocument, error) {
	var model models.StagedDocumentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds staged documents by their IDs
func (r *GormStagedDocumentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*sat.StagedDocument, error) {
	var documentModels []models.StagedDocumentModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&documentModels).Error; err != nil {
		return nil, err
	}
	return toDomainStagedDocuments(documentModels), nil
}

// ListByRequest returns a page of staged documents for a request, pending
// ones first, newest issue date first within each group
func (r *GormStagedDocumentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID, page, pageSize int) (*shared.Paginated[*sat.StagedDocument], error) {
	query := r.db.WithContext(ctx).Model(&models.StagedDocumentModel{}).
		Where("request_id = ?", requestID)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	query = query.Order("imported ASC, issued_at DESC")

	var documentModels []models.StagedDocumentModel
	if err := query.Find(&documentModels).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(toDomainStagedDocuments(documentModels), totalCount, page, pageSize)
	return &result, nil
}

// ListPending returns the not-yet-imported documents for a request
func (r *GormStagedDocumentRepository) ListPending(ctx context.Context, requestID uuid.UUID) ([]*sat.StagedDocument, error) {
	var documentModels []models.StagedDocumentModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ? AND imported = ?", requestID, false).
		Order("issued_at DESC").
		Find(&documentModels).Error; err != nil {
		return nil, err
	}
	return toDomainStagedDocuments(documentModels), nil
}

// Save saves a staged document (create or update)
func (r *GormStagedDocumentRepository) Save(ctx context.Context, doc *sat.StagedDocument) error {
	model := models.StagedDocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteByRequest removes all staged documents of a request
func (r *GormStagedDocumentRepository) DeleteByRequest(ctx context.Context, requestID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.StagedDocumentModel{}, "request_id = ?", requestID).Error
}

func toDomainStagedDocuments(documentModels []models.StagedDocumentModel) []*sat.StagedDocument {
	docs := make([]*sat.StagedDocument, len(documentModels))
	for i := range documentModels {
		docs[i] = documentModels[i].ToDomain()
	}
	return docs
}

// Compile-time interface compliance check
var _ sat.StagedDocumentRepository = (*GormStagedDocumentRepository)(nil)
