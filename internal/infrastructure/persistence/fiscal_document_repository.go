package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mxsuite/backend/internal/domain/fiscal"
	"github.com/mxsuite/backend/internal/domain/shared"
	"github.com/mxsuite/backend/internal/infrastructure/persistence/models"
)

// GormFiscalDocumentRepository implements fiscal.DocumentRepository using GORM
type GormFiscalDocumentRepository struct {
	db *gorm.DB
}

// NewGormFiscalDocumentRepository creates a new GormFiscalDocumentRepository
func NewGormFiscalDocumentRepository(db *gorm.DB) *GormFiscalDocumentRepository {
	return &GormFiscalDocumentRepository{db: db}
}

// InsertIfAbsent stores the document unless the fiscal UUID already exists
func (r *GormFiscalDocumentRepository) InsertIfAbsent(ctx context.Context, doc *fiscal.Document) (bool, error) {
	model := models.FiscalDocumentModelFromDomain(doc)
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

// FindByID finds a fiscal document by ID
func (r *GormFiscalDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Document, error) {
	var model models.FiscalDocumentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByFiscalUUID finds a fiscal document by its authority-issued UUID
func (r *GormFiscalDocumentRepository) FindByFiscalUUID(ctx context.Context, fiscalUUID string) (*fiscal.Document, error) {
	var model models.FiscalDocumentModel
	if err := r.db.WithContext(ctx).First(&model, "fiscal_uuid = ?", fiscalUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns a filtered page of fiscal documents, newest first
func (r *GormFiscalDocumentRepository) FindAll(ctx context.Context, filter fiscal.DocumentFilter, page, pageSize int) (*shared.Paginated[*fiscal.Document], error) {
	query := r.db.WithContext(ctx).Model(&models.FiscalDocumentModel{})
	query = applyDocumentFilters(query, filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	query = query.Order("issued_at DESC")

	var documentModels []models.FiscalDocumentModel
	if err := query.Find(&documentModels).Error; err != nil {
		return nil, err
	}

	docs := make([]*fiscal.Document, len(documentModels))
	for i := range documentModels {
		docs[i] = documentModels[i].ToDomain()
	}

	result := shared.NewPaginated(docs, totalCount, page, pageSize)
	return &result, nil
}

// Save saves a fiscal document. Updates are version-guarded; a stale
// snapshot gets shared.ErrConcurrencyConflict and must reload first.
func (r *GormFiscalDocumentRepository) Save(ctx context.Context, doc *fiscal.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Version 0 means no row yet; persisted rows start at 1
		var currentVersion int
		if err := tx.Model(&models.FiscalDocumentModel{}).
			Where("id = ?", doc.ID).
			Select("version").
			Scan(&currentVersion).Error; err != nil {
			return err
		}

		if currentVersion == 0 {
			return tx.Create(models.FiscalDocumentModelFromDomain(doc)).Error
		}

		if currentVersion != doc.Version {
			return shared.ErrConcurrencyConflict
		}

		doc.IncrementVersion()
		doc.UpdatedAt = time.Now()
		model := models.FiscalDocumentModelFromDomain(doc)

		result := tx.Model(&models.FiscalDocumentModel{}).
			Where("id = ? AND version = ?", doc.ID, currentVersion).
			Updates(map[string]interface{}{
				"fiscal_uuid":  model.FiscalUUID,
				"kind":         model.Kind,
				"source":       model.Source,
				"issuer_rfc":   model.IssuerRFC,
				"issuer_name":  model.IssuerName,
				"receiver_rfc": model.ReceiverRFC,
				"issued_at":    model.IssuedAt,
				"total":        model.Total,
				"raw_xml":      model.RawXML,
				"version":      model.Version,
				"updated_at":   model.UpdatedAt,
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

// Delete deletes a fiscal document by ID
func (r *GormFiscalDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FiscalDocumentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func applyDocumentFilters(query *gorm.DB, filter fiscal.DocumentFilter) *gorm.DB {
	if filter.Kind != nil {
		query = query.Where("kind = ?", string(*filter.Kind))
	}
	if filter.Source != nil {
		query = query.Where("source = ?", string(*filter.Source))
	}
	if filter.RFC != "" {
		query = query.Where("issuer_rfc = ? OR receiver_rfc = ?", filter.RFC, filter.RFC)
	}
	if filter.From != nil {
		query = query.Where("issued_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("issued_at <= ?", *filter.To)
	}
	return query
}

// Compile-time interface compliance check
var _ fiscal.DocumentRepository = (*GormFiscalDocumentRepository)(nil)
