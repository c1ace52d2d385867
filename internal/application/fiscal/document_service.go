// Package fiscal exposes the production document store to operators.
package fiscal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/fiscal"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// DocumentService answers read queries over the document store. Writes
// happen through the import pipeline, never through this service.
type DocumentService struct {
	documents fiscal.DocumentRepository
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(documents fiscal.DocumentRepository) *DocumentService {
	return &DocumentService{documents: documents}
}

// List returns a page of documents matching the query
func (s *DocumentService) List(ctx context.Context, query ListDocumentsQuery) (*shared.Paginated[*DocumentDTO], error) {
	filter := fiscal.DocumentFilter{
		RFC:  query.RFC,
		From: query.From,
		To:   query.To,
	}
	if query.Kind != "" {
		kind := fiscal.DocumentKind(query.Kind)
		if !kind.IsValid() {
			return nil, shared.NewDomainError("INVALID_KIND", "Invalid document kind")
		}
		filter.Kind = &kind
	}
	if query.Source != "" {
		source := fiscal.DocumentSource(query.Source)
		if !source.IsValid() {
			return nil, shared.NewDomainError("INVALID_SOURCE", "Invalid document source")
		}
		filter.Source = &source
	}

	page, err := s.documents.FindAll(ctx, filter, query.Page, query.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	dtos := make([]*DocumentDTO, 0, len(page.Items))
	for _, doc := range page.Items {
		dtos = append(dtos, ToDocumentDTO(doc))
	}
	result := shared.NewPaginated(dtos, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// Get returns one document by its store ID
func (s *DocumentService) Get(ctx context.Context, id uuid.UUID) (*DocumentDTO, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToDocumentDTO(doc), nil
}

// GetByFiscalUUID returns one document by its stamped fiscal UUID
func (s *DocumentService) GetByFiscalUUID(ctx context.Context, fiscalUUID string) (*DocumentDTO, error) {
	doc, err := s.documents.FindByFiscalUUID(ctx, fiscalUUID)
	if err != nil {
		return nil, err
	}
	return ToDocumentDTO(doc), nil
}
