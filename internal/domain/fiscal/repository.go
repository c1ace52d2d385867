package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// DocumentFilter narrows document listings
type DocumentFilter struct {
	Kind   *DocumentKind
	Source *DocumentSource
	RFC    string
	From   *time.Time
	To     *time.Time
}

// DocumentRepository persists fiscal documents.
// InsertIfAbsent is the only write path the importer uses so duplicate
// detection happens atomically at the store, not in application code.
type DocumentRepository interface {
	// InsertIfAbsent stores the document unless the fiscal UUID already
	// exists. Returns true when a row was inserted.
	InsertIfAbsent(ctx context.Context, doc *Document) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByFiscalUUID(ctx context.Context, fiscalUUID string) (*Document, error)
	FindAll(ctx context.Context, filter DocumentFilter, page, pageSize int) (*shared.Paginated[*Document], error)
	Save(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}
