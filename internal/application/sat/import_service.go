package sat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mxsuite/backend/internal/domain/fiscal"
	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// ImportService promotes staged documents into the production document
// store. Duplicates are counted and reported but never imported; the
// store's unique fiscal UUID constraint is the final arbiter.
type ImportService struct {
	requests  sat.DownloadRequestRepository
	staging   sat.StagedDocumentRepository
	documents fiscal.DocumentRepository
	eventBus  shared.EventBus
	logger    *zap.Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	requests sat.DownloadRequestRepository,
	staging sat.StagedDocumentRepository,
	documents fiscal.DocumentRepository,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		requests:  requests,
		staging:   staging,
		documents: documents,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// ListStaged returns a page of staged documents for a request
func (s *ImportService) ListStaged(ctx context.Context, requestID uuid.UUID, page, pageSize int) (*shared.Paginated[*StagedDocumentDTO], error) {
	if _, err := s.requests.FindByID(ctx, requestID); err != nil {
		return nil, err
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	result, err := s.staging.ListByRequest(ctx, requestID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged documents: %w", err)
	}

	dtos := make([]*StagedDocumentDTO, len(result.Items))
	for i, doc := range result.Items {
		dto := ToStagedDocumentDTO(doc)
		if !doc.Imported {
			if err := s.resolveExisting(ctx, dto); err != nil {
				return nil, err
			}
		}
		dtos[i] = dto
	}
	paginated := shared.NewPaginated(dtos, result.Total, page, pageSize)
	return &paginated, nil
}

// resolveExisting annotates a pending staged row with the production
// record that already holds its fiscal UUID, so operators can compare
// a would-be duplicate against what the store kept.
func (s *ImportService) resolveExisting(ctx context.Context, dto *StagedDocumentDTO) error {
	existing, err := s.documents.FindByFiscalUUID(ctx, dto.FiscalUUID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve staged document %s: %w", dto.FiscalUUID, err)
	}
	dto.ExistingDocument = ToExistingDocumentDTO(existing)
	return nil
}

// Import promotes the selected staged documents of a request. An empty
// selection imports every pending document. Already-imported documents
// in the selection are skipped silently so re-imports are idempotent.
func (s *ImportService) Import(ctx context.Context, cmd ImportCommand) (*ImportResultDTO, error) {
	req, err := s.requests.FindByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	docs, err := s.resolveSelection(ctx, cmd)
	if err != nil {
		return nil, err
	}

	result := &ImportResultDTO{}
	for _, staged := range docs {
		if staged.Imported {
			continue
		}
		if staged.RequestID != req.ID {
			return nil, shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("Document %s does not belong to request %s", staged.ID, req.ID))
		}

		doc, err := fiscal.NewDocument(
			staged.FiscalUUID,
			fiscal.DocumentKind(req.Direction),
			fiscal.SourceDownload,
			staged.IssuerRFC,
			staged.IssuerName,
			staged.ReceiverRFC,
			staged.IssuedAt,
			staged.Total,
			staged.RawXML,
		)
		if err != nil {
			if !req.Errors.HasMalformed(staged.FiscalUUID) {
				result.Errors++
				result.MalformedUUIDs = append(result.MalformedUUIDs, staged.FiscalUUID)
			}
			s.logger.Warn("staged document failed validation",
				zap.String("fiscal_uuid", staged.FiscalUUID), zap.Error(err))
			continue
		}

		inserted, err := s.documents.InsertIfAbsent(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to insert fiscal document: %w", err)
		}
		if !inserted {
			// The store already holds this UUID. The staged row stays
			// pending so operators can see what collided, and a re-import
			// does not count the same collision twice.
			if !req.Errors.HasDuplicate(staged.FiscalUUID) {
				result.Duplicates++
				result.DuplicateUUIDs = append(result.DuplicateUUIDs, staged.FiscalUUID)
			}
			continue
		}

		result.Inserted++
		staged.MarkImported()
		if err := s.staging.Save(ctx, staged); err != nil {
			return nil, fmt.Errorf("failed to update staged document: %w", err)
		}
	}

	if err := req.RecordImport(result.Inserted, result.Duplicates, result.Errors,
		result.DuplicateUUIDs, result.MalformedUUIDs); err != nil {
		return nil, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save download request: %w", err)
	}

	if s.eventBus != nil {
		_ = s.eventBus.Publish(ctx, sat.NewDocumentsImportedEvent(req, result.Inserted, result.Duplicates, result.Errors))
	}
	s.logger.Info("import batch finished",
		zap.String("request_id", req.ID.String()),
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors))

	return result, nil
}

func (s *ImportService) resolveSelection(ctx context.Context, cmd ImportCommand) ([]*sat.StagedDocument, error) {
	if len(cmd.DocumentIDs) == 0 {
		docs, err := s.staging.ListPending(ctx, cmd.RequestID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending documents: %w", err)
		}
		return docs, nil
	}

	docs, err := s.staging.FindByIDs(ctx, cmd.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load selected documents: %w", err)
	}
	if len(docs) != len(cmd.DocumentIDs) {
		return nil, shared.NewDomainError("NOT_FOUND", "One or more selected documents do not exist")
	}
	return docs, nil
}
