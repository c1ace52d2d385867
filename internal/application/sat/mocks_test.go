package sat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mxsuite/backend/internal/domain/fiscal"
	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// MockDownloadRequestRepository is a mock implementation of sat.DownloadRequestRepository
type MockDownloadRequestRepository struct {
	mock.Mock
}

func (m *MockDownloadRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*sat.DownloadRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sat.DownloadRequest), args.Error(1)
}

func (m *MockDownloadRequestRepository) FindAll(ctx context.Context, filter sat.DownloadRequestFilter, page, pageSize int) (*shared.Paginated[*sat.DownloadRequest], error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*sat.DownloadRequest]), args.Error(1)
}

func (m *MockDownloadRequestRepository) FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*sat.DownloadRequest, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sat.DownloadRequest), args.Error(1)
}

func (m *MockDownloadRequestRepository) Save(ctx context.Context, request *sat.DownloadRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockDownloadRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockStagedDocumentRepository is a mock implementation of sat.StagedDocumentRepository
type MockStagedDocumentRepository struct {
	mock.Mock
}

func (m *MockStagedDocumentRepository) InsertIfAbsent(ctx context.Context, doc *sat.StagedDocument) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *MockStagedDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*sat.StagedDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sat.StagedDocument), args.Error(1)
}

func (m *MockStagedDocumentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*sat.StagedDocument, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sat.StagedDocument), args.Error(1)
}

func (m *MockStagedDocumentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID, page, pageSize int) (*shared.Paginated[*sat.StagedDocument], error) {
	args := m.Called(ctx, requestID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*sat.StagedDocument]), args.Error(1)
}

func (m *MockStagedDocumentRepository) ListPending(ctx context.Context, requestID uuid.UUID) ([]*sat.StagedDocument, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sat.StagedDocument), args.Error(1)
}

func (m *MockStagedDocumentRepository) Save(ctx context.Context, doc *sat.StagedDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockStagedDocumentRepository) DeleteByRequest(ctx context.Context, requestID uuid.UUID) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

// MockDocumentRepository is a mock implementation of fiscal.DocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) InsertIfAbsent(ctx context.Context, doc *fiscal.Document) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByFiscalUUID(ctx context.Context, fiscalUUID string) (*fiscal.Document, error) {
	args := m.Called(ctx, fiscalUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAll(ctx context.Context, filter fiscal.DocumentFilter, page, pageSize int) (*shared.Paginated[*fiscal.Document], error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*fiscal.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *fiscal.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPackageClient is a mock implementation of sat.PackageClient
type MockPackageClient struct {
	mock.Mock
}

func (m *MockPackageClient) RequestPackage(ctx context.Context, criteria sat.DownloadCriteria) (string, error) {
	args := m.Called(ctx, criteria)
	return args.String(0), args.Error(1)
}

func (m *MockPackageClient) PollPackage(ctx context.Context, requestID string) (sat.PackageState, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(sat.PackageState), args.Error(1)
}

func (m *MockPackageClient) FetchPackage(ctx context.Context, requestID string) (*sat.PackageResult, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sat.PackageResult), args.Error(1)
}

// MockCredentialProvider is a mock implementation of sat.CredentialProvider
type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) Credentials(ctx context.Context) (*sat.Credentials, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sat.Credentials), args.Error(1)
}

// MockJobLeaseStore is a mock implementation of sat.JobLeaseStore
type MockJobLeaseStore struct {
	mock.Mock
}

func (m *MockJobLeaseStore) Acquire(ctx context.Context, requestID uuid.UUID, action sat.TriggerAction, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, requestID, action, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobLeaseStore) Release(ctx context.Context, requestID uuid.UUID) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

// MockJobDispatcher is a mock implementation of JobDispatcher
type MockJobDispatcher struct {
	mock.Mock
}

func (m *MockJobDispatcher) Dispatch(job SyncJob) error {
	args := m.Called(job)
	return args.Error(0)
}

// grantingLeaseStore is an in-memory lease store that actually enforces
// the per-request mutual exclusion contract
type grantingLeaseStore struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newGrantingLeaseStore() *grantingLeaseStore {
	return &grantingLeaseStore{held: make(map[uuid.UUID]bool)}
}

func (s *grantingLeaseStore) Acquire(_ context.Context, requestID uuid.UUID, _ sat.TriggerAction, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[requestID] {
		return false, nil
	}
	s.held[requestID] = true
	return true, nil
}

func (s *grantingLeaseStore) Release(_ context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, requestID)
	return nil
}
