package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mxsuite/backend/internal/domain/fiscal"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// FiscalDocumentModelSQLite is a SQLite-compatible version of FiscalDocumentModel for testing
type FiscalDocumentModelSQLite struct {
	ID          string    `gorm:"primaryKey"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	Version     int       `gorm:"not null;default:1"`
	FiscalUUID  string    `gorm:"not null;uniqueIndex"`
	Kind        string    `gorm:"not null;index"`
	Source      string    `gorm:"not null;index"`
	IssuerRFC   string    `gorm:"not null;index"`
	IssuerName  string
	ReceiverRFC string    `gorm:"not null;index"`
	IssuedAt    time.Time `gorm:"not null;index"`
	Total       string    `gorm:"not null"`
	RawXML      string
}

func (FiscalDocumentModelSQLite) TableName() string {
	return "fiscal_documents"
}

func setupFiscalDocumentTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&FiscalDocumentModelSQLite{})
	require.NoError(t, err)

	return db
}

func newFiscalDocument(t *testing.T, fiscalUUID string, kind fiscal.DocumentKind) *fiscal.Document {
	t.Helper()
	doc, err := fiscal.NewDocument(fiscalUUID, kind, fiscal.SourceDownload,
		"AAA010101AAA", "Proveedora", "XAXX010101000",
		time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(2320.00), "<cfdi:Comprobante/>")
	require.NoError(t, err)
	return doc
}

func TestFiscalDocumentRepository_InsertIfAbsent(t *testing.T) {
	db := setupFiscalDocumentTestDB(t)
	repo := NewGormFiscalDocumentRepository(db)
	ctx := context.Background()

	t.Run("duplicate fiscal uuid is rejected silently", func(t *testing.T) {
		fiscalUUID := uuid.NewString()

		inserted, err := repo.InsertIfAbsent(ctx, newFiscalDocument(t, fiscalUUID, fiscal.KindReceived))
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = repo.InsertIfAbsent(ctx, newFiscalDocument(t, fiscalUUID, fiscal.KindReceived))
		require.NoError(t, err)
		assert.False(t, inserted)

		found, err := repo.FindByFiscalUUID(ctx, fiscalUUID)
		require.NoError(t, err)
		assert.Equal(t, fiscalUUID, found.FiscalUUID)
	})
}

func TestFiscalDocumentRepository_FindAll(t *testing.T) {
	db := setupFiscalDocumentTestDB(t)
	repo := NewGormFiscalDocumentRepository(db)
	ctx := context.Background()

	received := newFiscalDocument(t, uuid.NewString(), fiscal.KindReceived)
	issued := newFiscalDocument(t, uuid.NewString(), fiscal.KindIssued)
	for _, d := range []*fiscal.Document{received, issued} {
		inserted, err := repo.InsertIfAbsent(ctx, d)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	t.Run("filters by kind", func(t *testing.T) {
		kind := fiscal.KindIssued
		result, err := repo.FindAll(ctx, fiscal.DocumentFilter{Kind: &kind}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
		require.Len(t, result.Items, 1)
		assert.Equal(t, issued.ID, result.Items[0].ID)
	})

	t.Run("filters by rfc on either side", func(t *testing.T) {
		result, err := repo.FindAll(ctx, fiscal.DocumentFilter{RFC: "XAXX010101000"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
	})
}

func TestFiscalDocumentRepository_OptimisticLocking(t *testing.T) {
	db := setupFiscalDocumentTestDB(t)
	repo := NewGormFiscalDocumentRepository(db)
	ctx := context.Background()

	doc := newFiscalDocument(t, uuid.NewString(), fiscal.KindReceived)
	inserted, err := repo.InsertIfAbsent(ctx, doc)
	require.NoError(t, err)
	require.True(t, inserted)

	fresh, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)

	fresh.IssuerName = "Proveedora del Norte SA"
	require.NoError(t, repo.Save(ctx, fresh))

	stale.IssuerName = "Otra Razon Social"
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)

	found, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Proveedora del Norte SA", found.IssuerName)
	assert.Equal(t, 2, found.Version)
}

func TestFiscalDocumentRepository_Delete(t *testing.T) {
	db := setupFiscalDocumentTestDB(t)
	repo := NewGormFiscalDocumentRepository(db)
	ctx := context.Background()

	doc := newFiscalDocument(t, uuid.NewString(), fiscal.KindReceived)
	inserted, err := repo.InsertIfAbsent(ctx, doc)
	require.NoError(t, err)
	require.True(t, inserted)

	require.NoError(t, repo.Delete(ctx, doc.ID))
	_, err = repo.FindByID(ctx, doc.ID)
	assert.Equal(t, shared.ErrNotFound, err)
}
