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

	"github.com/mxsuite/backend/internal/domain/sat"
)

// StagedDocumentModelSQLite is a SQLite-compatible version of StagedDocumentModel for testing
type StagedDocumentModelSQLite struct {
	ID          string    `gorm:"primaryKey"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	RequestID   string    `gorm:"not null;index"`
	FiscalUUID  string    `gorm:"not null;uniqueIndex"`
	IssuerRFC   string    `gorm:"not null;index"`
	IssuerName  string
	ReceiverRFC string    `gorm:"not null"`
	IssuedAt    time.Time `gorm:"not null;index"`
	Total       string    `gorm:"not null"`
	RawXML      string    `gorm:"not null"`
	Imported    bool      `gorm:"not null;default:false;index"`
	ImportedAt  *time.Time
}

func (StagedDocumentModelSQLite) TableName() string {
	return "sat_staged_documents"
}

func setupStagedDocumentTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&StagedDocumentModelSQLite{})
	require.NoError(t, err)

	return db
}

func newStagedDocument(t *testing.T, requestID uuid.UUID, fiscalUUID string, issuedAt time.Time) *sat.StagedDocument {
	t.Helper()
	doc, err := sat.NewStagedDocument(requestID, fiscalUUID, "AAA010101AAA", "Proveedora",
		"XAXX010101000", issuedAt, decimal.NewFromFloat(1160.00), "<cfdi:Comprobante/>")
	require.NoError(t, err)
	return doc
}

func TestStagedDocumentRepository_InsertIfAbsent(t *testing.T) {
	db := setupStagedDocumentTestDB(t)
	repo := NewGormStagedDocumentRepository(db)
	ctx := context.Background()
	requestID := uuid.New()

	t.Run("first insert succeeds", func(t *testing.T) {
		doc := newStagedDocument(t, requestID, uuid.NewString(), time.Now().UTC())
		inserted, err := repo.InsertIfAbsent(ctx, doc)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("same fiscal uuid is not inserted twice", func(t *testing.T) {
		fiscalUUID := uuid.NewString()
		first := newStagedDocument(t, requestID, fiscalUUID, time.Now().UTC())
		inserted, err := repo.InsertIfAbsent(ctx, first)
		require.NoError(t, err)
		require.True(t, inserted)

		// Same document arriving from a re-downloaded package
		second := newStagedDocument(t, uuid.New(), fiscalUUID, time.Now().UTC())
		inserted, err = repo.InsertIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.False(t, inserted)

		// The original row is untouched
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, requestID, found.RequestID)
	})
}

func TestStagedDocumentRepository_Listing(t *testing.T) {
	db := setupStagedDocumentTestDB(t)
	repo := NewGormStagedDocumentRepository(db)
	ctx := context.Background()
	requestID := uuid.New()

	older := newStagedDocument(t, requestID, uuid.NewString(), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	newer := newStagedDocument(t, requestID, uuid.NewString(), time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	imported := newStagedDocument(t, requestID, uuid.NewString(), time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC))
	imported.MarkImported()

	for _, d := range []*sat.StagedDocument{older, newer, imported} {
		inserted, err := repo.InsertIfAbsent(ctx, d)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	// A document belonging to another request must not leak in
	foreign := newStagedDocument(t, uuid.New(), uuid.NewString(), time.Now().UTC())
	_, err := repo.InsertIfAbsent(ctx, foreign)
	require.NoError(t, err)

	t.Run("ListByRequest puts pending first, newest issue date first", func(t *testing.T) {
		result, err := repo.ListByRequest(ctx, requestID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		require.Len(t, result.Items, 3)
		assert.Equal(t, newer.ID, result.Items[0].ID)
		assert.Equal(t, older.ID, result.Items[1].ID)
		assert.Equal(t, imported.ID, result.Items[2].ID)
	})

	t.Run("ListPending excludes imported documents", func(t *testing.T) {
		pending, err := repo.ListPending(ctx, requestID)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		for _, d := range pending {
			assert.False(t, d.Imported)
		}
	})

	t.Run("FindByIDs returns the selection", func(t *testing.T) {
		docs, err := repo.FindByIDs(ctx, []uuid.UUID{older.ID, newer.ID})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestStagedDocumentRepository_SaveAndDelete(t *testing.T) {
	db := setupStagedDocumentTestDB(t)
	repo := NewGormStagedDocumentRepository(db)
	ctx := context.Background()
	requestID := uuid.New()

	doc := newStagedDocument(t, requestID, uuid.NewString(), time.Now().UTC())
	inserted, err := repo.InsertIfAbsent(ctx, doc)
	require.NoError(t, err)
	require.True(t, inserted)

	t.Run("marking imported persists", func(t *testing.T) {
		doc.MarkImported()
		require.NoError(t, repo.Save(ctx, doc))

		found, err := repo.FindByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, found.Imported)
		assert.NotNil(t, found.ImportedAt)
	})

	t.Run("DeleteByRequest clears the staging area", func(t *testing.T) {
		require.NoError(t, repo.DeleteByRequest(ctx, requestID))

		pending, err := repo.ListPending(ctx, requestID)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
