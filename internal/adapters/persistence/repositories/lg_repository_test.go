package repositories

import (
	"fmt"
	"testing"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedRecord(t *testing.T, db *gorm.DB, customerID, seq uint, mutators ...func(*models.LGRecord)) *models.LGRecord {
	t.Helper()
	lg := &models.LGRecord{
		BusinessNumber:         fmt.Sprintf("LG-%d-%04d", customerID, seq),
		CustomerID:             customerID,
		SequenceNumber:         seq,
		Amount:                 decimal.NewFromInt(10000),
		CurrencyID:             1,
		IssuanceDate:           time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		ExpiryDate:             time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		Status:                 models.LGStatusValid,
		Type:                   models.LGTypePerformanceBond,
		LgCategoryID:           1,
		InternalOwnerContactID: 1,
	}
	for _, mutate := range mutators {
		mutate(lg)
	}
	require.NoError(t, db.Create(lg).Error)
	return lg
}

func TestNextSequenceNumberIsPerCustomer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLGRepository(db)

	seq, err := repo.NextSequenceNumber(testCtx(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), seq)

	seedRecord(t, db, 1, 1)
	seedRecord(t, db, 1, 2)
	seedRecord(t, db, 2, 1)

	seq, err = repo.NextSequenceNumber(testCtx(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(3), seq)

	seq, err = repo.NextSequenceNumber(testCtx(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), seq)
}

func TestNextSequenceNumberCountsSoftDeletedRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLGRepository(db)

	lg := seedRecord(t, db, 1, 1)
	require.NoError(t, db.Delete(lg).Error)

	// Deleted records keep their sequence number claimed; reuse would
	// collide in old instruction serials.
	seq, err := repo.NextSequenceNumber(testCtx(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), seq)
}

func TestBusinessNumberUniqueIndex(t *testing.T) {
	db := setupTestDB(t)

	seedRecord(t, db, 1, 1)
	dup := &models.LGRecord{
		BusinessNumber:         "LG-1-0001",
		CustomerID:             1,
		SequenceNumber:         9,
		Amount:                 decimal.NewFromInt(500),
		CurrencyID:             1,
		IssuanceDate:           time.Now(),
		ExpiryDate:             time.Now().AddDate(1, 0, 0),
		Status:                 models.LGStatusValid,
		Type:                   models.LGTypeBidBond,
		LgCategoryID:           1,
		InternalOwnerContactID: 1,
	}
	err := db.Create(dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestListExpiryCandidates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLGRepository(db)
	now := time.Now()

	overdue := seedRecord(t, db, 1, 1, func(lg *models.LGRecord) {
		lg.ExpiryDate = now.AddDate(0, 0, -1)
	})
	seedRecord(t, db, 1, 2, func(lg *models.LGRecord) {
		lg.ExpiryDate = now.AddDate(0, 0, -1)
		lg.AutoRenewal = true
	})
	seedRecord(t, db, 1, 3, func(lg *models.LGRecord) {
		lg.ExpiryDate = now.AddDate(0, 0, -1)
		lg.Status = models.LGStatusReleased
	})
	seedRecord(t, db, 1, 4, func(lg *models.LGRecord) {
		lg.ExpiryDate = now.AddDate(0, 1, 0)
	})

	candidates, err := repo.ListExpiryCandidates(testCtx(), now)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, overdue.ID, candidates[0].ID)
}

func TestContactGetOrCreateDeduplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db)

	first, err := repo.GetOrCreate(testCtx(), &models.InternalOwnerContact{
		CustomerID: 1,
		Email:      "owner@acme.test",
		Phone:      "+66-2-555-0100",
	})
	require.NoError(t, err)

	second, err := repo.GetOrCreate(testCtx(), &models.InternalOwnerContact{
		CustomerID: 1,
		Email:      "owner@acme.test",
		Phone:      "+66-2-555-9999", // ignored, the existing row wins
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "+66-2-555-0100", second.Phone)

	// Same email under another customer is a distinct contact.
	other, err := repo.GetOrCreate(testCtx(), &models.InternalOwnerContact{
		CustomerID: 2,
		Email:      "owner@acme.test",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}
