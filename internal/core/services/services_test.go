package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database per test. The shared-cache
// DSN keeps every pooled connection on the same database; TranslateError maps
// sqlite unique violations to gorm.ErrDuplicatedKey the way the mysql driver
// does in production.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

type fixtures struct {
	customer *models.Customer
	maker    *models.User
	checker  *models.User
	currency *models.Currency
	category *models.LgCategory
	bank     *models.Bank
	contact  *models.InternalOwnerContact
}

func seedFixtures(t *testing.T, db *gorm.DB) *fixtures {
	t.Helper()
	f := &fixtures{
		customer: &models.Customer{Name: "Acme Trading Co", EntityCode: "AC01", IsActive: true},
		currency: &models.Currency{Code: "USD", Name: "US Dollar", Decimals: 2, IsActive: true},
		category: &models.LgCategory{Code: "P", Name: "Performance", IsActive: true},
		bank:     &models.Bank{Code: "KBANK", Name: "Kasikorn Bank", Swift: "KASITHBK", Address: "1 Ratburana Rd, Bangkok", IsActive: true},
	}
	require.NoError(t, db.Create(f.customer).Error)
	require.NoError(t, db.Create(f.currency).Error)
	require.NoError(t, db.Create(f.category).Error)
	require.NoError(t, db.Create(f.bank).Error)

	f.maker = &models.User{
		CustomerID: f.customer.ID,
		Username:   "maker-" + uuid.NewString()[:8],
		Email:      "maker-" + uuid.NewString()[:8] + "@acme.test",
		Password:   "x",
		Role:       models.RoleMaker,
		IsActive:   true,
	}
	f.checker = &models.User{
		CustomerID: f.customer.ID,
		Username:   "checker-" + uuid.NewString()[:8],
		Email:      "checker-" + uuid.NewString()[:8] + "@acme.test",
		Password:   "x",
		Role:       models.RoleChecker,
		IsActive:   true,
	}
	require.NoError(t, db.Create(f.maker).Error)
	require.NoError(t, db.Create(f.checker).Error)

	f.contact = &models.InternalOwnerContact{
		CustomerID:   f.customer.ID,
		Email:        "owner@acme.test",
		Phone:        "+66-2-555-0100",
		InternalID:   "EMP-1001",
		ManagerEmail: "manager@acme.test",
	}
	require.NoError(t, db.Create(f.contact).Error)
	return f
}

// seedLG inserts a VALID performance bond with a 10000.00 amount expiring in
// six months. Mutators adjust the row before insert.
func seedLG(t *testing.T, db *gorm.DB, f *fixtures, seq uint, mutators ...func(*models.LGRecord)) *models.LGRecord {
	t.Helper()
	issuance := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	expiry := issuance.AddDate(0, 6, 0)
	lg := &models.LGRecord{
		BusinessNumber:         fmt.Sprintf("LG-%s-%04d", uuid.NewString()[:8], seq),
		CustomerID:             f.customer.ID,
		SequenceNumber:         seq,
		Amount:                 decimal.NewFromInt(10000),
		CurrencyID:             f.currency.ID,
		IssuanceDate:           issuance,
		ExpiryDate:             expiry,
		PeriodMonths:           6,
		Status:                 models.LGStatusValid,
		Type:                   models.LGTypePerformanceBond,
		IssuingBankID:          &f.bank.ID,
		LgCategoryID:           f.category.ID,
		InternalOwnerContactID: f.contact.ID,
		BeneficiaryName:        "Metro Rail Authority",
	}
	for _, mutate := range mutators {
		mutate(lg)
	}
	require.NoError(t, db.Create(lg).Error)
	return lg
}

func newTestTransitions(db *gorm.DB) *TransitionService {
	return NewTransitionService(db, NewInstructionWriter(nil, nil), nil)
}

func newTestApprovals(db *gorm.DB) *ApprovalService {
	transitions := newTestTransitions(db)
	lgs := NewLGService(db, nil)
	cancellations := NewCancellationService(db)
	return NewApprovalService(db, transitions, lgs, cancellations, nil, nil)
}

func makerActor(f *fixtures) *Actor {
	return &Actor{MakerUserID: f.maker.ID}
}

func reloadLG(t *testing.T, db *gorm.DB, id uint) *models.LGRecord {
	t.Helper()
	var lg models.LGRecord
	require.NoError(t, db.First(&lg, id).Error)
	return &lg
}

func auditActions(t *testing.T, db *gorm.DB, lgID uint) []string {
	t.Helper()
	var entries []models.AuditLog
	require.NoError(t, db.Where("lg_record_id = ?", lgID).Order("id").Find(&entries).Error)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.ActionType)
	}
	return actions
}

func testCtx() context.Context {
	return context.Background()
}
