package services

import (
	"testing"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func validCancelInput() *CancelInput {
	return &CancelInput{Reason: "letter printed with the wrong beneficiary", DeclarationConfirmed: true}
}

func backdateInstruction(t *testing.T, db *gorm.DB, id uint, days int) {
	t.Helper()
	old := time.Now().AddDate(0, 0, -days)
	require.NoError(t, db.Model(&models.LGInstruction{}).Where("id = ?", id).UpdateColumn("created_at", old).Error)
}

func TestCancelExtensionRevertsExpiry(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	originalExpiry := lg.ExpiryDate
	instruction, _, err := transitions.Extend(testCtx(), db, lg.ID, &ExtendInput{
		NewExpiryDate: originalExpiry.AddDate(0, 6, 0),
	}, makerActor(f))
	require.NoError(t, err)

	canceled, reverted, err := cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)

	assert.Equal(t, models.InstructionStatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, "letter printed with the wrong beneficiary", canceled.CancellationReason)
	assert.True(t, reverted.ExpiryDate.Equal(originalExpiry))
	assert.Equal(t, 6, reverted.PeriodMonths)

	assert.Contains(t, auditActions(t, db, lg.ID), models.AuditInstructionCanceled)
}

func TestCancelReleaseRestoresStatus(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)
	require.Equal(t, models.LGStatusReleased, reloadLG(t, db, lg.ID).Status)

	_, reverted, err := cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)
	assert.Equal(t, models.LGStatusValid, reverted.Status)
}

func TestCancelFullLiquidationRestoresAmountAndStatus(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Liquidate(testCtx(), db, lg.ID, &LiquidateInput{}, makerActor(f))
	require.NoError(t, err)

	_, reverted, err := cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)
	assert.Equal(t, models.LGStatusValid, reverted.Status)
	assert.True(t, reverted.Amount.Equal(decimal.NewFromInt(10000)))
}

func TestCancelPartialLiquidationRestoresAmountOnly(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	newAmount := decimal.NewFromInt(4000)
	instruction, _, err := transitions.Liquidate(testCtx(), db, lg.ID, &LiquidateInput{NewAmount: &newAmount}, makerActor(f))
	require.NoError(t, err)

	_, reverted, err := cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)
	assert.Equal(t, models.LGStatusValid, reverted.Status)
	assert.True(t, reverted.Amount.Equal(decimal.NewFromInt(10000)))
}

func TestCancelActivationRestoresOperationalStatus(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	nonOperative := models.OperationalStatusNonOperative
	lg := seedLG(t, db, f, 1, func(lg *models.LGRecord) {
		lg.Type = models.LGTypeAdvancePayment
		lg.OperationalStatus = &nonOperative
	})
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Activate(testCtx(), db, lg.ID, &ActivateInput{}, makerActor(f))
	require.NoError(t, err)

	_, reverted, err := cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)
	require.NotNil(t, reverted.OperationalStatus)
	assert.Equal(t, models.OperationalStatusNonOperative, *reverted.OperationalStatus)
}

func TestCancelRequiresDeclarationAndReason(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)

	_, _, err = cancellations.Cancel(testCtx(), db, instruction.ID, &CancelInput{Reason: "typo"}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrDeclarationRequired)

	_, _, err = cancellations.Cancel(testCtx(), db, instruction.ID, &CancelInput{DeclarationConfirmed: true}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Neither attempt touched the record.
	assert.Equal(t, models.LGStatusReleased, reloadLG(t, db, lg.ID).Status)
}

func TestCancelTwiceFails(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)

	_, _, err = cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)

	_, _, err = cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	assert.ErrorIs(t, err, domain.ErrInstructionNotIssued)
}

func TestCancelOnlyLatestInstruction(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	extension, _, err := transitions.Extend(testCtx(), db, lg.ID, &ExtendInput{
		NewExpiryDate: lg.ExpiryDate.AddDate(0, 3, 0),
	}, makerActor(f))
	require.NoError(t, err)

	_, _, err = transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)

	_, _, err = cancellations.Cancel(testCtx(), db, extension.ID, validCancelInput(), makerActor(f))
	assert.ErrorIs(t, err, domain.ErrNotLatestInstruction)
}

func TestCancelRejectsReminders(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	reminder, _, err := transitions.EmitReminder(testCtx(), db, lg.ID, makerActor(f))
	require.NoError(t, err)

	_, _, err = cancellations.Cancel(testCtx(), db, reminder.ID, validCancelInput(), makerActor(f))
	assert.ErrorIs(t, err, domain.ErrInstructionNotLetter)
}

func TestCancelWindowElapsed(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)
	backdateInstruction(t, db, instruction.ID, defaultCancellationWindowDays+1)

	_, _, err = cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	assert.ErrorIs(t, err, domain.ErrCancellationWindowPast)
}

func TestCancelWindowHonorsCustomerOverride(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	customerID := f.customer.ID
	require.NoError(t, db.Create(&models.CustomerSetting{
		CustomerID: &customerID,
		Key:        models.SettingCancellationWindowDays,
		Value:      "30",
	}).Error)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)
	backdateInstruction(t, db, instruction.ID, 10)

	_, reverted, err := cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	require.NoError(t, err)
	assert.Equal(t, models.LGStatusValid, reverted.Status)
}

func TestCancelFailsLoudlyWithoutRollbackState(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	transitions := newTestTransitions(db)
	cancellations := NewCancellationService(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)

	// Simulate a row persisted without its prior-state record.
	require.NoError(t, db.Model(&models.LGInstruction{}).Where("id = ?", instruction.ID).
		UpdateColumn("rollback_state", nil).Error)

	_, _, err = cancellations.Cancel(testCtx(), db, instruction.ID, validCancelInput(), makerActor(f))
	assert.ErrorIs(t, err, domain.ErrRollbackStateMissing)
	assert.Equal(t, models.LGStatusReleased, reloadLG(t, db, lg.ID).Status)
}
