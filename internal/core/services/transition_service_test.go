package services

import (
	"testing"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendPushesExpiryAndEmitsInstruction(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	newExpiry := lg.ExpiryDate.AddDate(0, 3, 0)
	instruction, updated, err := svc.Extend(testCtx(), db, lg.ID, &ExtendInput{
		NewExpiryDate: newExpiry,
		Notes:         "extended per beneficiary request",
	}, makerActor(f))
	require.NoError(t, err)

	assert.Equal(t, models.InstructionExtension, instruction.Type)
	assert.Equal(t, models.InstructionStatusIssued, instruction.Status)
	assert.Equal(t, "01", instruction.SubCode)
	assert.Contains(t, instruction.Serial, "EXT")

	assert.Equal(t, models.LGStatusValid, updated.Status)
	assert.True(t, updated.ExpiryDate.Equal(newExpiry))
	assert.Equal(t, 9, updated.PeriodMonths)

	require.NotNil(t, instruction.RollbackState)
	require.NotNil(t, instruction.RollbackState.OldExpiryDate)
	assert.True(t, instruction.RollbackState.OldExpiryDate.Equal(lg.ExpiryDate))

	assert.Contains(t, auditActions(t, db, lg.ID), models.AuditLgExtended)
}

func TestExtendRejectsEarlierOrEqualExpiry(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	_, _, err := svc.Extend(testCtx(), db, lg.ID, &ExtendInput{NewExpiryDate: lg.ExpiryDate}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrExpiryNotExtended)

	_, _, err = svc.Extend(testCtx(), db, lg.ID, &ExtendInput{NewExpiryDate: lg.ExpiryDate.AddDate(0, -1, 0)}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrExpiryNotExtended)
}

func TestExtendRejectsMissingOrNonValidRecord(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := newTestTransitions(db)

	_, _, err := svc.Extend(testCtx(), db, 9999, &ExtendInput{NewExpiryDate: time.Now()}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrLGNotFound)

	released := seedLG(t, db, f, 1, func(lg *models.LGRecord) { lg.Status = models.LGStatusReleased })
	_, _, err = svc.Extend(testCtx(), db, released.ID, &ExtendInput{NewExpiryDate: released.ExpiryDate.AddDate(1, 0, 0)}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrLGNotValid)
}

func TestReleaseIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	instruction, updated, err := svc.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)
	assert.Equal(t, models.LGStatusReleased, updated.Status)
	assert.Equal(t, models.InstructionRelease, instruction.Type)
	require.NotNil(t, instruction.RollbackState)
	require.NotNil(t, instruction.RollbackState.OriginalStatus)
	assert.Equal(t, models.LGStatusValid, *instruction.RollbackState.OriginalStatus)

	// A released record accepts no further release.
	_, _, err = svc.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrLGNotValid)
}

func TestLiquidateFullZeroesAmount(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	instruction, updated, err := svc.Liquidate(testCtx(), db, lg.ID, &LiquidateInput{}, makerActor(f))
	require.NoError(t, err)

	assert.Equal(t, models.LGStatusLiquidated, updated.Status)
	assert.True(t, updated.Amount.IsZero())
	assert.Equal(t, "01", instruction.SubCode)
	assert.Equal(t, "full", instruction.TemplateData["liquidation_kind"])

	require.NotNil(t, instruction.RollbackState)
	assert.False(t, instruction.RollbackState.PartialLiquidation)
	require.NotNil(t, instruction.RollbackState.OriginalAmount)
	assert.True(t, instruction.RollbackState.OriginalAmount.Equal(decimal.NewFromInt(10000)))
	require.NotNil(t, instruction.RollbackState.OriginalStatus)
}

func TestLiquidatePartialLeavesRecordValid(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	newAmount := decimal.NewFromInt(4000)
	instruction, updated, err := svc.Liquidate(testCtx(), db, lg.ID, &LiquidateInput{NewAmount: &newAmount}, makerActor(f))
	require.NoError(t, err)

	assert.Equal(t, models.LGStatusValid, updated.Status)
	assert.True(t, updated.Amount.Equal(newAmount))
	assert.Equal(t, "02", instruction.SubCode)
	assert.Equal(t, "partial", instruction.TemplateData["liquidation_kind"])
	require.NotNil(t, instruction.RollbackState)
	assert.True(t, instruction.RollbackState.PartialLiquidation)
	assert.Nil(t, instruction.RollbackState.OriginalStatus)
}

func TestLiquidatePartialBoundaries(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	cases := []decimal.Decimal{
		decimal.NewFromInt(10000), // equal to current amount
		decimal.NewFromInt(12000), // above current amount
		decimal.Zero,
		decimal.NewFromInt(-5),
	}
	for _, amount := range cases {
		amount := amount
		_, _, err := svc.Liquidate(testCtx(), db, lg.ID, &LiquidateInput{NewAmount: &amount}, makerActor(f))
		assert.ErrorIs(t, err, domain.ErrInvalidLiquidation, "amount %s", amount)
	}

	assert.True(t, reloadLG(t, db, lg.ID).Amount.Equal(decimal.NewFromInt(10000)))
}

func TestDecreaseAmount(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	instruction, updated, err := svc.DecreaseAmount(testCtx(), db, lg.ID, &DecreaseInput{
		DecreaseBy: decimal.NewFromInt(3000),
	}, makerActor(f))
	require.NoError(t, err)

	assert.Equal(t, models.LGStatusValid, updated.Status)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(7000)))
	assert.Equal(t, models.InstructionDecrease, instruction.Type)
	assert.Equal(t, "3000.00", instruction.TemplateData["decrease_amount"])
	require.NotNil(t, instruction.RollbackState)
	require.NotNil(t, instruction.RollbackState.OriginalAmount)
	assert.True(t, instruction.RollbackState.OriginalAmount.Equal(decimal.NewFromInt(10000)))
}

func TestDecreaseAmountRejectsOutOfRangeDelta(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	for _, delta := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1), decimal.NewFromInt(10000), decimal.NewFromInt(20000)} {
		_, _, err := svc.DecreaseAmount(testCtx(), db, lg.ID, &DecreaseInput{DecreaseBy: delta}, makerActor(f))
		assert.ErrorIs(t, err, domain.ErrInvalidDecrease, "delta %s", delta)
	}
}

func TestActivateNonOperative(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	nonOperative := models.OperationalStatusNonOperative
	lg := seedLG(t, db, f, 1, func(lg *models.LGRecord) {
		lg.Type = models.LGTypeAdvancePayment
		lg.OperationalStatus = &nonOperative
	})
	svc := newTestTransitions(db)

	instruction, updated, err := svc.Activate(testCtx(), db, lg.ID, &ActivateInput{}, makerActor(f))
	require.NoError(t, err)

	require.NotNil(t, updated.OperationalStatus)
	assert.Equal(t, models.OperationalStatusOperative, *updated.OperationalStatus)
	assert.Equal(t, models.InstructionActivation, instruction.Type)
	require.NotNil(t, instruction.RollbackState)
	require.NotNil(t, instruction.RollbackState.OriginalOperational)
	assert.Equal(t, models.OperationalStatusNonOperative, *instruction.RollbackState.OriginalOperational)

	// Already operative now.
	_, _, err = svc.Activate(testCtx(), db, lg.ID, &ActivateInput{}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrNotNonOperative)
}

func TestActivateRejectsOtherGuaranteeTypes(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	_, _, err := svc.Activate(testCtx(), db, lg.ID, &ActivateInput{}, makerActor(f))
	assert.ErrorIs(t, err, domain.ErrNotAdvancePayment)
}

func TestEmitReminder(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestTransitions(db)

	instruction, _, err := svc.EmitReminder(testCtx(), db, lg.ID, &Actor{MakerUserID: 0})
	require.NoError(t, err)

	assert.Equal(t, models.InstructionReminder, instruction.Type)
	assert.Equal(t, models.InstructionStatusReminderIssued, instruction.Status)
	assert.Equal(t, "00", instruction.SubCode)
	assert.False(t, instruction.ProducesBankLetter())

	// Sweep-driven reminders carry no actor in the audit trail.
	var entry models.AuditLog
	require.NoError(t, db.Where("lg_record_id = ? AND action_type = ?", lg.ID, models.AuditLgReminderSent).First(&entry).Error)
	assert.Nil(t, entry.ActorUserID)
}

func TestRecipientResolution(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)

	t.Run("local issuing bank", func(t *testing.T) {
		lg := seedLG(t, db, f, 1)
		name, address := resolveRecipient(testCtx(), db, lg)
		assert.Equal(t, f.bank.Name, name)
		assert.Equal(t, f.bank.Address, address)
	})

	t.Run("advised foreign guarantee goes to communication bank", func(t *testing.T) {
		advised := models.AdvisingStatusAdvised
		lg := seedLG(t, db, f, 2, func(lg *models.LGRecord) {
			lg.IssuingBankID = nil
			lg.ForeignBankName = "Bank of Onshore"
			lg.ForeignBankAddress = "12 Harbor Way"
			lg.AdvisingStatus = &advised
			lg.CommunicationBankID = &f.bank.ID
		})
		name, _ := resolveRecipient(testCtx(), db, lg)
		assert.Equal(t, f.bank.Name, name)
	})

	t.Run("unadvised foreign guarantee goes to foreign bank", func(t *testing.T) {
		notAdvised := models.AdvisingStatusNotAdvised
		lg := seedLG(t, db, f, 3, func(lg *models.LGRecord) {
			lg.IssuingBankID = nil
			lg.ForeignBankName = "Bank of Onshore"
			lg.ForeignBankAddress = "12 Harbor Way"
			lg.AdvisingStatus = &notAdvised
			lg.CommunicationBankID = &f.bank.ID
		})
		name, address := resolveRecipient(testCtx(), db, lg)
		assert.Equal(t, "Bank of Onshore", name)
		assert.Equal(t, "12 Harbor Way", address)
	})

	t.Run("nothing resolvable falls back to generic recipient", func(t *testing.T) {
		lg := seedLG(t, db, f, 4, func(lg *models.LGRecord) {
			lg.IssuingBankID = nil
		})
		name, address := resolveRecipient(testCtx(), db, lg)
		assert.Equal(t, genericRecipient, name)
		assert.Empty(t, address)
	})
}

func TestMonthsBetween(t *testing.T) {
	jan15 := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 6, monthsBetween(jan15, jan15.AddDate(0, 6, 0)))
	assert.Equal(t, 5, monthsBetween(jan15, time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, monthsBetween(jan15, jan15))
	assert.Equal(t, 0, monthsBetween(jan15, jan15.AddDate(0, -2, 0)))
}
