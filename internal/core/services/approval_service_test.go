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

func submitRelease(t *testing.T, svc *ApprovalService, f *fixtures, lgID uint) *models.ApprovalRequest {
	t.Helper()
	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   lgID,
		ActionType: models.ActionRelease,
		Details:    models.JSONMap{"notes": "contract fulfilled"},
	}, f.maker.ID)
	require.NoError(t, err)
	return request
}

func backdateRequest(t *testing.T, db *gorm.DB, id uint, days int) {
	t.Helper()
	old := time.Now().AddDate(0, 0, -days)
	require.NoError(t, db.Model(&models.ApprovalRequest{}).Where("id = ?", id).UpdateColumn("created_at", old).Error)
}

func reloadRequest(t *testing.T, db *gorm.DB, id uint) *models.ApprovalRequest {
	t.Helper()
	var request models.ApprovalRequest
	require.NoError(t, db.First(&request, id).Error)
	return &request
}

func TestSubmitSnapshotsTargetEntity(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)

	assert.Equal(t, models.ApprovalStatusPending, request.Status)
	assert.Equal(t, f.maker.ID, request.MakerUserID)
	assert.Equal(t, lg.BusinessNumber, request.Snapshot["business_number"])
	assert.Equal(t, "10000.00", request.Snapshot["amount"])
	assert.Equal(t, models.LGStatusValid, request.Snapshot["status"])
}

// seedForeignLG inserts a VALID record owned by a different customer, reusing
// the shared master data.
func seedForeignLG(t *testing.T, db *gorm.DB, f *fixtures) *models.LGRecord {
	t.Helper()
	rival := &models.Customer{Name: "Rival Industries", EntityCode: "RV01", IsActive: true}
	require.NoError(t, db.Create(rival).Error)
	contact := &models.InternalOwnerContact{
		CustomerID: rival.ID,
		Email:      "owner@rival.test",
	}
	require.NoError(t, db.Create(contact).Error)

	issuance := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	lg := &models.LGRecord{
		BusinessNumber:         "LG-RIVAL-0001",
		CustomerID:             rival.ID,
		SequenceNumber:         1,
		Amount:                 decimal.NewFromInt(25000),
		CurrencyID:             f.currency.ID,
		IssuanceDate:           issuance,
		ExpiryDate:             issuance.AddDate(1, 0, 0),
		PeriodMonths:           12,
		Status:                 models.LGStatusValid,
		Type:                   models.LGTypePerformanceBond,
		IssuingBankID:          &f.bank.ID,
		LgCategoryID:           f.category.ID,
		InternalOwnerContactID: contact.ID,
		BeneficiaryName:        "Coastal Works Dept",
	}
	require.NoError(t, db.Create(lg).Error)
	return lg
}

func TestSubmitRejectsForeignCustomerTarget(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	foreign := seedForeignLG(t, db, f)
	svc := newTestApprovals(db)

	_, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   foreign.ID,
		ActionType: models.ActionRelease,
	}, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Nothing was persisted and the other customer's record is untouched.
	var count int64
	require.NoError(t, db.Model(&models.ApprovalRequest{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, models.LGStatusValid, reloadLG(t, db, foreign.ID).Status)
}

func TestSubmitRejectsForeignOwnerContactTarget(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := newTestApprovals(db)

	rival := &models.Customer{Name: "Rival Industries", EntityCode: "RV01", IsActive: true}
	require.NoError(t, db.Create(rival).Error)
	contact := &models.InternalOwnerContact{CustomerID: rival.ID, Email: "owner@rival.test"}
	require.NoError(t, db.Create(contact).Error)

	_, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityOwnerContact,
		EntityID:   contact.ID,
		ActionType: models.ActionUpdateOwnerContact,
		Details:    models.JSONMap{"phone": "+66-2-555-0999"},
	}, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSubmitRejectsUnknownActionAndMissingTarget(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := newTestApprovals(db)

	_, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   1,
		ActionType: "TELEPORT",
	}, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrUnregisteredAction)

	_, err = svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   9999,
		ActionType: models.ActionRelease,
	}, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotDerivable)
}

func TestApproveAppliesActionAndLinksInstruction(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)

	approved, instruction, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusApproved, approved.Status)
	require.NotNil(t, approved.CheckerUserID)
	assert.Equal(t, f.checker.ID, *approved.CheckerUserID)
	assert.NotNil(t, approved.ResolvedAt)

	require.NotNil(t, instruction)
	assert.Equal(t, models.InstructionRelease, instruction.Type)
	require.NotNil(t, approved.InstructionID)
	assert.Equal(t, instruction.ID, *approved.InstructionID)
	require.NotNil(t, instruction.ApprovalRequestID)
	assert.Equal(t, request.ID, *instruction.ApprovalRequestID)
	require.NotNil(t, instruction.CheckerUserID)
	assert.Equal(t, f.checker.ID, *instruction.CheckerUserID)

	assert.Equal(t, models.LGStatusReleased, reloadLG(t, db, lg.ID).Status)
}

func TestApproveExtendUsesRequestDetails(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	newExpiry := lg.ExpiryDate.AddDate(0, 4, 0)
	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   lg.ID,
		ActionType: models.ActionExtend,
		Details:    models.JSONMap{"new_expiry_date": newExpiry.Format(dateLayout)},
	}, f.maker.ID)
	require.NoError(t, err)

	_, instruction, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstructionExtension, instruction.Type)
	assert.Equal(t, newExpiry.Format(dateLayout), reloadLG(t, db, lg.ID).ExpiryDate.Format(dateLayout))
}

func TestApproveDecreaseUsesRequestDetails(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   lg.ID,
		ActionType: models.ActionDecreaseAmount,
		Details:    models.JSONMap{"decrease_by": "3000"},
	}, f.maker.ID)
	require.NoError(t, err)

	_, _, err = svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)
	assert.True(t, reloadLG(t, db, lg.ID).Amount.Equal(decimal.NewFromInt(7000)))
}

func TestApproveAmendEmitsNoInstruction(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   lg.ID,
		ActionType: models.ActionAmend,
		Details:    models.JSONMap{"beneficiary_name": "Harbor Port Authority"},
	}, f.maker.ID)
	require.NoError(t, err)

	approved, instruction, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)
	assert.Nil(t, instruction)
	assert.Nil(t, approved.InstructionID)
	assert.Equal(t, "Harbor Port Authority", reloadLG(t, db, lg.ID).BeneficiaryName)
}

func TestSelfApprovalRejectedAndAudited(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	// The maker holds a checker role, so only the identity rule blocks them.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", f.maker.ID).
		UpdateColumn("role", models.RoleChecker).Error)

	request := submitRelease(t, svc, f, lg.ID)

	_, _, err := svc.Approve(testCtx(), request.ID, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrSelfApproval)
	assert.Equal(t, models.ApprovalStatusPending, reloadRequest(t, db, request.ID).Status)

	_, err = svc.Reject(testCtx(), request.ID, f.maker.ID, "self cleanup")
	assert.ErrorIs(t, err, domain.ErrSelfApproval)
	assert.Equal(t, models.ApprovalStatusPending, reloadRequest(t, db, request.ID).Status)

	// The violation itself is on the audit trail, twice.
	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action_type = ?", models.AuditSelfApprovalRejected).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	// The LG is untouched.
	assert.Equal(t, models.LGStatusValid, reloadLG(t, db, lg.ID).Status)
}

func TestApproveRequiresCheckerRole(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)

	_, _, err := svc.Approve(testCtx(), request.ID, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrCheckerRoleRequired)
}

func TestApproveInvalidatesPendingSiblings(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	winner := submitRelease(t, svc, f, lg.ID)
	sibling, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   lg.ID,
		ActionType: models.ActionExtend,
		Details:    models.JSONMap{"new_expiry_date": lg.ExpiryDate.AddDate(0, 3, 0).Format(dateLayout)},
	}, f.maker.ID)
	require.NoError(t, err)

	_, _, err = svc.Approve(testCtx(), winner.ID, f.checker.ID)
	require.NoError(t, err)

	loser := reloadRequest(t, db, sibling.ID)
	assert.Equal(t, models.ApprovalStatusInvalidated, loser.Status)
	require.NotNil(t, loser.InvalidatedByRequestID)
	assert.Equal(t, winner.ID, *loser.InvalidatedByRequestID)
	assert.NotNil(t, loser.ResolvedAt)

	// The invalidated sibling cannot be resolved afterwards.
	_, _, err = svc.Approve(testCtx(), sibling.ID, f.checker.ID)
	assert.ErrorIs(t, err, domain.ErrApprovalNotPending)
}

func TestResolvedRequestCannotBeResolvedAgain(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)
	_, _, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)

	_, err = svc.Reject(testCtx(), request.ID, f.checker.ID, "changed my mind")
	assert.ErrorIs(t, err, domain.ErrApprovalNotPending)

	_, _, err = svc.Approve(testCtx(), request.ID, f.checker.ID)
	assert.ErrorIs(t, err, domain.ErrApprovalNotPending)
}

func TestRejectLeavesTargetUntouched(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)
	rejected, err := svc.Reject(testCtx(), request.ID, f.checker.ID, "wrong record")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusRejected, rejected.Status)
	assert.Equal(t, "wrong record", rejected.ResolutionReason)
	assert.Equal(t, models.LGStatusValid, reloadLG(t, db, lg.ID).Status)
}

func TestWithdrawOnlyByMaker(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)

	_, err := svc.Withdraw(testCtx(), request.ID, f.checker.ID)
	assert.ErrorIs(t, err, domain.ErrNotRequestMaker)

	withdrawn, err := svc.Withdraw(testCtx(), request.ID, f.maker.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusWithdrawn, withdrawn.Status)
}

func TestWithdrawWindowElapses(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)
	backdateRequest(t, db, request.ID, defaultMaxPendingDays+1)

	_, err := svc.Withdraw(testCtx(), request.ID, f.maker.ID)
	assert.ErrorIs(t, err, domain.ErrWithdrawWindowPast)
}

func TestApproveVanishedTargetInvalidatesRequest(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)
	require.NoError(t, db.Delete(&models.LGRecord{}, lg.ID).Error)

	_, _, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	assert.ErrorIs(t, err, domain.ErrTargetEntityVanished)

	assert.Equal(t, models.ApprovalStatusInvalidated, reloadRequest(t, db, request.ID).Status)
}

func TestApproveRecordsDriftWithoutBlocking(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)

	// The record changes underneath the pending request.
	require.NoError(t, db.Model(&models.LGRecord{}).Where("id = ?", lg.ID).
		UpdateColumn("beneficiary_name", "Somebody Else Entirely").Error)

	approved, _, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, approved.Status)

	var entry models.AuditLog
	require.NoError(t, db.Where("action_type = ?", models.AuditApprovalDriftDetected).First(&entry).Error)
	assert.Contains(t, entry.Details, "drifted_fields")
}

func TestApproveWithoutDriftWritesNoDriftAudit(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)
	_, _, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action_type = ?", models.AuditApprovalDriftDetected).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApproveFailedPreconditionLeavesRequestPending(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)

	request := submitRelease(t, svc, f, lg.ID)

	// The record leaves VALID before the checker acts.
	require.NoError(t, db.Model(&models.LGRecord{}).Where("id = ?", lg.ID).
		UpdateColumn("status", models.LGStatusLiquidated).Error)

	_, _, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	assert.ErrorIs(t, err, domain.ErrLGNotValid)
	assert.Equal(t, models.ApprovalStatusPending, reloadRequest(t, db, request.ID).Status)
}

func TestExpireStale(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	other := seedLG(t, db, f, 2)
	svc := newTestApprovals(db)

	stale := submitRelease(t, svc, f, lg.ID)
	fresh := submitRelease(t, svc, f, other.ID)
	backdateRequest(t, db, stale.ID, defaultMaxPendingDays+5)

	expired, err := svc.ExpireStale(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, models.ApprovalStatusAutoExpired, reloadRequest(t, db, stale.ID).Status)
	assert.Equal(t, models.ApprovalStatusPending, reloadRequest(t, db, fresh.ID).Status)

	// Re-running is a no-op.
	expired, err = svc.ExpireStale(testCtx())
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestApproveCancelInstructionRequest(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	svc := newTestApprovals(db)
	transitions := newTestTransitions(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)

	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   lg.ID,
		ActionType: models.ActionCancelInstruction,
		Details: models.JSONMap{
			"instruction_id":        instruction.ID,
			"reason":                "printed against the wrong record",
			"declaration_confirmed": true,
		},
	}, f.maker.ID)
	require.NoError(t, err)

	_, canceled, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)
	require.NotNil(t, canceled)
	assert.Equal(t, models.InstructionStatusCanceled, canceled.Status)
	assert.Equal(t, models.LGStatusValid, reloadLG(t, db, lg.ID).Status)
}

func TestApproveCancelInstructionForOtherRecordFails(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	other := seedLG(t, db, f, 2)
	svc := newTestApprovals(db)
	transitions := newTestTransitions(db)

	instruction, _, err := transitions.Release(testCtx(), db, lg.ID, &ReleaseInput{}, makerActor(f))
	require.NoError(t, err)

	// The request targets one record but names another record's instruction.
	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityLGRecord,
		EntityID:   other.ID,
		ActionType: models.ActionCancelInstruction,
		Details: models.JSONMap{
			"instruction_id":        instruction.ID,
			"reason":                "wrong target",
			"declaration_confirmed": true,
		},
	}, f.maker.ID)
	require.NoError(t, err)

	_, _, err = svc.Approve(testCtx(), request.ID, f.checker.ID)
	assert.ErrorIs(t, err, domain.ErrInstructionWrongRecord)

	assert.Equal(t, models.ApprovalStatusPending, reloadRequest(t, db, request.ID).Status)
	var reloaded models.LGInstruction
	require.NoError(t, db.First(&reloaded, instruction.ID).Error)
	assert.Equal(t, models.InstructionStatusIssued, reloaded.Status)
	assert.Equal(t, models.LGStatusReleased, reloadLG(t, db, lg.ID).Status)
}

func TestApproveUpdateOwnerContactRequest(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := newTestApprovals(db)

	request, err := svc.Submit(testCtx(), &SubmitInput{
		CustomerID: f.customer.ID,
		EntityType: models.EntityOwnerContact,
		EntityID:   f.contact.ID,
		ActionType: models.ActionUpdateOwnerContact,
		Details:    models.JSONMap{"phone": "+66-2-555-0777"},
	}, f.maker.ID)
	require.NoError(t, err)
	assert.Equal(t, f.contact.Email, request.Snapshot["email"])

	_, instruction, err := svc.Approve(testCtx(), request.ID, f.checker.ID)
	require.NoError(t, err)
	assert.Nil(t, instruction)

	var contact models.InternalOwnerContact
	require.NoError(t, db.First(&contact, f.contact.ID).Error)
	assert.Equal(t, "+66-2-555-0777", contact.Phone)
}
