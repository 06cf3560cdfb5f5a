package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// defaultMaxPendingDays applies when no setting row overrides it.
const defaultMaxPendingDays = 14

type actionKey struct {
	EntityType string
	ActionType string
}

// actionHandler applies one approved action inside the approval transaction.
// The returned instruction is nil for actions that do not emit a letter.
type actionHandler func(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error)

// ApprovalService owns the maker-checker request lifecycle: submission with
// snapshot, checker resolution with drift detection and handler dispatch,
// cascading invalidation of sibling requests, withdrawal, and auto-expiry.
type ApprovalService struct {
	db            *gorm.DB
	transitions   *TransitionService
	lgs           *LGService
	cancellations *CancellationService
	notifier      Notifier
	store         ObjectStore
	handlers      map[actionKey]actionHandler
}

// NewApprovalService creates a new approval service with every supported
// entity/action pair registered.
func NewApprovalService(db *gorm.DB, transitions *TransitionService, lgs *LGService, cancellations *CancellationService, notifier Notifier, store ObjectStore) *ApprovalService {
	s := &ApprovalService{
		db:            db,
		transitions:   transitions,
		lgs:           lgs,
		cancellations: cancellations,
		notifier:      notifier,
		store:         store,
	}
	s.handlers = map[actionKey]actionHandler{
		{models.EntityLGRecord, models.ActionExtend}:            s.applyExtend,
		{models.EntityLGRecord, models.ActionRelease}:           s.applyRelease,
		{models.EntityLGRecord, models.ActionLiquidate}:         s.applyLiquidate,
		{models.EntityLGRecord, models.ActionDecreaseAmount}:    s.applyDecrease,
		{models.EntityLGRecord, models.ActionActivate}:          s.applyActivate,
		{models.EntityLGRecord, models.ActionAmend}:             s.applyAmend,
		{models.EntityLGRecord, models.ActionChangeOwner}:       s.applyChangeOwner,
		{models.EntityLGRecord, models.ActionCancelInstruction}: s.applyCancelInstruction,
		{models.EntityOwnerContact, models.ActionBulkChangeOwner}:    s.applyBulkChangeOwner,
		{models.EntityOwnerContact, models.ActionUpdateOwnerContact}: s.applyUpdateOwnerContact,
	}
	return s
}

// ============================================================
// Submit
// ============================================================

// SubmitInput represents a maker's proposed action
type SubmitInput struct {
	CustomerID uint
	EntityType string
	EntityID   uint
	ActionType string
	Details    models.JSONMap
}

// Submit snapshots the target entity and persists a PENDING request, then
// notifies the customer's checkers. The notification is best-effort.
func (s *ApprovalService) Submit(ctx context.Context, in *SubmitInput, makerID uint) (*models.ApprovalRequest, error) {
	if _, ok := s.handlers[actionKey{in.EntityType, in.ActionType}]; !ok {
		return nil, domain.ErrUnregisteredAction
	}
	if in.Details == nil {
		in.Details = models.JSONMap{}
	}

	var request *models.ApprovalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, ownerCustomerID, err := s.liveSnapshot(ctx, tx, in.EntityType, in.EntityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSnapshotNotDerivable
			}
			return err
		}
		if ownerCustomerID != in.CustomerID {
			return domain.ErrForbidden
		}

		request = &models.ApprovalRequest{
			MakerUserID:    makerID,
			CustomerID:     in.CustomerID,
			EntityType:     in.EntityType,
			EntityID:       in.EntityID,
			ActionType:     in.ActionType,
			RequestDetails: in.Details,
			Snapshot:       snapshot,
			Status:         models.ApprovalStatusPending,
		}
		if err := repositories.NewApprovalRepository(tx).Create(ctx, request); err != nil {
			return err
		}

		return s.auditRequest(ctx, tx, &makerID, models.AuditApprovalSubmitted, request, models.JSONMap{
			"action_type": in.ActionType,
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcastPending(ctx, request, makerID)
	return request, nil
}

func (s *ApprovalService) broadcastPending(ctx context.Context, request *models.ApprovalRequest, makerID uint) {
	if s.notifier == nil {
		return
	}
	checkers, err := repositories.NewUserRepository(s.db).ListCheckersByCustomer(ctx, request.CustomerID, makerID)
	if err != nil {
		log.Printf("⚠️ Could not list checkers for request %d: %v", request.ID, err)
		return
	}
	var recipients []string
	for _, u := range checkers {
		if u.Email != "" {
			recipients = append(recipients, u.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}
	if err := s.notifier.NotifyPendingApproval(ctx, recipients, request); err != nil {
		log.Printf("⚠️ Pending-approval notification failed for request %d: %v", request.ID, err)
	}
}

// ============================================================
// Approve
// ============================================================

// Approve resolves a PENDING request as approved: it re-fetches the target
// entity, logs snapshot drift, dispatches the registered handler inside one
// transaction, and invalidates every sibling PENDING request on the same
// entity in the same transaction.
func (s *ApprovalService) Approve(ctx context.Context, requestID, checkerID uint) (*models.ApprovalRequest, *models.LGInstruction, error) {
	request, err := s.loadForResolution(ctx, requestID, checkerID)
	if err != nil {
		return nil, nil, err
	}

	if request.MakerUserID == checkerID {
		// The audit entry must survive the failed call, so it gets its
		// own transaction.
		s.auditSelfApproval(ctx, request, checkerID, "approve")
		return nil, nil, domain.ErrSelfApproval
	}

	// Vanished target: the request must end up INVALIDATED even though the
	// call itself fails, so the status flip runs outside the main
	// transaction.
	if _, _, err := s.liveSnapshot(ctx, s.db.WithContext(ctx), request.EntityType, request.EntityID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.invalidateVanished(ctx, request, checkerID)
			return nil, nil, domain.ErrTargetEntityVanished
		}
		return nil, nil, err
	}

	var instruction *models.LGInstruction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		approvalRepo := repositories.NewApprovalRepository(tx)

		// Re-read inside the transaction so a concurrent resolution loses.
		fresh, err := approvalRepo.GetByID(ctx, request.ID)
		if err != nil {
			return err
		}
		if !fresh.IsPending() {
			return domain.ErrApprovalNotPending
		}
		request = fresh

		live, _, err := s.liveSnapshot(ctx, tx, request.EntityType, request.EntityID)
		if err != nil {
			return err
		}
		if drifted := detectDrift(request.Snapshot, live); len(drifted) > 0 {
			log.Printf("⚠️ Snapshot drift on request %d: %v", request.ID, drifted)
			err = s.auditRequest(ctx, tx, &checkerID, models.AuditApprovalDriftDetected, request, models.JSONMap{
				"drifted_fields": drifted,
			})
			if err != nil {
				return err
			}
		}

		actor := &Actor{
			MakerUserID:       request.MakerUserID,
			CheckerUserID:     &checkerID,
			ApprovalRequestID: &request.ID,
		}
		handler := s.handlers[actionKey{request.EntityType, request.ActionType}]
		if handler == nil {
			return domain.ErrUnregisteredAction
		}
		instruction, err = handler(ctx, tx, request, actor)
		if err != nil {
			return err
		}

		now := time.Now()
		request.Status = models.ApprovalStatusApproved
		request.CheckerUserID = &checkerID
		request.ResolvedAt = &now
		if instruction != nil {
			request.InstructionID = &instruction.ID
		}
		if err := approvalRepo.Update(ctx, request); err != nil {
			return err
		}

		details := models.JSONMap{"action_type": request.ActionType}
		if instruction != nil {
			details["instruction_id"] = instruction.ID
			details["serial"] = instruction.Serial
		}
		if err := s.auditRequest(ctx, tx, &checkerID, models.AuditApprovalApproved, request, details); err != nil {
			return err
		}

		return s.invalidateSiblings(ctx, tx, approvalRepo, request, checkerID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifyReadyToPrint(ctx, request, instruction)
	return request, instruction, nil
}

// invalidateSiblings terminates every other PENDING request against the same
// entity, in the approving transaction, so a concurrent approver cannot also
// win against a stale sibling.
func (s *ApprovalService) invalidateSiblings(ctx context.Context, tx *gorm.DB, approvalRepo *repositories.ApprovalRepository, winner *models.ApprovalRequest, checkerID uint) error {
	siblings, err := approvalRepo.ListPendingByEntity(ctx, winner.EntityType, winner.EntityID, winner.ID)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, sibling := range siblings {
		sibling.Status = models.ApprovalStatusInvalidated
		sibling.InvalidatedByRequestID = &winner.ID
		sibling.ResolutionReason = fmt.Sprintf("invalidated by approval of request %d", winner.ID)
		sibling.ResolvedAt = &now
		if err := approvalRepo.Update(ctx, sibling); err != nil {
			return err
		}
		err = s.auditRequest(ctx, tx, &checkerID, models.AuditApprovalInvalidated, sibling, models.JSONMap{
			"invalidated_by_request_id": winner.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ApprovalService) notifyReadyToPrint(ctx context.Context, request *models.ApprovalRequest, instruction *models.LGInstruction) {
	if s.notifier == nil || instruction == nil || !instruction.ProducesBankLetter() {
		return
	}
	maker, err := repositories.NewUserRepository(s.db).GetByID(ctx, request.MakerUserID)
	if err != nil || maker.Email == "" {
		return
	}
	if err := s.notifier.NotifyReadyToPrint(ctx, maker.Email, request, instruction); err != nil {
		log.Printf("⚠️ Ready-to-print notification failed for request %d: %v", request.ID, err)
	}
}

// ============================================================
// Reject / Withdraw / Auto-expire
// ============================================================

// Reject resolves a PENDING request as rejected with a reason and cleans up
// any supporting document the request referenced.
func (s *ApprovalService) Reject(ctx context.Context, requestID, checkerID uint, reason string) (*models.ApprovalRequest, error) {
	request, err := s.loadForResolution(ctx, requestID, checkerID)
	if err != nil {
		return nil, err
	}

	if request.MakerUserID == checkerID {
		s.auditSelfApproval(ctx, request, checkerID, "reject")
		return nil, domain.ErrSelfApproval
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.resolve(ctx, tx, request, checkerID, models.ApprovalStatusRejected, reason, models.AuditApprovalRejected)
	})
	if err != nil {
		return nil, err
	}

	s.deleteSupportingDoc(ctx, request)
	return request, nil
}

// Withdraw lets the maker pull back their own still-PENDING request, as long
// as it is younger than the maximum pending window.
func (s *ApprovalService) Withdraw(ctx context.Context, requestID, makerID uint) (*models.ApprovalRequest, error) {
	request, err := repositories.NewApprovalRepository(s.db).GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrApprovalNotFound
		}
		return nil, err
	}
	if request.MakerUserID != makerID {
		return nil, domain.ErrNotRequestMaker
	}
	if !request.IsPending() {
		return nil, domain.ErrApprovalNotPending
	}

	maxDays, err := repositories.NewSettingRepository(s.db).EffectiveInt(
		ctx, request.CustomerID, models.SettingMaxPendingDays, defaultMaxPendingDays)
	if err != nil {
		return nil, err
	}
	if time.Now().After(request.CreatedAt.AddDate(0, 0, maxDays)) {
		return nil, domain.ErrWithdrawWindowPast
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.resolve(ctx, tx, request, makerID, models.ApprovalStatusWithdrawn, "withdrawn by maker", models.AuditApprovalWithdrawn)
	})
	if err != nil {
		return nil, err
	}

	s.deleteSupportingDoc(ctx, request)
	return request, nil
}

// ExpireStale resolves every PENDING request older than its customer's
// maximum pending window as AUTO_REJECTED_EXPIRED. It is safe to re-run; it
// only ever touches rows still PENDING and past the cutoff.
func (s *ApprovalService) ExpireStale(ctx context.Context) (int, error) {
	pending, err := repositories.NewApprovalRepository(s.db).ListAllPending(ctx)
	if err != nil {
		return 0, err
	}

	settingRepo := repositories.NewSettingRepository(s.db)
	now := time.Now()
	expired := 0

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, request := range pending {
			maxDays, err := settingRepo.EffectiveInt(ctx, request.CustomerID, models.SettingMaxPendingDays, defaultMaxPendingDays)
			if err != nil {
				return err
			}
			if !now.After(request.CreatedAt.AddDate(0, 0, maxDays)) {
				continue
			}
			reason := fmt.Sprintf("auto-rejected: pending longer than %d days", maxDays)
			err = s.resolve(ctx, tx, request, 0, models.ApprovalStatusAutoExpired, reason, models.AuditApprovalExpired)
			if err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, request := range pending {
		if request.Status == models.ApprovalStatusAutoExpired {
			s.deleteSupportingDoc(ctx, request)
		}
	}
	return expired, nil
}

// resolve terminates a PENDING request into a non-approved terminal status.
// An actorID of zero means the system acted (auto-expiry).
func (s *ApprovalService) resolve(ctx context.Context, tx *gorm.DB, request *models.ApprovalRequest, actorID uint, status, reason, auditAction string) error {
	approvalRepo := repositories.NewApprovalRepository(tx)

	fresh, err := approvalRepo.GetByID(ctx, request.ID)
	if err != nil {
		return err
	}
	if !fresh.IsPending() {
		return domain.ErrApprovalNotPending
	}

	now := time.Now()
	request.Status = status
	request.ResolutionReason = reason
	request.ResolvedAt = &now
	if actorID != 0 && status == models.ApprovalStatusRejected {
		request.CheckerUserID = &actorID
	}
	if err := approvalRepo.Update(ctx, request); err != nil {
		return err
	}

	var actor *uint
	if actorID != 0 {
		actor = &actorID
	}
	return s.auditRequest(ctx, tx, actor, auditAction, request, models.JSONMap{
		"reason": reason,
	})
}

// ============================================================
// Handlers
// ============================================================

func (s *ApprovalService) applyExtend(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	newExpiry, ok := detailDate(req.RequestDetails, "new_expiry_date")
	if !ok {
		return nil, domain.ErrInvalidInput
	}
	instruction, _, err := s.transitions.Extend(ctx, tx, req.EntityID, &ExtendInput{
		NewExpiryDate:    newExpiry,
		Notes:            detailString(req.RequestDetails, "notes"),
		SupportingDocURI: detailString(req.RequestDetails, "supporting_doc_uri"),
	}, actor)
	return instruction, err
}

func (s *ApprovalService) applyRelease(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	instruction, _, err := s.transitions.Release(ctx, tx, req.EntityID, &ReleaseInput{
		Notes:            detailString(req.RequestDetails, "notes"),
		SupportingDocURI: detailString(req.RequestDetails, "supporting_doc_uri"),
	}, actor)
	return instruction, err
}

func (s *ApprovalService) applyLiquidate(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	in := &LiquidateInput{
		Notes:            detailString(req.RequestDetails, "notes"),
		SupportingDocURI: detailString(req.RequestDetails, "supporting_doc_uri"),
	}
	if amount, ok := detailDecimal(req.RequestDetails, "new_amount"); ok {
		in.NewAmount = &amount
	}
	instruction, _, err := s.transitions.Liquidate(ctx, tx, req.EntityID, in, actor)
	return instruction, err
}

func (s *ApprovalService) applyDecrease(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	decreaseBy, ok := detailDecimal(req.RequestDetails, "decrease_by")
	if !ok {
		return nil, domain.ErrInvalidInput
	}
	instruction, _, err := s.transitions.DecreaseAmount(ctx, tx, req.EntityID, &DecreaseInput{
		DecreaseBy:       decreaseBy,
		Notes:            detailString(req.RequestDetails, "notes"),
		SupportingDocURI: detailString(req.RequestDetails, "supporting_doc_uri"),
	}, actor)
	return instruction, err
}

func (s *ApprovalService) applyActivate(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	instruction, _, err := s.transitions.Activate(ctx, tx, req.EntityID, &ActivateInput{
		Notes:            detailString(req.RequestDetails, "notes"),
		SupportingDocURI: detailString(req.RequestDetails, "supporting_doc_uri"),
	}, actor)
	return instruction, err
}

func (s *ApprovalService) applyAmend(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	in := &AmendInput{
		AutoRenewal:         detailOptBool(req.RequestDetails, "auto_renewal"),
		BeneficiaryName:     detailOptString(req.RequestDetails, "beneficiary_name"),
		Notes:               detailOptString(req.RequestDetails, "notes"),
		ForeignBankName:     detailOptString(req.RequestDetails, "foreign_bank_name"),
		ForeignBankAddress:  detailOptString(req.RequestDetails, "foreign_bank_address"),
		AdvisingStatus:      detailOptString(req.RequestDetails, "advising_status"),
		CommunicationBankID: detailOptUint(req.RequestDetails, "communication_bank_id"),
	}
	if d, ok := detailDate(req.RequestDetails, "issuance_date"); ok {
		in.IssuanceDate = &d
	}
	if d, ok := detailDate(req.RequestDetails, "expiry_date"); ok {
		in.ExpiryDate = &d
	}
	_, err := s.lgs.Amend(ctx, tx, req.EntityID, in, actor)
	return nil, err
}

func (s *ApprovalService) applyChangeOwner(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	newOwner := detailOptUint(req.RequestDetails, "new_owner_contact_id")
	if newOwner == nil {
		return nil, domain.ErrInvalidInput
	}
	_, err := s.lgs.ChangeOwner(ctx, tx, req.EntityID, *newOwner, actor)
	return nil, err
}

func (s *ApprovalService) applyBulkChangeOwner(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	newOwner := detailOptUint(req.RequestDetails, "new_owner_contact_id")
	if newOwner == nil {
		return nil, domain.ErrInvalidInput
	}
	_, err := s.lgs.BulkChangeOwner(ctx, tx, req.CustomerID, req.EntityID, *newOwner, actor)
	return nil, err
}

func (s *ApprovalService) applyCancelInstruction(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	instructionID := detailOptUint(req.RequestDetails, "instruction_id")
	if instructionID == nil {
		return nil, domain.ErrInvalidInput
	}

	// The snapshot, audit trail and sibling invalidation all name the
	// request's entity, so the canceled instruction must belong to it.
	target, err := repositories.NewInstructionRepository(tx).GetByID(ctx, *instructionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInstructionNotFound
		}
		return nil, err
	}
	if target.LGRecordID != req.EntityID {
		return nil, domain.ErrInstructionWrongRecord
	}

	instruction, _, err := s.cancellations.Cancel(ctx, tx, *instructionID, &CancelInput{
		Reason:               detailString(req.RequestDetails, "reason"),
		DeclarationConfirmed: detailBool(req.RequestDetails, "declaration_confirmed"),
	}, actor)
	return instruction, err
}

func (s *ApprovalService) applyUpdateOwnerContact(ctx context.Context, tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) (*models.LGInstruction, error) {
	_, err := s.lgs.UpdateOwnerContact(ctx, tx, req.EntityID, &UpdateContactInput{
		Phone:        detailOptString(req.RequestDetails, "phone"),
		InternalID:   detailOptString(req.RequestDetails, "internal_id"),
		ManagerEmail: detailOptString(req.RequestDetails, "manager_email"),
	}, actor)
	return nil, err
}

// ============================================================
// Shared plumbing
// ============================================================

// loadForResolution fetches a PENDING request and verifies the checker may
// resolve requests for its customer.
func (s *ApprovalService) loadForResolution(ctx context.Context, requestID, checkerID uint) (*models.ApprovalRequest, error) {
	checker, err := repositories.NewUserRepository(s.db).GetByID(ctx, checkerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if !checker.CanCheck() {
		return nil, domain.ErrCheckerRoleRequired
	}

	request, err := repositories.NewApprovalRepository(s.db).GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrApprovalNotFound
		}
		return nil, err
	}
	if request.CustomerID != checker.CustomerID {
		return nil, domain.ErrForbidden
	}
	if !request.IsPending() {
		return nil, domain.ErrApprovalNotPending
	}
	return request, nil
}

// liveSnapshot derives the drift-comparison snapshot from the current row and
// reports the customer that owns the target entity.
func (s *ApprovalService) liveSnapshot(ctx context.Context, tx *gorm.DB, entityType string, entityID uint) (models.JSONMap, uint, error) {
	switch entityType {
	case models.EntityLGRecord:
		lg, err := repositories.NewLGRepository(tx).GetByID(ctx, entityID)
		if err != nil {
			return nil, 0, err
		}
		return snapshotLG(lg), lg.CustomerID, nil
	case models.EntityOwnerContact:
		contact, err := repositories.NewContactRepository(tx).GetByID(ctx, entityID)
		if err != nil {
			return nil, 0, err
		}
		return snapshotContact(contact), contact.CustomerID, nil
	default:
		return nil, 0, domain.ErrUnregisteredAction
	}
}

// auditSelfApproval records the violation in its own transaction so the entry
// survives the failed call.
func (s *ApprovalService) auditSelfApproval(ctx context.Context, request *models.ApprovalRequest, userID uint, attempted string) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.auditRequest(ctx, tx, &userID, models.AuditSelfApprovalRejected, request, models.JSONMap{
			"attempted": attempted,
		})
	})
	if err != nil {
		log.Printf("❌ Failed to record self-approval violation on request %d: %v", request.ID, err)
	}
}

// invalidateVanished flips a request whose target disappeared to INVALIDATED
// in its own transaction; the caller still returns the error.
func (s *ApprovalService) invalidateVanished(ctx context.Context, request *models.ApprovalRequest, checkerID uint) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		approvalRepo := repositories.NewApprovalRepository(tx)
		fresh, err := approvalRepo.GetByID(ctx, request.ID)
		if err != nil {
			return err
		}
		if !fresh.IsPending() {
			return nil
		}
		now := time.Now()
		fresh.Status = models.ApprovalStatusInvalidated
		fresh.ResolutionReason = "target entity no longer exists"
		fresh.ResolvedAt = &now
		if err := approvalRepo.Update(ctx, fresh); err != nil {
			return err
		}
		request.Status = fresh.Status
		return s.auditRequest(ctx, tx, &checkerID, models.AuditApprovalInvalidated, fresh, models.JSONMap{
			"reason": "target entity no longer exists",
		})
	})
	if err != nil {
		log.Printf("❌ Failed to invalidate request %d with vanished target: %v", request.ID, err)
	}
}

func (s *ApprovalService) auditRequest(ctx context.Context, tx *gorm.DB, actorID *uint, actionType string, request *models.ApprovalRequest, details models.JSONMap) error {
	requestID := request.ID
	entry := &models.AuditLog{
		ActorUserID: actorID,
		ActionType:  actionType,
		EntityType:  request.EntityType,
		EntityID:    &requestID,
		Details:     details,
		CustomerID:  request.CustomerID,
	}
	if request.EntityType == models.EntityLGRecord {
		lgID := request.EntityID
		entry.LGRecordID = &lgID
	}
	return repositories.NewAuditRepository(tx).Create(ctx, entry)
}

func (s *ApprovalService) deleteSupportingDoc(ctx context.Context, request *models.ApprovalRequest) {
	if s.store == nil {
		return
	}
	uri := detailString(request.RequestDetails, "supporting_doc_uri")
	if uri == "" {
		return
	}
	if err := s.store.Delete(ctx, uri); err != nil {
		log.Printf("⚠️ Could not delete supporting document %s: %v", uri, err)
	}
}

// ============================================================
// Reads
// ============================================================

// GetByID gets an approval request
func (s *ApprovalService) GetByID(ctx context.Context, id uint) (*models.ApprovalRequest, error) {
	request, err := repositories.NewApprovalRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrApprovalNotFound
		}
		return nil, err
	}
	return request, nil
}

// List lists a customer's approval requests, optionally filtered by status
func (s *ApprovalService) List(ctx context.Context, customerID uint, status string, offset, limit int) ([]*models.ApprovalRequest, int64, error) {
	return repositories.NewApprovalRepository(s.db).ListByCustomer(ctx, customerID, status, offset, limit)
}

// ============================================================
// Request-detail parsing
// ============================================================

// Detail payloads round-trip through a JSON column, so every number comes
// back float64 and dates come back as strings.

func detailString(d models.JSONMap, key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func detailOptString(d models.JSONMap, key string) *string {
	if v, ok := d[key].(string); ok {
		return &v
	}
	return nil
}

func detailBool(d models.JSONMap, key string) bool {
	v, _ := d[key].(bool)
	return v
}

func detailOptBool(d models.JSONMap, key string) *bool {
	if v, ok := d[key].(bool); ok {
		return &v
	}
	return nil
}

func detailOptUint(d models.JSONMap, key string) *uint {
	switch v := d[key].(type) {
	case float64:
		u := uint(v)
		return &u
	case int:
		u := uint(v)
		return &u
	case uint:
		return &v
	}
	return nil
}

func detailDecimal(d models.JSONMap, key string) (decimal.Decimal, bool) {
	switch v := d[key].(type) {
	case string:
		dec, err := decimal.NewFromString(v)
		return dec, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case decimal.Decimal:
		return v, true
	}
	return decimal.Decimal{}, false
}

func detailDate(d models.JSONMap, key string) (time.Time, bool) {
	s, ok := d[key].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
