package services

import (
	"context"
	"errors"
	"log"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Sub-instruction codes
const (
	subCodeDefault  = "01"
	subCodePartial  = "02"
	subCodeReminder = "00"
)

// Actor identifies who is driving a transition and through which path. A nil
// ApprovalRequestID means a direct maker action; the handler then also sends
// the stakeholder notification, which the approval engine otherwise owns.
type Actor struct {
	MakerUserID       uint
	CheckerUserID     *uint
	ApprovalRequestID *uint
}

func (a *Actor) viaApproval() bool {
	return a.ApprovalRequestID != nil
}

// TransitionService hosts the per-action LG state-transition handlers. Every
// handler runs inside the caller's transaction: precondition check, record
// mutation, instruction emission and audit all commit or roll back together.
type TransitionService struct {
	db       *gorm.DB
	writer   *InstructionWriter
	notifier Notifier
}

// NewTransitionService creates a new transition service
func NewTransitionService(db *gorm.DB, writer *InstructionWriter, notifier Notifier) *TransitionService {
	return &TransitionService{db: db, writer: writer, notifier: notifier}
}

// DB exposes the service's database handle for callers that open their own
// transaction around a handler.
func (s *TransitionService) DB() *gorm.DB {
	return s.db
}

// ============================================================
// Extend
// ============================================================

// ExtendInput carries the extension parameters
type ExtendInput struct {
	NewExpiryDate    time.Time
	Notes            string
	SupportingDocURI string
}

// Extend pushes a VALID record's expiry date forward and emits an EXTENSION
// instruction.
func (s *TransitionService) Extend(ctx context.Context, tx *gorm.DB, lgID uint, in *ExtendInput, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, nil, err
	}
	if lg.Status != models.LGStatusValid {
		return nil, nil, domain.ErrLGNotValid
	}
	if !in.NewExpiryDate.After(lg.ExpiryDate) {
		return nil, nil, domain.ErrExpiryNotExtended
	}

	oldExpiry := lg.ExpiryDate
	lg.ExpiryDate = in.NewExpiryDate
	lg.PeriodMonths = monthsBetween(lg.IssuanceDate, lg.ExpiryDate)
	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, nil, err
	}

	data := baseTemplateData(lg)
	data["old_expiry_date"] = oldExpiry.Format(dateLayout)
	data["new_expiry_date"] = in.NewExpiryDate.Format(dateLayout)
	data["notes"] = notesHTML(in.Notes)

	instruction, err := s.emit(ctx, tx, actor, &emitParams{
		lg:               lg,
		instructionType:  models.InstructionExtension,
		subCode:          subCodeDefault,
		templateData:     data,
		rollback:         &models.RollbackState{OldExpiryDate: &oldExpiry},
		supportingDocURI: in.SupportingDocURI,
	})
	if err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgExtended, lg, models.JSONMap{
		"old_expiry_date": oldExpiry.Format(dateLayout),
		"new_expiry_date": in.NewExpiryDate.Format(dateLayout),
		"instruction_id":  instruction.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifyDirect(ctx, tx, actor, lg, instruction)
	return instruction, lg, nil
}

// ============================================================
// Release
// ============================================================

// ReleaseInput carries the release parameters
type ReleaseInput struct {
	Notes            string
	SupportingDocURI string
}

// Release moves a VALID record to RELEASED and emits a RELEASE instruction.
func (s *TransitionService) Release(ctx context.Context, tx *gorm.DB, lgID uint, in *ReleaseInput, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, nil, err
	}
	if lg.Status != models.LGStatusValid {
		return nil, nil, domain.ErrLGNotValid
	}

	oldStatus := lg.Status
	lg.Status = models.LGStatusReleased
	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, nil, err
	}

	data := baseTemplateData(lg)
	data["notes"] = notesHTML(in.Notes)

	instruction, err := s.emit(ctx, tx, actor, &emitParams{
		lg:               lg,
		instructionType:  models.InstructionRelease,
		subCode:          subCodeDefault,
		templateData:     data,
		rollback:         &models.RollbackState{OriginalStatus: &oldStatus},
		supportingDocURI: in.SupportingDocURI,
	})
	if err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgReleased, lg, models.JSONMap{
		"old_status":     oldStatus,
		"new_status":     lg.Status,
		"instruction_id": instruction.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifyDirect(ctx, tx, actor, lg, instruction)
	return instruction, lg, nil
}

// ============================================================
// Liquidate (full / partial)
// ============================================================

// LiquidateInput carries the liquidation parameters. A nil NewAmount means
// full liquidation.
type LiquidateInput struct {
	NewAmount        *decimal.Decimal
	Notes            string
	SupportingDocURI string
}

// Liquidate performs a full or partial liquidation. Full liquidation zeroes
// the amount and moves the record to LIQUIDATED; partial liquidation reduces
// the amount and leaves the record VALID.
func (s *TransitionService) Liquidate(ctx context.Context, tx *gorm.DB, lgID uint, in *LiquidateInput, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, nil, err
	}
	if lg.Status != models.LGStatusValid {
		return nil, nil, domain.ErrLGNotValid
	}

	originalAmount := lg.Amount
	oldStatus := lg.Status
	partial := in.NewAmount != nil

	var newAmount decimal.Decimal
	if partial {
		newAmount = *in.NewAmount
		if newAmount.LessThanOrEqual(decimal.Zero) || newAmount.GreaterThanOrEqual(originalAmount) {
			return nil, nil, domain.ErrInvalidLiquidation
		}
		lg.Amount = newAmount
	} else {
		newAmount = decimal.Zero
		lg.Amount = decimal.Zero
		lg.Status = models.LGStatusLiquidated
	}

	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, nil, err
	}

	kind := "full"
	subCode := subCodeDefault
	if partial {
		kind = "partial"
		subCode = subCodePartial
	}

	data := baseTemplateData(lg)
	data["liquidation_kind"] = kind
	data["original_lg_amount"] = originalAmount.StringFixed(2)
	data["new_amount"] = newAmount.StringFixed(2)
	data["notes"] = notesHTML(in.Notes)

	rollback := &models.RollbackState{
		OriginalAmount:     &originalAmount,
		PartialLiquidation: partial,
	}
	if !partial {
		rollback.OriginalStatus = &oldStatus
	}

	instruction, err := s.emit(ctx, tx, actor, &emitParams{
		lg:               lg,
		instructionType:  models.InstructionLiquidation,
		subCode:          subCode,
		templateData:     data,
		rollback:         rollback,
		supportingDocURI: in.SupportingDocURI,
	})
	if err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgLiquidated, lg, models.JSONMap{
		"liquidation_kind":   kind,
		"original_lg_amount": originalAmount.StringFixed(2),
		"new_amount":         newAmount.StringFixed(2),
		"instruction_id":     instruction.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifyDirect(ctx, tx, actor, lg, instruction)
	return instruction, lg, nil
}

// ============================================================
// Decrease amount
// ============================================================

// DecreaseInput carries the decrease parameters
type DecreaseInput struct {
	DecreaseBy       decimal.Decimal
	Notes            string
	SupportingDocURI string
}

// DecreaseAmount reduces a VALID record's amount by a strictly positive
// delta smaller than the current amount.
func (s *TransitionService) DecreaseAmount(ctx context.Context, tx *gorm.DB, lgID uint, in *DecreaseInput, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, nil, err
	}
	if lg.Status != models.LGStatusValid {
		return nil, nil, domain.ErrLGNotValid
	}
	if in.DecreaseBy.LessThanOrEqual(decimal.Zero) || in.DecreaseBy.GreaterThanOrEqual(lg.Amount) {
		return nil, nil, domain.ErrInvalidDecrease
	}

	originalAmount := lg.Amount
	lg.Amount = lg.Amount.Sub(in.DecreaseBy)
	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, nil, err
	}

	data := baseTemplateData(lg)
	data["decrease_amount"] = in.DecreaseBy.StringFixed(2)
	data["original_lg_amount"] = originalAmount.StringFixed(2)
	data["new_amount"] = lg.Amount.StringFixed(2)
	data["notes"] = notesHTML(in.Notes)

	instruction, err := s.emit(ctx, tx, actor, &emitParams{
		lg:               lg,
		instructionType:  models.InstructionDecrease,
		subCode:          subCodeDefault,
		templateData:     data,
		rollback:         &models.RollbackState{OriginalAmount: &originalAmount},
		supportingDocURI: in.SupportingDocURI,
	})
	if err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgDecreased, lg, models.JSONMap{
		"decrease_amount":    in.DecreaseBy.StringFixed(2),
		"original_lg_amount": originalAmount.StringFixed(2),
		"new_amount":         lg.Amount.StringFixed(2),
		"instruction_id":     instruction.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifyDirect(ctx, tx, actor, lg, instruction)
	return instruction, lg, nil
}

// ============================================================
// Activate non-operative
// ============================================================

// ActivateInput carries the activation parameters
type ActivateInput struct {
	Notes            string
	SupportingDocURI string
}

// Activate flips a non-operative advance payment guarantee to OPERATIVE and
// emits an activation instruction.
func (s *TransitionService) Activate(ctx context.Context, tx *gorm.DB, lgID uint, in *ActivateInput, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, nil, err
	}
	if lg.Status != models.LGStatusValid {
		return nil, nil, domain.ErrLGNotValid
	}
	if !lg.IsAdvancePayment() {
		return nil, nil, domain.ErrNotAdvancePayment
	}
	if lg.OperationalStatus == nil || *lg.OperationalStatus != models.OperationalStatusNonOperative {
		return nil, nil, domain.ErrNotNonOperative
	}

	oldOperational := *lg.OperationalStatus
	operative := models.OperationalStatusOperative
	lg.OperationalStatus = &operative
	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, nil, err
	}

	data := baseTemplateData(lg)
	data["notes"] = notesHTML(in.Notes)

	instruction, err := s.emit(ctx, tx, actor, &emitParams{
		lg:               lg,
		instructionType:  models.InstructionActivation,
		subCode:          subCodeDefault,
		templateData:     data,
		rollback:         &models.RollbackState{OriginalOperational: &oldOperational},
		supportingDocURI: in.SupportingDocURI,
	})
	if err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgActivated, lg, models.JSONMap{
		"old_operational_status": oldOperational,
		"new_operational_status": operative,
		"instruction_id":         instruction.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifyDirect(ctx, tx, actor, lg, instruction)
	return instruction, lg, nil
}

// ============================================================
// Reminder (used by the expiry reminder sweep)
// ============================================================

// EmitReminder creates a REMINDER instruction for an LG nearing expiry.
func (s *TransitionService) EmitReminder(ctx context.Context, tx *gorm.DB, lgID uint, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, nil, err
	}
	if lg.Status != models.LGStatusValid {
		return nil, nil, domain.ErrLGNotValid
	}

	data := baseTemplateData(lg)

	instruction, err := s.emit(ctx, tx, actor, &emitParams{
		lg:              lg,
		instructionType: models.InstructionReminder,
		subCode:         subCodeReminder,
		templateData:    data,
	})
	if err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgReminderSent, lg, models.JSONMap{
		"expiry_date":    lg.ExpiryDate.Format(dateLayout),
		"instruction_id": instruction.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	return instruction, lg, nil
}

// ============================================================
// Shared plumbing
// ============================================================

type emitParams struct {
	lg               *models.LGRecord
	instructionType  string
	subCode          string
	templateData     models.JSONMap
	rollback         *models.RollbackState
	supportingDocURI string
}

// emit resolves the recipient and writes the instruction through the writer.
func (s *TransitionService) emit(ctx context.Context, tx *gorm.DB, actor *Actor, p *emitParams) (*models.LGInstruction, error) {
	masterRepo := repositories.NewMasterRepository(tx)

	customer, err := masterRepo.GetCustomerByID(ctx, p.lg.CustomerID)
	if err != nil {
		return nil, err
	}
	category, err := masterRepo.GetCategoryByID(ctx, p.lg.LgCategoryID)
	if err != nil {
		return nil, err
	}

	name, address := resolveRecipient(ctx, tx, p.lg)
	p.templateData["recipient_name"] = name
	p.templateData["recipient_address"] = address

	return s.writer.Create(ctx, tx, &CreateInstructionInput{
		LG:                p.lg,
		EntityCode:        customer.EntityCode,
		CategoryCode:      category.Code,
		Type:              p.instructionType,
		SubCode:           p.subCode,
		MakerUserID:       actor.MakerUserID,
		CheckerUserID:     actor.CheckerUserID,
		ApprovalRequestID: actor.ApprovalRequestID,
		TemplateData:      p.templateData,
		RollbackState:     p.rollback,
		RecipientName:     name,
		RecipientAddress:  address,
		SupportingDocURI:  p.supportingDocURI,
	})
}

// notifyDirect sends the stakeholder email for direct (non-approval)
// invocations. The approval engine owns the downstream notification
// otherwise, so the stakeholders are not notified twice. Failure is recorded
// in the audit trail and never fails the transaction.
func (s *TransitionService) notifyDirect(ctx context.Context, tx *gorm.DB, actor *Actor, lg *models.LGRecord, instruction *models.LGInstruction) {
	if actor.viaApproval() || s.notifier == nil {
		return
	}

	recipients := stakeholderEmails(lg)
	if len(recipients) == 0 {
		return
	}

	if err := s.notifier.NotifyLGAction(ctx, recipients, lg, instruction); err != nil {
		log.Printf("⚠️ Stakeholder notification failed for LG %s: %v", lg.BusinessNumber, err)
		auditErr := writeAudit(ctx, tx, actor, models.AuditNotificationFailed, lg, models.JSONMap{
			"instruction_id": instruction.ID,
			"error":          err.Error(),
		})
		if auditErr != nil {
			log.Printf("⚠️ Failed to record notification failure: %v", auditErr)
		}
	}
}

func loadLG(ctx context.Context, tx *gorm.DB, lgID uint) (*models.LGRecord, error) {
	lg, err := repositories.NewLGRepository(tx).GetByID(ctx, lgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLGNotFound
		}
		return nil, err
	}
	return lg, nil
}

// baseTemplateData builds the letter substitution fields shared by every
// instruction type.
func baseTemplateData(lg *models.LGRecord) models.JSONMap {
	currency := ""
	if lg.Currency != nil {
		currency = lg.Currency.Code
	}
	return models.JSONMap{
		"lg_number":        lg.BusinessNumber,
		"beneficiary_name": lg.BeneficiaryName,
		"currency":         currency,
		"lg_amount":        lg.Amount.StringFixed(2),
		"expiry_date":      lg.ExpiryDate.Format(dateLayout),
		"notes":            "",
	}
}

func notesHTML(notes string) string {
	if notes == "" {
		return ""
	}
	return "<p>" + notes + "</p>"
}

// stakeholderEmails collects the LG's internal stakeholder addresses.
func stakeholderEmails(lg *models.LGRecord) []string {
	var emails []string
	if lg.OwnerContact != nil {
		if lg.OwnerContact.Email != "" {
			emails = append(emails, lg.OwnerContact.Email)
		}
		if lg.OwnerContact.ManagerEmail != "" {
			emails = append(emails, lg.OwnerContact.ManagerEmail)
		}
	}
	return emails
}

// writeAudit appends an audit entry in the same transaction as the mutation.
func writeAudit(ctx context.Context, tx *gorm.DB, actor *Actor, actionType string, lg *models.LGRecord, details models.JSONMap) error {
	actorID := actor.MakerUserID
	if actor.CheckerUserID != nil {
		actorID = *actor.CheckerUserID
	}
	// System-driven sweeps carry no actor.
	var actorRef *uint
	if actorID != 0 {
		actorRef = &actorID
	}
	lgID := lg.ID
	return repositories.NewAuditRepository(tx).Create(ctx, &models.AuditLog{
		ActorUserID: actorRef,
		ActionType:  actionType,
		EntityType:  models.EntityLGRecord,
		EntityID:    &lgID,
		Details:     details,
		CustomerID:  lg.CustomerID,
		LGRecordID:  &lgID,
	})
}

// monthsBetween returns the whole months from one date to a later date.
func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
