package services

import (
	"context"
	"errors"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/core/domain"

	"gorm.io/gorm"
)

// defaultCancellationWindowDays applies when no setting row overrides it.
const defaultCancellationWindowDays = 7

// CancellationService undoes a recently issued instruction letter: it rolls
// the LG record back from the instruction's stored rollback state and marks
// the instruction CANCELED. Only the latest letter on a record is eligible,
// and only within the configured window.
type CancellationService struct {
	db *gorm.DB
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(db *gorm.DB) *CancellationService {
	return &CancellationService{db: db}
}

// WithTx runs fn inside one database transaction.
func (s *CancellationService) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// CancelInput carries the cancellation parameters
type CancelInput struct {
	Reason               string
	DeclarationConfirmed bool
}

// Cancel reverts the instruction's effects on the LG record and marks the
// instruction CANCELED. The caller must confirm the declaration that the
// physical letter was never dispatched to the bank.
func (s *CancellationService) Cancel(ctx context.Context, tx *gorm.DB, instructionID uint, in *CancelInput, actor *Actor) (*models.LGInstruction, *models.LGRecord, error) {
	if !in.DeclarationConfirmed {
		return nil, nil, domain.ErrDeclarationRequired
	}
	if in.Reason == "" {
		return nil, nil, domain.ErrInvalidInput
	}

	instructionRepo := repositories.NewInstructionRepository(tx)
	instruction, err := instructionRepo.GetByID(ctx, instructionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrInstructionNotFound
		}
		return nil, nil, err
	}

	if !instruction.ProducesBankLetter() {
		return nil, nil, domain.ErrInstructionNotLetter
	}
	if !instruction.IsCancelable() {
		return nil, nil, domain.ErrInstructionNotIssued
	}

	// Only the newest letter on a record can be undone; earlier letters
	// have later state layered on top of them.
	latest, err := instructionRepo.GetLatestForLG(ctx, instruction.LGRecordID)
	if err != nil {
		return nil, nil, err
	}
	if latest.ID != instruction.ID {
		return nil, nil, domain.ErrNotLatestInstruction
	}

	lg, err := loadLG(ctx, tx, instruction.LGRecordID)
	if err != nil {
		return nil, nil, err
	}

	windowDays, err := repositories.NewSettingRepository(tx).EffectiveInt(
		ctx, lg.CustomerID, models.SettingCancellationWindowDays, defaultCancellationWindowDays)
	if err != nil {
		return nil, nil, err
	}
	if time.Now().After(instruction.CreatedAt.AddDate(0, 0, windowDays)) {
		return nil, nil, domain.ErrCancellationWindowPast
	}

	if err := applyRollback(lg, instruction); err != nil {
		return nil, nil, err
	}

	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	makerID := actor.MakerUserID
	instruction.Status = models.InstructionStatusCanceled
	instruction.CancellationReason = in.Reason
	instruction.CanceledAt = &now
	if instruction.RollbackState != nil {
		instruction.RollbackState.CancellationReason = in.Reason
		instruction.RollbackState.CancellationByUserID = &makerID
	}
	if err := instructionRepo.Update(ctx, instruction); err != nil {
		return nil, nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditInstructionCanceled, lg, models.JSONMap{
		"instruction_id":   instruction.ID,
		"serial":           instruction.Serial,
		"instruction_type": instruction.Type,
		"reason":           in.Reason,
	})
	if err != nil {
		return nil, nil, err
	}

	return instruction, lg, nil
}

// applyRollback restores the LG fields an instruction type changed. Each type
// requires its own rollback fields to be present; a stored instruction whose
// rollback state is incomplete fails loudly instead of half-reverting.
func applyRollback(lg *models.LGRecord, instruction *models.LGInstruction) error {
	rb := instruction.RollbackState
	if rb == nil {
		return domain.ErrRollbackStateMissing
	}

	switch instruction.Type {
	case models.InstructionExtension:
		if rb.OldExpiryDate == nil {
			return domain.ErrRollbackStateMissing
		}
		lg.ExpiryDate = *rb.OldExpiryDate
		lg.PeriodMonths = monthsBetween(lg.IssuanceDate, lg.ExpiryDate)

	case models.InstructionRelease:
		if rb.OriginalStatus == nil {
			return domain.ErrRollbackStateMissing
		}
		lg.Status = *rb.OriginalStatus

	case models.InstructionLiquidation:
		if rb.OriginalAmount == nil {
			return domain.ErrRollbackStateMissing
		}
		lg.Amount = *rb.OriginalAmount
		if !rb.PartialLiquidation {
			if rb.OriginalStatus == nil {
				return domain.ErrRollbackStateMissing
			}
			lg.Status = *rb.OriginalStatus
		}

	case models.InstructionDecrease:
		if rb.OriginalAmount == nil {
			return domain.ErrRollbackStateMissing
		}
		lg.Amount = *rb.OriginalAmount

	case models.InstructionActivation:
		if rb.OriginalOperational == nil {
			return domain.ErrRollbackStateMissing
		}
		lg.OperationalStatus = rb.OriginalOperational

	default:
		return domain.ErrInstructionNotLetter
	}

	return nil
}
