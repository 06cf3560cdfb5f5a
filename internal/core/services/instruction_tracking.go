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

// InstructionTracker advances an issued letter through its delivery
// lifecycle. Status only ever moves forward; cancellation is the
// CancellationService's job.
type InstructionTracker struct {
	db *gorm.DB
}

// NewInstructionTracker creates a new instruction tracker
func NewInstructionTracker(db *gorm.DB) *InstructionTracker {
	return &InstructionTracker{db: db}
}

// GetByID gets an instruction
func (s *InstructionTracker) GetByID(ctx context.Context, id uint) (*models.LGInstruction, error) {
	instruction, err := repositories.NewInstructionRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInstructionNotFound
		}
		return nil, err
	}
	return instruction, nil
}

// MarkDelivered records that the printed letter was handed to the bank.
func (s *InstructionTracker) MarkDelivered(ctx context.Context, id uint) (*models.LGInstruction, error) {
	instruction, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if instruction.Status != models.InstructionStatusIssued {
		return nil, domain.ErrInstructionNotIssued
	}

	now := time.Now()
	instruction.Status = models.InstructionStatusDelivered
	instruction.DeliveredAt = &now
	if err := repositories.NewInstructionRepository(s.db).Update(ctx, instruction); err != nil {
		return nil, err
	}
	return instruction, nil
}

// MarkBankConfirmed records the bank's acknowledgement of a delivered letter.
func (s *InstructionTracker) MarkBankConfirmed(ctx context.Context, id uint) (*models.LGInstruction, error) {
	instruction, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if instruction.Status != models.InstructionStatusDelivered {
		return nil, domain.ErrInstructionNotDelivered
	}

	now := time.Now()
	instruction.Status = models.InstructionStatusConfirmed
	instruction.BankReplyAt = &now
	if err := repositories.NewInstructionRepository(s.db).Update(ctx, instruction); err != nil {
		return nil, err
	}
	return instruction, nil
}
