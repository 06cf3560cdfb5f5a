package repositories

import (
	"context"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// InstructionRepository handles LG instruction data access
type InstructionRepository struct {
	db *gorm.DB
}

// NewInstructionRepository creates a new instruction repository
func NewInstructionRepository(db *gorm.DB) *InstructionRepository {
	return &InstructionRepository{db: db}
}

// Create creates a new instruction row. A duplicate serial surfaces as
// gorm.ErrDuplicatedKey for the writer's retry loop.
func (r *InstructionRepository) Create(ctx context.Context, instruction *models.LGInstruction) error {
	return r.db.WithContext(ctx).Create(instruction).Error
}

// GetByID gets an instruction by ID with relations
func (r *InstructionRepository) GetByID(ctx context.Context, id uint) (*models.LGInstruction, error) {
	var instruction models.LGInstruction
	err := r.db.WithContext(ctx).
		Preload("LGRecord").
		Preload("Maker").
		Preload("Checker").
		First(&instruction, id).Error
	if err != nil {
		return nil, err
	}
	return &instruction, nil
}

// Update saves an instruction
func (r *InstructionRepository) Update(ctx context.Context, instruction *models.LGInstruction) error {
	return r.db.WithContext(ctx).Save(instruction).Error
}

// MaxGlobalSeq returns the highest global sequence issued for an LG record,
// including canceled instructions.
func (r *InstructionRepository) MaxGlobalSeq(ctx context.Context, lgRecordID uint) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.LGInstruction{}).
		Unscoped().
		Where("lg_record_id = ?", lgRecordID).
		Select("COALESCE(MAX(global_seq), 0)").
		Scan(&max).Error
	return max, err
}

// MaxTypeSeq returns the highest per-type sequence issued for an LG record.
func (r *InstructionRepository) MaxTypeSeq(ctx context.Context, lgRecordID uint, instructionType string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.LGInstruction{}).
		Unscoped().
		Where("lg_record_id = ? AND type = ?", lgRecordID, instructionType).
		Select("COALESCE(MAX(type_seq), 0)").
		Scan(&max).Error
	return max, err
}

// GetLatestForLG returns the most recently created non-deleted instruction
// for an LG record.
func (r *InstructionRepository) GetLatestForLG(ctx context.Context, lgRecordID uint) (*models.LGInstruction, error) {
	var instruction models.LGInstruction
	err := r.db.WithContext(ctx).
		Where("lg_record_id = ?", lgRecordID).
		Order("id DESC").
		First(&instruction).Error
	if err != nil {
		return nil, err
	}
	return &instruction, nil
}

// ListByLG lists instructions for an LG record, newest first
func (r *InstructionRepository) ListByLG(ctx context.Context, lgRecordID uint) ([]*models.LGInstruction, error) {
	var instructions []*models.LGInstruction
	err := r.db.WithContext(ctx).
		Preload("Maker").
		Preload("Checker").
		Where("lg_record_id = ?", lgRecordID).
		Order("id DESC").
		Find(&instructions).Error
	return instructions, err
}

// LastReminderAt returns the creation time of the newest reminder for an LG
// record, or the zero time when none exists.
func (r *InstructionRepository) LastReminderAt(ctx context.Context, lgRecordID uint) (time.Time, error) {
	var instruction models.LGInstruction
	err := r.db.WithContext(ctx).
		Where("lg_record_id = ? AND type = ?", lgRecordID, models.InstructionReminder).
		Order("id DESC").
		First(&instruction).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return instruction.CreatedAt, nil
}
