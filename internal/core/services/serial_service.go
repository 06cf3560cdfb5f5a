package services

import (
	"context"
	"fmt"
	"strings"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// SerialAllocator computes the next instruction serial for an LG record. The
// counting queries race under concurrent writers; the unique index on the
// serial column is the real guarantee, and InstructionWriter retries on
// collision.
type SerialAllocator struct {
	db *gorm.DB
}

// NewSerialAllocator creates an allocator bound to a db handle (usually the
// transaction the instruction insert runs in).
func NewSerialAllocator(db *gorm.DB) *SerialAllocator {
	return &SerialAllocator{db: db}
}

// Next computes (serial, globalSeq, typeSeq) for one new instruction.
// The serial concatenates: beneficiary entity code, the 2-char category code
// padded with '_', the zero-padded LG sequence number, the instruction type
// code, a 4-digit global sequence and a 3-digit per-type sequence, then the
// sub-instruction code.
func (a *SerialAllocator) Next(ctx context.Context, lg *models.LGRecord, entityCode, categoryCode, instructionType, subCode string) (string, int, int, error) {
	typeCode, ok := models.InstructionTypeCode[instructionType]
	if !ok {
		return "", 0, 0, fmt.Errorf("unknown instruction type %q", instructionType)
	}

	instructionRepo := repositories.NewInstructionRepository(a.db)

	maxGlobal, err := instructionRepo.MaxGlobalSeq(ctx, lg.ID)
	if err != nil {
		return "", 0, 0, err
	}
	maxType, err := instructionRepo.MaxTypeSeq(ctx, lg.ID, instructionType)
	if err != nil {
		return "", 0, 0, err
	}

	globalSeq := maxGlobal + 1
	typeSeq := maxType + 1

	serial := fmt.Sprintf("%s%s%04d%s%04d%03d%s",
		entityCode,
		padCategoryCode(categoryCode),
		lg.SequenceNumber,
		typeCode,
		globalSeq,
		typeSeq,
		subCode,
	)

	return serial, globalSeq, typeSeq, nil
}

// padCategoryCode right-pads the category code to 2 chars with '_'.
func padCategoryCode(code string) string {
	if len(code) >= 2 {
		return code[:2]
	}
	return code + strings.Repeat("_", 2-len(code))
}
