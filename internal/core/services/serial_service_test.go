package services

import (
	"testing"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialAllocatorFormat(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 7)

	allocator := NewSerialAllocator(db)
	serial, globalSeq, typeSeq, err := allocator.Next(testCtx(), lg, "AC01", "P", models.InstructionExtension, "01")
	require.NoError(t, err)

	// entity code + padded category + LG seq + type code + global + per-type + sub code
	assert.Equal(t, "AC01P_0007EXT0001001"+"01", serial)
	assert.Equal(t, 1, globalSeq)
	assert.Equal(t, 1, typeSeq)
}

func TestSerialAllocatorRejectsUnknownType(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	_, _, _, err := NewSerialAllocator(db).Next(testCtx(), lg, "AC01", "P", "TELEPORT", "01")
	assert.Error(t, err)
}

func TestSerialSequencesAdvancePerTypeAndGlobally(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)
	writer := NewInstructionWriter(nil, nil)

	emit := func(instructionType string) *models.LGInstruction {
		instruction, err := writer.Create(testCtx(), db, &CreateInstructionInput{
			LG:           lg,
			EntityCode:   f.customer.EntityCode,
			CategoryCode: f.category.Code,
			Type:         instructionType,
			SubCode:      "01",
			MakerUserID:  f.maker.ID,
			TemplateData: models.JSONMap{"lg_number": lg.BusinessNumber},
		})
		require.NoError(t, err)
		return instruction
	}

	first := emit(models.InstructionExtension)
	second := emit(models.InstructionRelease)
	third := emit(models.InstructionExtension)

	assert.Equal(t, 1, first.GlobalSeq)
	assert.Equal(t, 2, second.GlobalSeq)
	assert.Equal(t, 3, third.GlobalSeq)

	assert.Equal(t, 1, first.TypeSeq)
	assert.Equal(t, 1, second.TypeSeq)
	assert.Equal(t, 2, third.TypeSeq)

	assert.NotEqual(t, first.Serial, third.Serial)
}

func TestInstructionWriterRecomputesAfterCollision(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	// A concurrent writer already claimed global/type seq 1 and its serial.
	taken := &models.LGInstruction{
		LGRecordID:  lg.ID,
		Type:        models.InstructionExtension,
		SubCode:     "01",
		Serial:      "AC01P_0001EXT0001001" + "01",
		GlobalSeq:   1,
		TypeSeq:     1,
		Status:      models.InstructionStatusIssued,
		MakerUserID: f.maker.ID,
	}
	require.NoError(t, db.Create(taken).Error)

	instruction, err := NewInstructionWriter(nil, nil).Create(testCtx(), db, &CreateInstructionInput{
		LG:           lg,
		EntityCode:   f.customer.EntityCode,
		CategoryCode: f.category.Code,
		Type:         models.InstructionExtension,
		SubCode:      "01",
		MakerUserID:  f.maker.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, instruction.GlobalSeq)
	assert.Equal(t, 2, instruction.TypeSeq)
	assert.NotEqual(t, taken.Serial, instruction.Serial)
}

func TestInstructionWriterExhaustsWhenSerialNeverFrees(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	// A row holding the serial the allocator computes, but recorded with
	// zero sequence numbers, keeps every recomputation colliding.
	blocker := &models.LGInstruction{
		LGRecordID:  lg.ID,
		Type:        models.InstructionRelease,
		SubCode:     "01",
		Serial:      "AC01P_0001REL0001001" + "01",
		GlobalSeq:   0,
		TypeSeq:     0,
		Status:      models.InstructionStatusIssued,
		MakerUserID: f.maker.ID,
	}
	require.NoError(t, db.Create(blocker).Error)

	_, err := NewInstructionWriter(nil, nil).Create(testCtx(), db, &CreateInstructionInput{
		LG:           lg,
		EntityCode:   f.customer.EntityCode,
		CategoryCode: f.category.Code,
		Type:         models.InstructionRelease,
		SubCode:      "01",
		MakerUserID:  f.maker.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSerialExhausted)
}

func TestPadCategoryCode(t *testing.T) {
	assert.Equal(t, "P_", padCategoryCode("P"))
	assert.Equal(t, "PB", padCategoryCode("PB"))
	assert.Equal(t, "__", padCategoryCode(""))
}
