package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/core/domain"

	"gorm.io/gorm"
)

// maxSerialAttempts bounds the allocate+insert retry loop. Two concurrent
// writers can compute the same next sequence; the loser of the unique-index
// race recomputes and retries.
const maxSerialAttempts = 5

// InstructionWriter persists instruction rows, owning serial allocation and
// the render/store of the letter document. It never sends email; that stays
// with the calling transition handler or the approval engine.
type InstructionWriter struct {
	renderer PDFRenderer
	store    ObjectStore
}

// NewInstructionWriter creates a new instruction writer
func NewInstructionWriter(renderer PDFRenderer, store ObjectStore) *InstructionWriter {
	return &InstructionWriter{renderer: renderer, store: store}
}

// CreateInstructionInput carries everything needed to persist one instruction
type CreateInstructionInput struct {
	LG                *models.LGRecord
	EntityCode        string
	CategoryCode      string
	Type              string
	SubCode           string
	MakerUserID       uint
	CheckerUserID     *uint
	ApprovalRequestID *uint
	TemplateData      models.JSONMap
	RollbackState     *models.RollbackState
	RecipientName     string
	RecipientAddress  string
	SupportingDocURI  string
}

// Create allocates a serial and inserts the instruction row inside the given
// transaction, retrying on serial collision, then renders and archives the
// letter document. A render failure is fatal: an instruction without its
// content is an incomplete artifact.
func (w *InstructionWriter) Create(ctx context.Context, tx *gorm.DB, in *CreateInstructionInput) (*models.LGInstruction, error) {
	allocator := NewSerialAllocator(tx)
	instructionRepo := repositories.NewInstructionRepository(tx)

	status := models.InstructionStatusIssued
	if in.Type == models.InstructionReminder {
		status = models.InstructionStatusReminderIssued
	}

	var instruction *models.LGInstruction
	for attempt := 1; attempt <= maxSerialAttempts; attempt++ {
		serial, globalSeq, typeSeq, err := allocator.Next(ctx, in.LG, in.EntityCode, in.CategoryCode, in.Type, in.SubCode)
		if err != nil {
			return nil, err
		}

		candidate := &models.LGInstruction{
			LGRecordID:            in.LG.ID,
			Type:                  in.Type,
			SubCode:               in.SubCode,
			Serial:                serial,
			GlobalSeq:             globalSeq,
			TypeSeq:               typeSeq,
			Status:                status,
			MakerUserID:           in.MakerUserID,
			CheckerUserID:         in.CheckerUserID,
			ApprovalRequestID:     in.ApprovalRequestID,
			TemplateData:          in.TemplateData,
			RollbackState:         in.RollbackState,
			RecipientName:         in.RecipientName,
			RecipientAddress:      in.RecipientAddress,
			SupportingDocumentURI: in.SupportingDocURI,
		}

		err = instructionRepo.Create(ctx, candidate)
		if err == nil {
			instruction = candidate
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		log.Printf("⚠️ Serial collision on %s (attempt %d/%d), recomputing", serial, attempt, maxSerialAttempts)
	}

	if instruction == nil {
		return nil, domain.ErrSerialExhausted
	}

	if err := w.archiveLetter(ctx, tx, instruction); err != nil {
		return nil, err
	}

	return instruction, nil
}

// archiveLetter renders the letter HTML to PDF and stores it, writing the
// resulting URI back onto the row. Skipped when no renderer is configured.
func (w *InstructionWriter) archiveLetter(ctx context.Context, tx *gorm.DB, instruction *models.LGInstruction) error {
	if w.renderer == nil || w.store == nil {
		return nil
	}

	data := models.JSONMap{}
	for k, v := range instruction.TemplateData {
		data[k] = v
	}
	data["serial"] = instruction.Serial
	data["recipient_name"] = instruction.RecipientName
	data["recipient_address"] = instruction.RecipientAddress

	html := renderLetterHTML(instruction.Type, data)
	pdf, err := w.renderer.Render(ctx, html)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	path := fmt.Sprintf("instructions/%d/%s.pdf", instruction.LGRecordID, instruction.Serial)
	uri, err := w.store.Store(ctx, pdf, path)
	if err != nil {
		return fmt.Errorf("%w: storing rendered letter: %v", domain.ErrRenderFailed, err)
	}

	instruction.DocumentURI = uri
	return repositories.NewInstructionRepository(tx).Update(ctx, instruction)
}
