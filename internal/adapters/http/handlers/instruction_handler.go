package handlers

import (
	"treasury-lghub/internal/adapters/http/middleware"
	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/core/services"
	"treasury-lghub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// InstructionHandler handles instruction lifecycle endpoints
type InstructionHandler struct {
	tracker             *services.InstructionTracker
	cancellationService *services.CancellationService
	lgService           *services.LGService
}

// NewInstructionHandler creates a new instruction handler
func NewInstructionHandler(tracker *services.InstructionTracker, cancellationService *services.CancellationService, lgService *services.LGService) *InstructionHandler {
	return &InstructionHandler{
		tracker:             tracker,
		cancellationService: cancellationService,
		lgService:           lgService,
	}
}

// Get handles fetching one instruction
func (h *InstructionHandler) Get(c *fiber.Ctx) error {
	instruction, errResp := h.loadOwned(c)
	if instruction == nil {
		return errResp
	}
	return response.Success(c, "", instruction)
}

// MarkDelivered handles recording letter delivery to the bank
func (h *InstructionHandler) MarkDelivered(c *fiber.Ctx) error {
	instruction, errResp := h.loadOwned(c)
	if instruction == nil {
		return errResp
	}

	updated, err := h.tracker.MarkDelivered(c.Context(), instruction.ID)
	if err != nil {
		return mapDomainError(c, err)
	}
	return response.Success(c, "Instruction marked delivered", updated)
}

// MarkBankConfirmed handles recording the bank's acknowledgement
func (h *InstructionHandler) MarkBankConfirmed(c *fiber.Ctx) error {
	instruction, errResp := h.loadOwned(c)
	if instruction == nil {
		return errResp
	}

	updated, err := h.tracker.MarkBankConfirmed(c.Context(), instruction.ID)
	if err != nil {
		return mapDomainError(c, err)
	}
	return response.Success(c, "Bank confirmation recorded", updated)
}

// CancelRequest represents the cancellation body
type CancelRequest struct {
	Reason               string `json:"reason"`
	DeclarationConfirmed bool   `json:"declaration_confirmed"`
}

// Cancel handles a direct instruction cancellation
func (h *InstructionHandler) Cancel(c *fiber.Ctx) error {
	instruction, errResp := h.loadOwned(c)
	if instruction == nil {
		return errResp
	}

	var req CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	actor := &services.Actor{MakerUserID: middleware.UserID(c)}
	var canceled *models.LGInstruction
	err := h.cancellationService.WithTx(c.Context(), func(tx *gorm.DB) error {
		var txErr error
		canceled, _, txErr = h.cancellationService.Cancel(c.Context(), tx, instruction.ID, &services.CancelInput{
			Reason:               req.Reason,
			DeclarationConfirmed: req.DeclarationConfirmed,
		}, actor)
		return txErr
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Instruction canceled", canceled)
}

// loadOwned fetches the instruction and enforces tenancy through its LG. A
// nil instruction means the response was already written.
func (h *InstructionHandler) loadOwned(c *fiber.Ctx) (*models.LGInstruction, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, response.BadRequest(c, "Invalid instruction id")
	}

	instruction, err := h.tracker.GetByID(c.Context(), uint(id))
	if err != nil {
		return nil, mapDomainError(c, err)
	}

	lg, err := h.lgService.GetByID(c.Context(), instruction.LGRecordID)
	if err != nil {
		return nil, mapDomainError(c, err)
	}
	if lg.CustomerID != middleware.CustomerID(c) {
		return nil, response.Forbidden(c, "Instruction belongs to another customer")
	}
	return instruction, nil
}
