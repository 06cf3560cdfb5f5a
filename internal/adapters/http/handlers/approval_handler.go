package handlers

import (
	"treasury-lghub/internal/adapters/http/middleware"
	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/core/services"
	"treasury-lghub/internal/pkg/pagination"
	"treasury-lghub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ApprovalHandler handles maker-checker endpoints
type ApprovalHandler struct {
	approvalService *services.ApprovalService
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalService *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

// SubmitRequest represents an action submission body
type SubmitRequest struct {
	EntityType string         `json:"entity_type"`
	EntityID   uint           `json:"entity_id"`
	ActionType string         `json:"action_type"`
	Details    models.JSONMap `json:"details"`
}

// RejectRequest represents a rejection body
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Submit handles a maker submitting an action for approval
func (h *ApprovalHandler) Submit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.EntityType == "" || req.ActionType == "" || req.EntityID == 0 {
		return response.BadRequest(c, "Entity type, entity id and action type are required")
	}

	request, err := h.approvalService.Submit(c.Context(), &services.SubmitInput{
		CustomerID: middleware.CustomerID(c),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		ActionType: req.ActionType,
		Details:    req.Details,
	}, middleware.UserID(c))
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Created(c, "Request submitted for approval", request)
}

// Approve handles a checker approving a request
func (h *ApprovalHandler) Approve(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid request id")
	}

	request, instruction, err := h.approvalService.Approve(c.Context(), uint(id), middleware.UserID(c))
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Request approved", fiber.Map{
		"request":     request,
		"instruction": instruction,
	})
}

// Reject handles a checker rejecting a request
func (h *ApprovalHandler) Reject(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid request id")
	}

	var req RejectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Reason == "" {
		return response.BadRequest(c, "Rejection reason is required")
	}

	request, err := h.approvalService.Reject(c.Context(), uint(id), middleware.UserID(c), req.Reason)
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Request rejected", request)
}

// Withdraw handles a maker withdrawing their own request
func (h *ApprovalHandler) Withdraw(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid request id")
	}

	request, err := h.approvalService.Withdraw(c.Context(), uint(id), middleware.UserID(c))
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Request withdrawn", request)
}

// Get handles fetching one request
func (h *ApprovalHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid request id")
	}

	request, err := h.approvalService.GetByID(c.Context(), uint(id))
	if err != nil {
		return mapDomainError(c, err)
	}
	if request.CustomerID != middleware.CustomerID(c) {
		return response.Forbidden(c, "Request belongs to another customer")
	}

	return response.Success(c, "", request)
}

// List handles listing the customer's requests, optionally by status
func (h *ApprovalHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	status := c.Query("status")

	requests, total, err := h.approvalService.List(c.Context(), middleware.CustomerID(c), status, params.Offset, params.Limit)
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "", pagination.NewResponse(requests, params, total))
}
