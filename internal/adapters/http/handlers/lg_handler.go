package handlers

import (
	"errors"
	"time"

	"treasury-lghub/internal/adapters/http/middleware"
	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/core/services"
	"treasury-lghub/internal/pkg/pagination"
	"treasury-lghub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// LGHandler handles LG record endpoints. The action endpoints here are the
// direct path reserved for corporate admins; makers go through approvals.
type LGHandler struct {
	lgService         *services.LGService
	transitionService *services.TransitionService
}

// NewLGHandler creates a new LG handler
func NewLGHandler(lgService *services.LGService, transitionService *services.TransitionService) *LGHandler {
	return &LGHandler{
		lgService:         lgService,
		transitionService: transitionService,
	}
}

// CreateLGRequest represents the record-LG request body
type CreateLGRequest struct {
	BusinessNumber      string  `json:"business_number"`
	Amount              string  `json:"amount"`
	CurrencyCode        string  `json:"currency_code"`
	IssuanceDate        string  `json:"issuance_date"`
	ExpiryDate          string  `json:"expiry_date"`
	Type                string  `json:"type"`
	OperationalStatus   *string `json:"operational_status"`
	AutoRenewal         bool    `json:"auto_renewal"`
	IssuingBankID       *uint   `json:"issuing_bank_id"`
	ForeignBankName     string  `json:"foreign_bank_name"`
	ForeignBankAddress  string  `json:"foreign_bank_address"`
	AdvisingStatus      *string `json:"advising_status"`
	CommunicationBankID *uint   `json:"communication_bank_id"`
	LgCategoryID        uint    `json:"lg_category_id"`
	BeneficiaryName     string  `json:"beneficiary_name"`
	Notes               string  `json:"notes"`

	OwnerEmail        string `json:"owner_email"`
	OwnerPhone        string `json:"owner_phone"`
	OwnerInternalID   string `json:"owner_internal_id"`
	OwnerManagerEmail string `json:"owner_manager_email"`
}

// Create handles recording a new LG
func (h *LGHandler) Create(c *fiber.Ctx) error {
	var req CreateLGRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BusinessNumber == "" {
		return response.BadRequest(c, "Business number is required")
	}
	if req.OwnerEmail == "" {
		return response.BadRequest(c, "Owner email is required")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return response.BadRequest(c, "Invalid amount")
	}
	issuance, err := time.Parse(dateLayout, req.IssuanceDate)
	if err != nil {
		return response.BadRequest(c, "Invalid issuance date")
	}
	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		return response.BadRequest(c, "Invalid expiry date")
	}

	lg, err := h.lgService.Create(c.Context(), &services.CreateLGInput{
		BusinessNumber:      req.BusinessNumber,
		CustomerID:          middleware.CustomerID(c),
		Amount:              amount,
		CurrencyCode:        req.CurrencyCode,
		IssuanceDate:        issuance,
		ExpiryDate:          expiry,
		Type:                req.Type,
		OperationalStatus:   req.OperationalStatus,
		AutoRenewal:         req.AutoRenewal,
		IssuingBankID:       req.IssuingBankID,
		ForeignBankName:     req.ForeignBankName,
		ForeignBankAddress:  req.ForeignBankAddress,
		AdvisingStatus:      req.AdvisingStatus,
		CommunicationBankID: req.CommunicationBankID,
		LgCategoryID:        req.LgCategoryID,
		BeneficiaryName:     req.BeneficiaryName,
		Notes:               req.Notes,
		OwnerEmail:          req.OwnerEmail,
		OwnerPhone:          req.OwnerPhone,
		OwnerInternalID:     req.OwnerInternalID,
		OwnerManagerEmail:   req.OwnerManagerEmail,
	}, middleware.UserID(c))
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Created(c, "LG recorded", lg)
}

// Get handles fetching one LG record
func (h *LGHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid LG id")
	}

	lg, err := h.lgService.GetByID(c.Context(), uint(id))
	if err != nil {
		return mapDomainError(c, err)
	}
	if lg.CustomerID != middleware.CustomerID(c) {
		return response.Forbidden(c, "LG record belongs to another customer")
	}

	return response.Success(c, "", lg)
}

// List handles listing the customer's LG records
func (h *LGHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	records, total, err := h.lgService.List(c.Context(), middleware.CustomerID(c), params.Offset, params.Limit)
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "", pagination.NewResponse(records, params, total))
}

// History handles fetching an LG record's audit trail
func (h *LGHandler) History(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid LG id")
	}
	if ok, resp := h.requireOwnership(c, uint(id)); !ok {
		return resp
	}

	params := pagination.GetParams(c)
	entries, total, err := h.lgService.History(c.Context(), uint(id), params.Offset, params.Limit)
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "", pagination.NewResponse(entries, params, total))
}

// Instructions handles listing an LG record's instructions
func (h *LGHandler) Instructions(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid LG id")
	}
	if ok, resp := h.requireOwnership(c, uint(id)); !ok {
		return resp
	}

	instructions, err := h.lgService.Instructions(c.Context(), uint(id))
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "", instructions)
}

// ============================================================
// Direct actions (corporate admin)
// ============================================================

// ActionRequest carries the shared fields of direct transition requests
type ActionRequest struct {
	NewExpiryDate    string `json:"new_expiry_date"`
	NewAmount        string `json:"new_amount"`
	DecreaseBy       string `json:"decrease_by"`
	Notes            string `json:"notes"`
	SupportingDocURI string `json:"supporting_doc_uri"`
}

// Extend handles a direct extension
func (h *LGHandler) Extend(c *fiber.Ctx) error {
	return h.runAction(c, func(tx *gorm.DB, lgID uint, req *ActionRequest, actor *services.Actor) (interface{}, error) {
		newExpiry, err := time.Parse(dateLayout, req.NewExpiryDate)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid new expiry date")
		}
		instruction, _, err := h.transitionService.Extend(c.Context(), tx, lgID, &services.ExtendInput{
			NewExpiryDate:    newExpiry,
			Notes:            req.Notes,
			SupportingDocURI: req.SupportingDocURI,
		}, actor)
		return instruction, err
	})
}

// Release handles a direct release
func (h *LGHandler) Release(c *fiber.Ctx) error {
	return h.runAction(c, func(tx *gorm.DB, lgID uint, req *ActionRequest, actor *services.Actor) (interface{}, error) {
		instruction, _, err := h.transitionService.Release(c.Context(), tx, lgID, &services.ReleaseInput{
			Notes:            req.Notes,
			SupportingDocURI: req.SupportingDocURI,
		}, actor)
		return instruction, err
	})
}

// Liquidate handles a direct full or partial liquidation
func (h *LGHandler) Liquidate(c *fiber.Ctx) error {
	return h.runAction(c, func(tx *gorm.DB, lgID uint, req *ActionRequest, actor *services.Actor) (interface{}, error) {
		in := &services.LiquidateInput{
			Notes:            req.Notes,
			SupportingDocURI: req.SupportingDocURI,
		}
		if req.NewAmount != "" {
			amount, err := decimal.NewFromString(req.NewAmount)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid new amount")
			}
			in.NewAmount = &amount
		}
		instruction, _, err := h.transitionService.Liquidate(c.Context(), tx, lgID, in, actor)
		return instruction, err
	})
}

// Decrease handles a direct amount decrease
func (h *LGHandler) Decrease(c *fiber.Ctx) error {
	return h.runAction(c, func(tx *gorm.DB, lgID uint, req *ActionRequest, actor *services.Actor) (interface{}, error) {
		decreaseBy, err := decimal.NewFromString(req.DecreaseBy)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid decrease amount")
		}
		instruction, _, err := h.transitionService.DecreaseAmount(c.Context(), tx, lgID, &services.DecreaseInput{
			DecreaseBy:       decreaseBy,
			Notes:            req.Notes,
			SupportingDocURI: req.SupportingDocURI,
		}, actor)
		return instruction, err
	})
}

// Activate handles a direct non-operative activation
func (h *LGHandler) Activate(c *fiber.Ctx) error {
	return h.runAction(c, func(tx *gorm.DB, lgID uint, req *ActionRequest, actor *services.Actor) (interface{}, error) {
		instruction, _, err := h.transitionService.Activate(c.Context(), tx, lgID, &services.ActivateInput{
			Notes:            req.Notes,
			SupportingDocURI: req.SupportingDocURI,
		}, actor)
		return instruction, err
	})
}

// AmendRequest represents the direct amendment body
type AmendRequest struct {
	IssuanceDate        *string `json:"issuance_date"`
	ExpiryDate          *string `json:"expiry_date"`
	AutoRenewal         *bool   `json:"auto_renewal"`
	BeneficiaryName     *string `json:"beneficiary_name"`
	Notes               *string `json:"notes"`
	ForeignBankName     *string `json:"foreign_bank_name"`
	ForeignBankAddress  *string `json:"foreign_bank_address"`
	AdvisingStatus      *string `json:"advising_status"`
	CommunicationBankID *uint   `json:"communication_bank_id"`
}

// Amend handles a direct amendment
func (h *LGHandler) Amend(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid LG id")
	}
	if ok, resp := h.requireOwnership(c, uint(id)); !ok {
		return resp
	}

	var req AmendRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	in := &services.AmendInput{
		AutoRenewal:         req.AutoRenewal,
		BeneficiaryName:     req.BeneficiaryName,
		Notes:               req.Notes,
		ForeignBankName:     req.ForeignBankName,
		ForeignBankAddress:  req.ForeignBankAddress,
		AdvisingStatus:      req.AdvisingStatus,
		CommunicationBankID: req.CommunicationBankID,
	}
	if req.IssuanceDate != nil {
		d, err := time.Parse(dateLayout, *req.IssuanceDate)
		if err != nil {
			return response.BadRequest(c, "Invalid issuance date")
		}
		in.IssuanceDate = &d
	}
	if req.ExpiryDate != nil {
		d, err := time.Parse(dateLayout, *req.ExpiryDate)
		if err != nil {
			return response.BadRequest(c, "Invalid expiry date")
		}
		in.ExpiryDate = &d
	}

	var lg *models.LGRecord
	actor := &services.Actor{MakerUserID: middleware.UserID(c)}
	err = h.lgService.WithTx(c.Context(), func(tx *gorm.DB) error {
		var txErr error
		lg, txErr = h.lgService.Amend(c.Context(), tx, uint(id), in, actor)
		return txErr
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "LG amended", lg)
}

// ChangeOwnerRequest represents the owner reassignment body
type ChangeOwnerRequest struct {
	NewOwnerContactID uint `json:"new_owner_contact_id"`
	OldOwnerContactID uint `json:"old_owner_contact_id"`
}

// ChangeOwner handles a direct single-record owner reassignment
func (h *LGHandler) ChangeOwner(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid LG id")
	}
	if ok, resp := h.requireOwnership(c, uint(id)); !ok {
		return resp
	}

	var req ChangeOwnerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.NewOwnerContactID == 0 {
		return response.BadRequest(c, "New owner contact id is required")
	}

	var lg *models.LGRecord
	actor := &services.Actor{MakerUserID: middleware.UserID(c)}
	err = h.lgService.WithTx(c.Context(), func(tx *gorm.DB) error {
		var txErr error
		lg, txErr = h.lgService.ChangeOwner(c.Context(), tx, uint(id), req.NewOwnerContactID, actor)
		return txErr
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Owner changed", lg)
}

// BulkChangeOwner handles reassigning every LG from one owner to another
func (h *LGHandler) BulkChangeOwner(c *fiber.Ctx) error {
	var req ChangeOwnerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.OldOwnerContactID == 0 || req.NewOwnerContactID == 0 {
		return response.BadRequest(c, "Old and new owner contact ids are required")
	}

	var reassigned int
	actor := &services.Actor{MakerUserID: middleware.UserID(c)}
	err := h.lgService.WithTx(c.Context(), func(tx *gorm.DB) error {
		var txErr error
		reassigned, txErr = h.lgService.BulkChangeOwner(c.Context(), tx,
			middleware.CustomerID(c), req.OldOwnerContactID, req.NewOwnerContactID, actor)
		return txErr
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Owners reassigned", fiber.Map{"reassigned": reassigned})
}

// runAction parses the shared action body, checks tenancy, and runs the
// transition inside one transaction.
func (h *LGHandler) runAction(c *fiber.Ctx, fn func(tx *gorm.DB, lgID uint, req *ActionRequest, actor *services.Actor) (interface{}, error)) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid LG id")
	}
	if ok, resp := h.requireOwnership(c, uint(id)); !ok {
		return resp
	}

	var req ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	actor := &services.Actor{MakerUserID: middleware.UserID(c)}
	var result interface{}
	err = h.transitionService.DB().WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = fn(tx, uint(id), &req, actor)
		return txErr
	})
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return response.BadRequest(c, fiberErr.Message)
		}
		return mapDomainError(c, err)
	}

	return response.Success(c, "Action applied", result)
}

// requireOwnership rejects access to records of another tenant. When ok is
// false the response has already been written.
func (h *LGHandler) requireOwnership(c *fiber.Ctx, lgID uint) (bool, error) {
	lg, err := h.lgService.GetByID(c.Context(), lgID)
	if err != nil {
		return false, mapDomainError(c, err)
	}
	if lg.CustomerID != middleware.CustomerID(c) {
		return false, response.Forbidden(c, "LG record belongs to another customer")
	}
	return true, nil
}
