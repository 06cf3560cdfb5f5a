package handlers

import (
	"treasury-lghub/internal/adapters/http/middleware"
	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/core/services"
	"treasury-lghub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MasterHandler handles master-data and settings endpoints
type MasterHandler struct {
	masterRepo  *repositories.MasterRepository
	contactRepo *repositories.ContactRepository
	settingRepo *repositories.SettingRepository
	lgService   *services.LGService
}

// NewMasterHandler creates a new master handler
func NewMasterHandler(masterRepo *repositories.MasterRepository, contactRepo *repositories.ContactRepository, settingRepo *repositories.SettingRepository, lgService *services.LGService) *MasterHandler {
	return &MasterHandler{
		masterRepo:  masterRepo,
		contactRepo: contactRepo,
		settingRepo: settingRepo,
		lgService:   lgService,
	}
}

// ListBanks handles listing active banks
func (h *MasterHandler) ListBanks(c *fiber.Ctx) error {
	banks, err := h.masterRepo.ListBanks(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return response.Success(c, "", banks)
}

// ListCurrencies handles listing currencies
func (h *MasterHandler) ListCurrencies(c *fiber.Ctx) error {
	currencies, err := h.masterRepo.ListCurrencies(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return response.Success(c, "", currencies)
}

// ListCategories handles listing LG categories
func (h *MasterHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.masterRepo.ListCategories(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return response.Success(c, "", categories)
}

// ListContacts handles listing the customer's owner contacts
func (h *MasterHandler) ListContacts(c *fiber.Ctx) error {
	contacts, err := h.contactRepo.ListByCustomer(c.Context(), middleware.CustomerID(c))
	if err != nil {
		return mapDomainError(c, err)
	}
	return response.Success(c, "", contacts)
}

// UpdateContactRequest represents the direct contact update body
type UpdateContactRequest struct {
	Phone        *string `json:"phone"`
	InternalID   *string `json:"internal_id"`
	ManagerEmail *string `json:"manager_email"`
}

// UpdateContact handles a direct (admin) owner contact update
func (h *MasterHandler) UpdateContact(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid contact id")
	}

	contact, err := h.contactRepo.GetByID(c.Context(), uint(id))
	if err != nil {
		return response.NotFound(c, "Contact not found")
	}
	if contact.CustomerID != middleware.CustomerID(c) {
		return response.Forbidden(c, "Contact belongs to another customer")
	}

	var req UpdateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	actor := &services.Actor{MakerUserID: middleware.UserID(c)}
	var updated *models.InternalOwnerContact
	err = h.lgService.WithTx(c.Context(), func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = h.lgService.UpdateOwnerContact(c.Context(), tx, uint(id), &services.UpdateContactInput{
			Phone:        req.Phone,
			InternalID:   req.InternalID,
			ManagerEmail: req.ManagerEmail,
		}, actor)
		return txErr
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Contact updated", updated)
}

// SettingRequest represents a settings override body
type SettingRequest struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Global bool   `json:"global"`
}

// SetSetting handles writing a customer override (or, for global=true, the
// system default) for one settings key
func (h *MasterHandler) SetSetting(c *fiber.Ctx) error {
	var req SettingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Key == "" || req.Value == "" {
		return response.BadRequest(c, "Key and value are required")
	}

	var customerID *uint
	if !req.Global {
		id := middleware.CustomerID(c)
		customerID = &id
	}
	if err := h.settingRepo.Set(c.Context(), customerID, req.Key, req.Value); err != nil {
		return mapDomainError(c, err)
	}

	return response.Success(c, "Setting saved", nil)
}
