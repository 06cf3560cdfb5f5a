package handlers

import (
	"errors"
	"log"

	"treasury-lghub/internal/core/domain"
	"treasury-lghub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// mapDomainError translates a service error to the matching HTTP response.
// Validation and conflict errors carry their message; anything unexpected is
// logged and collapsed to a generic 500.
func mapDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrLGNotFound),
		errors.Is(err, domain.ErrInstructionNotFound),
		errors.Is(err, domain.ErrApprovalNotFound),
		errors.Is(err, domain.ErrOwnerContactNotFound),
		errors.Is(err, domain.ErrBankNotFound),
		errors.Is(err, domain.ErrCurrencyNotFound),
		errors.Is(err, domain.ErrCategoryNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return response.NotFound(c, err.Error())

	case errors.Is(err, domain.ErrDuplicateLGNumber),
		errors.Is(err, domain.ErrSelfApproval),
		errors.Is(err, domain.ErrApprovalNotPending),
		errors.Is(err, domain.ErrTargetEntityVanished):
		return response.Conflict(c, err.Error())

	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrNotRequestMaker),
		errors.Is(err, domain.ErrCheckerRoleRequired):
		return response.Forbidden(c, err.Error())

	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrLGNotValid),
		errors.Is(err, domain.ErrLGImmutable),
		errors.Is(err, domain.ErrExpiryNotExtended),
		errors.Is(err, domain.ErrInvalidLiquidation),
		errors.Is(err, domain.ErrInvalidDecrease),
		errors.Is(err, domain.ErrNotAdvancePayment),
		errors.Is(err, domain.ErrNotNonOperative),
		errors.Is(err, domain.ErrAmendmentGraceExpired),
		errors.Is(err, domain.ErrSameOwner),
		errors.Is(err, domain.ErrNotLatestInstruction),
		errors.Is(err, domain.ErrInstructionWrongRecord),
		errors.Is(err, domain.ErrInstructionNotLetter),
		errors.Is(err, domain.ErrInstructionNotIssued),
		errors.Is(err, domain.ErrInstructionNotDelivered),
		errors.Is(err, domain.ErrCancellationWindowPast),
		errors.Is(err, domain.ErrRollbackStateMissing),
		errors.Is(err, domain.ErrDeclarationRequired),
		errors.Is(err, domain.ErrWithdrawWindowPast),
		errors.Is(err, domain.ErrSnapshotNotDerivable),
		errors.Is(err, domain.ErrUnregisteredAction):
		return response.BadRequest(c, err.Error())

	default:
		log.Printf("❌ Unhandled error: %v", err)
		return response.InternalError(c)
	}
}
