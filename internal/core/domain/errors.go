package domain

import "errors"

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalServer     = errors.New("internal server error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// User errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// LG record errors
var (
	ErrLGNotFound            = errors.New("lg record not found")
	ErrDuplicateLGNumber     = errors.New("lg business number already exists")
	ErrLGNotValid            = errors.New("lg record is not in VALID status")
	ErrLGImmutable           = errors.New("lg record no longer accepts value-changing actions")
	ErrExpiryNotExtended     = errors.New("new expiry date must be after current expiry date")
	ErrInvalidLiquidation    = errors.New("liquidation amount must be between zero and the current amount")
	ErrInvalidDecrease       = errors.New("decrease must be between zero and the current amount")
	ErrNotAdvancePayment     = errors.New("lg record is not an advance payment guarantee")
	ErrNotNonOperative       = errors.New("lg record is not in non-operative status")
	ErrAmendmentGraceExpired = errors.New("lg record expired beyond the amendment grace window")
	ErrSameOwner             = errors.New("new owner contact is the same as the current owner")
	ErrOwnerContactNotFound  = errors.New("internal owner contact not found")
	ErrBankNotFound          = errors.New("bank not found")
	ErrCurrencyNotFound      = errors.New("currency not found")
	ErrCategoryNotFound      = errors.New("lg category not found")
)

// Instruction errors
var (
	ErrInstructionNotFound     = errors.New("instruction not found")
	ErrInstructionWrongRecord  = errors.New("instruction does not belong to the target lg record")
	ErrSerialExhausted         = errors.New("serial number allocation failed after retries")
	ErrNotLatestInstruction    = errors.New("only the most recent instruction can be canceled")
	ErrInstructionNotLetter    = errors.New("instruction type does not produce a cancelable bank letter")
	ErrInstructionNotIssued    = errors.New("instruction status no longer permits cancellation")
	ErrInstructionNotDelivered = errors.New("instruction has not been delivered to the bank")
	ErrCancellationWindowPast  = errors.New("cancellation window has elapsed")
	ErrRollbackStateMissing    = errors.New("instruction carries no rollback state for its type")
	ErrDeclarationRequired     = errors.New("cancellation declaration must be confirmed")
	ErrRenderFailed            = errors.New("instruction letter rendering failed")
)

// Approval errors
var (
	ErrApprovalNotFound      = errors.New("approval request not found")
	ErrApprovalNotPending    = errors.New("approval request is already resolved")
	ErrSelfApproval          = errors.New("maker cannot check their own request")
	ErrNotRequestMaker       = errors.New("only the maker may withdraw the request")
	ErrWithdrawWindowPast    = errors.New("request is too old to withdraw")
	ErrTargetEntityVanished  = errors.New("target entity no longer exists")
	ErrSnapshotNotDerivable  = errors.New("no snapshot can be derived for the target entity")
	ErrUnregisteredAction    = errors.New("no handler registered for entity/action pair")
	ErrCheckerRoleRequired   = errors.New("checker or corporate admin role required")
)
