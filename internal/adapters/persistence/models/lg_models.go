package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JSONMap is a free-form JSON column (template data, request details,
// snapshots, audit details).
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported JSON column type")
	}
	return json.Unmarshal(data, m)
}

// ============================================================
// LG Record
// ============================================================

// LG statuses
const (
	LGStatusValid      = "VALID"
	LGStatusReleased   = "RELEASED"
	LGStatusLiquidated = "LIQUIDATED"
	LGStatusExpired    = "EXPIRED"
)

// LG types
const (
	LGTypeBidBond            = "BID_BOND"
	LGTypePerformanceBond    = "PERFORMANCE_BOND"
	LGTypeAdvancePayment     = "ADVANCE_PAYMENT_GUARANTEE"
	LGTypeFinancialGuarantee = "FINANCIAL_GUARANTEE"
)

// Operational statuses (advance payment guarantees only)
const (
	OperationalStatusOperative    = "OPERATIVE"
	OperationalStatusNonOperative = "NON_OPERATIVE"
)

// Advising statuses for foreign / counter-guarantee LGs
const (
	AdvisingStatusAdvised    = "ADVISED"
	AdvisingStatusConfirmed  = "CONFIRMED"
	AdvisingStatusNotAdvised = "NOT_ADVISED"
)

// LGRecord is a bank guarantee instrument (ตารางหลัก). Mutations go
// exclusively through the transition services; rows are never hard-deleted.
type LGRecord struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	BusinessNumber string          `gorm:"size:50;uniqueIndex;not null" json:"business_number"`
	CustomerID     uint            `gorm:"not null;index;uniqueIndex:idx_lg_customer_seq" json:"customer_id"`
	SequenceNumber uint            `gorm:"not null;uniqueIndex:idx_lg_customer_seq" json:"sequence_number"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CurrencyID     uint            `gorm:"not null" json:"currency_id"`
	IssuanceDate   time.Time       `gorm:"type:date;not null" json:"issuance_date"`
	ExpiryDate     time.Time       `gorm:"type:date;not null" json:"expiry_date"`
	PeriodMonths   int             `json:"period_months"`
	Status         string          `gorm:"size:20;not null;default:'VALID';index" json:"status"`
	Type           string          `gorm:"size:30;not null" json:"type"`
	// OperationalStatus is meaningful only for advance payment guarantees.
	OperationalStatus *string `gorm:"size:20" json:"operational_status"`
	AutoRenewal       bool    `gorm:"default:false" json:"auto_renewal"`

	// Issuing side: either a local bank row, or foreign-bank descriptive
	// fields plus advising status and an optional communication bank.
	IssuingBankID       *uint   `json:"issuing_bank_id"`
	ForeignBankName     string  `gorm:"size:150" json:"foreign_bank_name"`
	ForeignBankAddress  string  `gorm:"type:text" json:"foreign_bank_address"`
	AdvisingStatus      *string `gorm:"size:20" json:"advising_status"`
	CommunicationBankID *uint   `json:"communication_bank_id"`

	LgCategoryID           uint   `gorm:"not null" json:"lg_category_id"`
	InternalOwnerContactID uint   `gorm:"not null;index" json:"internal_owner_contact_id"`
	BeneficiaryName        string `gorm:"size:150" json:"beneficiary_name"`
	Notes                  string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Customer          *Customer             `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Currency          *Currency             `gorm:"foreignKey:CurrencyID" json:"currency,omitempty"`
	IssuingBank       *Bank                 `gorm:"foreignKey:IssuingBankID" json:"issuing_bank,omitempty"`
	CommunicationBank *Bank                 `gorm:"foreignKey:CommunicationBankID" json:"communication_bank,omitempty"`
	Category          *LgCategory           `gorm:"foreignKey:LgCategoryID" json:"category,omitempty"`
	OwnerContact      *InternalOwnerContact `gorm:"foreignKey:InternalOwnerContactID" json:"owner_contact,omitempty"`
}

func (LGRecord) TableName() string {
	return "lg_records"
}

// IsAdvancePayment reports whether the record is an advance payment guarantee.
func (lg *LGRecord) IsAdvancePayment() bool {
	return lg.Type == LGTypeAdvancePayment
}

// HasLocalIssuingBank reports whether the record is issued by a genuine local
// bank rather than the foreign-bank sentinel.
func (lg *LGRecord) HasLocalIssuingBank() bool {
	if lg.IssuingBankID == nil {
		return false
	}
	if lg.IssuingBank != nil && IsForeignSentinel(lg.IssuingBank.Name) {
		return false
	}
	return true
}

// ============================================================
// LG Instruction
// ============================================================

// Instruction types
const (
	InstructionExtension   = "EXTENSION"
	InstructionRelease     = "RELEASE"
	InstructionLiquidation = "LIQUIDATION"
	InstructionDecrease    = "DECREASE_AMOUNT"
	InstructionActivation  = "ACTIVATE_NON_OPERATIVE"
	InstructionReminder    = "REMINDER"
)

// Instruction statuses
const (
	InstructionStatusIssued         = "INSTRUCTION_ISSUED"
	InstructionStatusDelivered      = "INSTRUCTION_DELIVERED"
	InstructionStatusConfirmed      = "CONFIRMED_BY_BANK"
	InstructionStatusReminderIssued = "REMINDER_ISSUED"
	InstructionStatusCanceled       = "CANCELED"
)

// InstructionTypeCode maps an instruction type to its 3-char serial segment.
var InstructionTypeCode = map[string]string{
	InstructionExtension:   "EXT",
	InstructionRelease:     "REL",
	InstructionLiquidation: "LIQ",
	InstructionDecrease:    "DEC",
	InstructionActivation:  "ACT",
	InstructionReminder:    "RMD",
}

// RollbackState carries the prior-state fields a cancellation needs to undo
// one instruction. It is kept separate from the human-readable TemplateData
// so cancellation never guesses at letter-substitution keys. Which fields are
// set depends on the instruction type.
type RollbackState struct {
	OldExpiryDate        *time.Time       `json:"old_expiry_date,omitempty"`
	OriginalAmount       *decimal.Decimal `json:"original_lg_amount,omitempty"`
	OriginalStatus       *string          `json:"original_status,omitempty"`
	OriginalOperational  *string          `json:"original_operational_status,omitempty"`
	PartialLiquidation   bool             `json:"partial_liquidation,omitempty"`
	CancellationReason   string           `json:"cancellation_reason,omitempty"`
	CancellationByUserID *uint            `json:"cancellation_by_user_id,omitempty"`
}

// Value implements driver.Valuer
func (r RollbackState) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (r *RollbackState) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported JSON column type")
	}
	return json.Unmarshal(data, r)
}

// LGInstruction is the persisted record of one bank-facing letter.
type LGInstruction struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	LGRecordID uint   `gorm:"not null;index" json:"lg_record_id"`
	Type       string `gorm:"size:30;not null" json:"type"`
	SubCode    string `gorm:"size:4;not null" json:"sub_code"`
	Serial     string `gorm:"size:40;uniqueIndex;not null" json:"serial"`
	GlobalSeq  int    `gorm:"not null" json:"global_seq"`
	TypeSeq    int    `gorm:"not null" json:"type_seq"`
	Status     string `gorm:"size:30;not null;default:'INSTRUCTION_ISSUED'" json:"status"`

	MakerUserID       uint  `gorm:"not null" json:"maker_user_id"`
	CheckerUserID     *uint `json:"checker_user_id"`
	ApprovalRequestID *uint `gorm:"index" json:"approval_request_id"`

	// TemplateData is the letter substitution map; RollbackState is the
	// typed prior-state record used by cancellation.
	TemplateData  JSONMap        `gorm:"type:json" json:"template_data"`
	RollbackState *RollbackState `gorm:"type:json" json:"rollback_state"`

	RecipientName    string `gorm:"size:150" json:"recipient_name"`
	RecipientAddress string `gorm:"type:text" json:"recipient_address"`

	DocumentURI           string `gorm:"size:255" json:"document_uri"`
	SupportingDocumentURI string `gorm:"size:255" json:"supporting_document_uri"`

	DeliveredAt        *time.Time `json:"delivered_at"`
	BankReplyAt        *time.Time `json:"bank_reply_at"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason"`
	CanceledAt         *time.Time `json:"canceled_at"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	LGRecord *LGRecord `gorm:"foreignKey:LGRecordID" json:"lg_record,omitempty"`
	Maker    *User     `gorm:"foreignKey:MakerUserID" json:"maker,omitempty"`
	Checker  *User     `gorm:"foreignKey:CheckerUserID" json:"checker,omitempty"`
}

func (LGInstruction) TableName() string {
	return "lg_instructions"
}

// ProducesBankLetter reports whether the instruction type is an actual bank
// letter (reminders are internal and cannot be canceled).
func (i *LGInstruction) ProducesBankLetter() bool {
	return i.Type != InstructionReminder
}

// IsCancelable reports whether the instruction status still permits
// cancellation.
func (i *LGInstruction) IsCancelable() bool {
	return i.Status == InstructionStatusIssued || i.Status == InstructionStatusReminderIssued
}

// ============================================================
// Approval Request
// ============================================================

// Approval target entity types
const (
	EntityLGRecord     = "LG_RECORD"
	EntityOwnerContact = "OWNER_CONTACT"
)

// Approval action types
const (
	ActionExtend             = "EXTEND"
	ActionRelease            = "RELEASE"
	ActionLiquidate          = "LIQUIDATE"
	ActionDecreaseAmount     = "DECREASE_AMOUNT"
	ActionActivate           = "ACTIVATE_NON_OPERATIVE"
	ActionAmend              = "AMEND"
	ActionChangeOwner        = "CHANGE_OWNER"
	ActionBulkChangeOwner    = "BULK_CHANGE_OWNER"
	ActionCancelInstruction  = "CANCEL_INSTRUCTION"
	ActionUpdateOwnerContact = "UPDATE_OWNER_CONTACT"
)

// Approval statuses. PENDING is the only non-terminal state.
const (
	ApprovalStatusPending     = "PENDING"
	ApprovalStatusApproved    = "APPROVED"
	ApprovalStatusRejected    = "REJECTED"
	ApprovalStatusWithdrawn   = "WITHDRAWN"
	ApprovalStatusInvalidated = "INVALIDATED_BY_APPROVAL"
	ApprovalStatusAutoExpired = "AUTO_REJECTED_EXPIRED"
)

// ApprovalRequest is a maker's proposed mutation awaiting checker action.
// Snapshot holds the target entity's mutable fields as of submission.
type ApprovalRequest struct {
	ID            uint  `gorm:"primaryKey" json:"id"`
	MakerUserID   uint  `gorm:"not null;index" json:"maker_user_id"`
	CheckerUserID *uint `json:"checker_user_id"`
	CustomerID    uint  `gorm:"not null;index" json:"customer_id"`

	EntityType string `gorm:"size:30;not null;index:idx_approval_entity" json:"entity_type"`
	EntityID   uint   `gorm:"not null;index:idx_approval_entity" json:"entity_id"`
	ActionType string `gorm:"size:30;not null" json:"action_type"`

	RequestDetails JSONMap `gorm:"type:json" json:"request_details"`
	Snapshot       JSONMap `gorm:"type:json" json:"snapshot"`

	Status                 string     `gorm:"size:30;not null;default:'PENDING';index" json:"status"`
	ResolutionReason       string     `gorm:"type:text" json:"resolution_reason"`
	InvalidatedByRequestID *uint      `json:"invalidated_by_request_id"`
	InstructionID          *uint      `json:"instruction_id"`
	ResolvedAt             *time.Time `json:"resolved_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Maker       *User          `gorm:"foreignKey:MakerUserID" json:"maker,omitempty"`
	Checker     *User          `gorm:"foreignKey:CheckerUserID" json:"checker,omitempty"`
	Customer    *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Instruction *LGInstruction `gorm:"foreignKey:InstructionID" json:"instruction,omitempty"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// IsPending reports whether the request is still awaiting resolution.
func (ar *ApprovalRequest) IsPending() bool {
	return ar.Status == ApprovalStatusPending
}
