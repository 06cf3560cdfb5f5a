package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Auth & Tenant Tables
// ============================================================

// User roles
const (
	RoleMaker          = "MAKER"
	RoleChecker        = "CHECKER"
	RoleCorporateAdmin = "CORPORATE_ADMIN"
)

// User represents users table
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CustomerID uint           `gorm:"not null;index" json:"customer_id"`
	Username   string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email      string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password   string         `gorm:"size:255;not null" json:"-"`
	Role       string         `gorm:"size:20;default:'MAKER'" json:"role"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// CanCheck reports whether the user may act as checker on approval requests.
func (u *User) CanCheck() bool {
	return u.Role == RoleChecker || u.Role == RoleCorporateAdmin
}

// UserResponse DTO
type UserResponse struct {
	ID         uint      `json:"id"`
	CustomerID uint      `json:"customer_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:         u.ID,
		CustomerID: u.CustomerID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// Customer is the corporate tenant that owns LG records. EntityCode is the
// beneficiary-entity prefix used when composing instruction serial numbers.
type Customer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:150;not null" json:"name"`
	EntityCode string         `gorm:"size:10;uniqueIndex;not null" json:"entity_code"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// ============================================================
// Master Tables
// ============================================================

// Bank represents a local issuing or communication bank (Master)
type Bank struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Code      string         `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name      string         `gorm:"size:150;not null" json:"name"`
	Swift     string         `gorm:"size:20" json:"swift"`
	Address   string         `gorm:"type:text" json:"address"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Bank) TableName() string {
	return "banks"
}

// ForeignBankSentinel marks an LG issued by a bank with no local record.
// Matching is case-insensitive.
const ForeignBankSentinel = "Foreign Bank"

// IsForeignSentinel reports whether a bank name is the foreign-bank marker.
func IsForeignSentinel(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ForeignBankSentinel)
}

// Currency represents an ISO currency (Master)
type Currency struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:3;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Decimals  int       `gorm:"default:2" json:"decimals"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Currency) TableName() string {
	return "currencies"
}

// LgCategory classifies LG records; Code (max 2 chars) feeds the serial
// number, padded with '_' when shorter.
type LgCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:2;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LgCategory) TableName() string {
	return "lg_categories"
}

// InternalOwnerContact is the deduplicated internal stakeholder for an LG,
// one row per (customer, email). Mutations go through the approval engine.
type InternalOwnerContact struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CustomerID   uint           `gorm:"not null;uniqueIndex:idx_owner_customer_email" json:"customer_id"`
	Email        string         `gorm:"size:100;not null;uniqueIndex:idx_owner_customer_email" json:"email"`
	Phone        string         `gorm:"size:30" json:"phone"`
	InternalID   string         `gorm:"size:50" json:"internal_id"`
	ManagerEmail string         `gorm:"size:100" json:"manager_email"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (InternalOwnerContact) TableName() string {
	return "internal_owner_contacts"
}

// ============================================================
// Settings & Audit
// ============================================================

// Setting keys
const (
	SettingCancellationWindowDays = "CANCELLATION_WINDOW_DAYS"
	SettingMaxPendingDays         = "MAX_PENDING_DAYS"
	SettingReminderThresholdDays  = "REMINDER_THRESHOLD_DAYS"
	SettingReminderIntervalDays   = "REMINDER_INTERVAL_DAYS"
)

// CustomerSetting stores runtime settings; CustomerID NULL means the global
// default, a row with a customer id overrides it.
type CustomerSetting struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID *uint     `gorm:"uniqueIndex:idx_setting_customer_key" json:"customer_id"`
	Key        string    `gorm:"size:50;not null;uniqueIndex:idx_setting_customer_key" json:"key"`
	Value      string    `gorm:"size:100;not null" json:"value"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CustomerSetting) TableName() string {
	return "customer_settings"
}

// Audit action types
const (
	AuditLgRecorded            = "LG_RECORDED"
	AuditLgExtended            = "LG_EXTENDED"
	AuditLgReleased            = "LG_RELEASED"
	AuditLgLiquidated          = "LG_LIQUIDATED"
	AuditLgDecreased           = "LG_AMOUNT_DECREASED"
	AuditLgActivated           = "LG_ACTIVATED"
	AuditLgAmended             = "LG_AMENDED"
	AuditLgOwnerChanged        = "LG_OWNER_CHANGED"
	AuditLgExpired             = "LG_EXPIRED"
	AuditLgReminderSent        = "LG_REMINDER_SENT"
	AuditInstructionCanceled   = "INSTRUCTION_CANCELED"
	AuditApprovalSubmitted     = "APPROVAL_SUBMITTED"
	AuditApprovalApproved      = "APPROVAL_APPROVED"
	AuditApprovalRejected      = "APPROVAL_REJECTED"
	AuditApprovalWithdrawn     = "APPROVAL_WITHDRAWN"
	AuditApprovalInvalidated   = "APPROVAL_INVALIDATED"
	AuditApprovalExpired       = "APPROVAL_AUTO_EXPIRED"
	AuditSelfApprovalRejected  = "SELF_APPROVAL_REJECTED"
	AuditApprovalDriftDetected = "APPROVAL_DRIFT_DETECTED"
	AuditNotificationFailed    = "NOTIFICATION_FAILED"
	AuditOwnerContactUpdated   = "OWNER_CONTACT_UPDATED"
)

// AuditLog is the append-only action trail. Rows are written inside the same
// transaction as the mutation they describe.
type AuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActorUserID *uint     `gorm:"index" json:"actor_user_id"`
	ActionType  string    `gorm:"size:50;not null;index" json:"action_type"`
	EntityType  string    `gorm:"size:30;not null" json:"entity_type"`
	EntityID    *uint     `json:"entity_id"`
	Details     JSONMap   `gorm:"type:json" json:"details"`
	CustomerID  uint      `gorm:"not null;index" json:"customer_id"`
	LGRecordID  *uint     `gorm:"index" json:"lg_record_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Customer{},
		&User{},
		&RefreshToken{},
		// Master
		&Bank{},
		&Currency{},
		&LgCategory{},
		&InternalOwnerContact{},
		// Core
		&LGRecord{},
		&LGInstruction{},
		&ApprovalRequest{},
		// Support
		&CustomerSetting{},
		&AuditLog{},
	)
}
