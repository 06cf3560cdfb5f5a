package services

import (
	"context"
	"errors"
	"log"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AmendmentGraceDays is how long after expiry an EXPIRED record still accepts
// amendments (and can be reinstated by pushing expiry into the future).
const AmendmentGraceDays = 30

// LGService handles LG record lifecycle outside the letter-emitting
// transitions: recording a new LG, amendments, owner reassignment and reads.
type LGService struct {
	db       *gorm.DB
	notifier Notifier
}

// NewLGService creates a new LG service
func NewLGService(db *gorm.DB, notifier Notifier) *LGService {
	return &LGService{db: db, notifier: notifier}
}

// WithTx runs fn inside one database transaction.
func (s *LGService) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// ============================================================
// Record LG
// ============================================================

// CreateLGInput represents the "record LG" maker action
type CreateLGInput struct {
	BusinessNumber      string
	CustomerID          uint
	Amount              decimal.Decimal
	CurrencyCode        string
	IssuanceDate        time.Time
	ExpiryDate          time.Time
	Type                string
	OperationalStatus   *string
	AutoRenewal         bool
	IssuingBankID       *uint
	ForeignBankName     string
	ForeignBankAddress  string
	AdvisingStatus      *string
	CommunicationBankID *uint
	LgCategoryID        uint
	BeneficiaryName     string
	Notes               string

	OwnerEmail        string
	OwnerPhone        string
	OwnerInternalID   string
	OwnerManagerEmail string
}

// Create records a new LG. The per-customer sequence number feeds serial
// generation for every later instruction on the record.
func (s *LGService) Create(ctx context.Context, in *CreateLGInput, makerID uint) (*models.LGRecord, error) {
	if in.Amount.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}

	var lg *models.LGRecord
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		lgRepo := repositories.NewLGRepository(tx)
		masterRepo := repositories.NewMasterRepository(tx)

		if _, err := lgRepo.GetByBusinessNumber(ctx, in.BusinessNumber); err == nil {
			return domain.ErrDuplicateLGNumber
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		currency, err := masterRepo.GetCurrencyByCode(ctx, in.CurrencyCode)
		if err != nil {
			return domain.ErrCurrencyNotFound
		}
		if _, err := masterRepo.GetCategoryByID(ctx, in.LgCategoryID); err != nil {
			return domain.ErrCategoryNotFound
		}
		if in.IssuingBankID != nil {
			if _, err := masterRepo.GetBankByID(ctx, *in.IssuingBankID); err != nil {
				return domain.ErrBankNotFound
			}
		}

		contact, err := repositories.NewContactRepository(tx).GetOrCreate(ctx, &models.InternalOwnerContact{
			CustomerID:   in.CustomerID,
			Email:        in.OwnerEmail,
			Phone:        in.OwnerPhone,
			InternalID:   in.OwnerInternalID,
			ManagerEmail: in.OwnerManagerEmail,
		})
		if err != nil {
			return err
		}

		seq, err := lgRepo.NextSequenceNumber(ctx, in.CustomerID)
		if err != nil {
			return err
		}

		operational := in.OperationalStatus
		if in.Type == models.LGTypeAdvancePayment && operational == nil {
			nonOperative := models.OperationalStatusNonOperative
			operational = &nonOperative
		}
		if in.Type != models.LGTypeAdvancePayment {
			operational = nil
		}

		lg = &models.LGRecord{
			BusinessNumber:         in.BusinessNumber,
			CustomerID:             in.CustomerID,
			SequenceNumber:         seq,
			Amount:                 in.Amount,
			CurrencyID:             currency.ID,
			IssuanceDate:           in.IssuanceDate,
			ExpiryDate:             in.ExpiryDate,
			PeriodMonths:           monthsBetween(in.IssuanceDate, in.ExpiryDate),
			Status:                 models.LGStatusValid,
			Type:                   in.Type,
			OperationalStatus:      operational,
			AutoRenewal:            in.AutoRenewal,
			IssuingBankID:          in.IssuingBankID,
			ForeignBankName:        in.ForeignBankName,
			ForeignBankAddress:     in.ForeignBankAddress,
			AdvisingStatus:         in.AdvisingStatus,
			CommunicationBankID:    in.CommunicationBankID,
			LgCategoryID:           in.LgCategoryID,
			InternalOwnerContactID: contact.ID,
			BeneficiaryName:        in.BeneficiaryName,
			Notes:                  in.Notes,
		}

		if err := lgRepo.Create(ctx, lg); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrDuplicateLGNumber
			}
			return err
		}

		return writeAudit(ctx, tx, &Actor{MakerUserID: makerID}, models.AuditLgRecorded, lg, models.JSONMap{
			"business_number": lg.BusinessNumber,
			"amount":          lg.Amount.StringFixed(2),
			"expiry_date":     lg.ExpiryDate.Format(dateLayout),
		})
	})
	if err != nil {
		return nil, err
	}
	return lg, nil
}

// ============================================================
// Amend
// ============================================================

// AmendInput is the whitelisted field set an amendment may touch. Nil fields
// stay untouched.
type AmendInput struct {
	IssuanceDate        *time.Time
	ExpiryDate          *time.Time
	AutoRenewal         *bool
	BeneficiaryName     *string
	Notes               *string
	ForeignBankName     *string
	ForeignBankAddress  *string
	AdvisingStatus      *string
	CommunicationBankID *uint
}

// Amend updates the whitelisted fields of a record. An EXPIRED record within
// the grace window whose expiry is pushed into the future reverts to VALID.
func (s *LGService) Amend(ctx context.Context, tx *gorm.DB, lgID uint, in *AmendInput, actor *Actor) (*models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch lg.Status {
	case models.LGStatusValid:
		// amendable
	case models.LGStatusExpired:
		if now.After(lg.ExpiryDate.AddDate(0, 0, AmendmentGraceDays)) {
			return nil, domain.ErrAmendmentGraceExpired
		}
	default:
		return nil, domain.ErrLGImmutable
	}

	changes := models.JSONMap{}
	datesChanged := false

	if in.IssuanceDate != nil && !in.IssuanceDate.Equal(lg.IssuanceDate) {
		changes["issuance_date"] = models.JSONMap{
			"old": lg.IssuanceDate.Format(dateLayout),
			"new": in.IssuanceDate.Format(dateLayout),
		}
		lg.IssuanceDate = *in.IssuanceDate
		datesChanged = true
	}
	if in.ExpiryDate != nil && !in.ExpiryDate.Equal(lg.ExpiryDate) {
		changes["expiry_date"] = models.JSONMap{
			"old": lg.ExpiryDate.Format(dateLayout),
			"new": in.ExpiryDate.Format(dateLayout),
		}
		lg.ExpiryDate = *in.ExpiryDate
		datesChanged = true
	}
	if in.AutoRenewal != nil && *in.AutoRenewal != lg.AutoRenewal {
		changes["auto_renewal"] = models.JSONMap{"old": lg.AutoRenewal, "new": *in.AutoRenewal}
		lg.AutoRenewal = *in.AutoRenewal
	}
	if in.BeneficiaryName != nil && *in.BeneficiaryName != lg.BeneficiaryName {
		changes["beneficiary_name"] = models.JSONMap{"old": lg.BeneficiaryName, "new": *in.BeneficiaryName}
		lg.BeneficiaryName = *in.BeneficiaryName
	}
	if in.Notes != nil && *in.Notes != lg.Notes {
		changes["notes"] = models.JSONMap{"old": lg.Notes, "new": *in.Notes}
		lg.Notes = *in.Notes
	}
	if in.ForeignBankName != nil && *in.ForeignBankName != lg.ForeignBankName {
		changes["foreign_bank_name"] = models.JSONMap{"old": lg.ForeignBankName, "new": *in.ForeignBankName}
		lg.ForeignBankName = *in.ForeignBankName
	}
	if in.ForeignBankAddress != nil && *in.ForeignBankAddress != lg.ForeignBankAddress {
		changes["foreign_bank_address"] = models.JSONMap{"old": lg.ForeignBankAddress, "new": *in.ForeignBankAddress}
		lg.ForeignBankAddress = *in.ForeignBankAddress
	}
	if in.AdvisingStatus != nil {
		old := ""
		if lg.AdvisingStatus != nil {
			old = *lg.AdvisingStatus
		}
		if old != *in.AdvisingStatus {
			changes["advising_status"] = models.JSONMap{"old": old, "new": *in.AdvisingStatus}
			lg.AdvisingStatus = in.AdvisingStatus
		}
	}
	if in.CommunicationBankID != nil {
		var old uint
		if lg.CommunicationBankID != nil {
			old = *lg.CommunicationBankID
		}
		if old != *in.CommunicationBankID {
			changes["communication_bank_id"] = models.JSONMap{"old": old, "new": *in.CommunicationBankID}
			lg.CommunicationBankID = in.CommunicationBankID
		}
	}

	if datesChanged {
		lg.PeriodMonths = monthsBetween(lg.IssuanceDate, lg.ExpiryDate)
	}

	// Reinstatement: an expired record amended to a future expiry is valid
	// again.
	if lg.Status == models.LGStatusExpired && lg.ExpiryDate.After(now) {
		changes["status"] = models.JSONMap{"old": models.LGStatusExpired, "new": models.LGStatusValid}
		lg.Status = models.LGStatusValid
	}

	if len(changes) == 0 {
		return lg, nil
	}

	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, err
	}

	if err := writeAudit(ctx, tx, actor, models.AuditLgAmended, lg, changes); err != nil {
		return nil, err
	}

	s.notifyAmendment(ctx, tx, actor, lg)
	return lg, nil
}

func (s *LGService) notifyAmendment(ctx context.Context, tx *gorm.DB, actor *Actor, lg *models.LGRecord) {
	if actor.viaApproval() || s.notifier == nil {
		return
	}
	recipients := stakeholderEmails(lg)
	if len(recipients) == 0 {
		return
	}
	if err := s.notifier.NotifyLGAction(ctx, recipients, lg, nil); err != nil {
		log.Printf("⚠️ Amendment notification failed for LG %s: %v", lg.BusinessNumber, err)
		if auditErr := writeAudit(ctx, tx, actor, models.AuditNotificationFailed, lg, models.JSONMap{
			"error": err.Error(),
		}); auditErr != nil {
			log.Printf("⚠️ Failed to record notification failure: %v", auditErr)
		}
	}
}

// ============================================================
// Owner reassignment
// ============================================================

// ChangeOwner reassigns one LG record to a different internal owner contact.
func (s *LGService) ChangeOwner(ctx context.Context, tx *gorm.DB, lgID, newOwnerContactID uint, actor *Actor) (*models.LGRecord, error) {
	lg, err := loadLG(ctx, tx, lgID)
	if err != nil {
		return nil, err
	}
	if lg.InternalOwnerContactID == newOwnerContactID {
		return nil, domain.ErrSameOwner
	}

	contact, err := repositories.NewContactRepository(tx).GetByID(ctx, newOwnerContactID)
	if err != nil || contact.CustomerID != lg.CustomerID {
		return nil, domain.ErrOwnerContactNotFound
	}

	oldOwnerID := lg.InternalOwnerContactID
	lg.InternalOwnerContactID = newOwnerContactID
	if err := repositories.NewLGRepository(tx).Update(ctx, lg); err != nil {
		return nil, err
	}

	err = writeAudit(ctx, tx, actor, models.AuditLgOwnerChanged, lg, models.JSONMap{
		"old_owner_contact_id": oldOwnerID,
		"new_owner_contact_id": newOwnerContactID,
	})
	if err != nil {
		return nil, err
	}
	return lg, nil
}

// BulkChangeOwner reassigns every LG held by one owner contact to another.
func (s *LGService) BulkChangeOwner(ctx context.Context, tx *gorm.DB, customerID, oldOwnerContactID, newOwnerContactID uint, actor *Actor) (int, error) {
	if oldOwnerContactID == newOwnerContactID {
		return 0, domain.ErrSameOwner
	}

	contactRepo := repositories.NewContactRepository(tx)
	contact, err := contactRepo.GetByID(ctx, newOwnerContactID)
	if err != nil || contact.CustomerID != customerID {
		return 0, domain.ErrOwnerContactNotFound
	}

	records, err := repositories.NewLGRepository(tx).ListByOwner(ctx, customerID, oldOwnerContactID)
	if err != nil {
		return 0, err
	}

	lgRepo := repositories.NewLGRepository(tx)
	for _, lg := range records {
		lg.InternalOwnerContactID = newOwnerContactID
		if err := lgRepo.Update(ctx, lg); err != nil {
			return 0, err
		}
		err = writeAudit(ctx, tx, actor, models.AuditLgOwnerChanged, lg, models.JSONMap{
			"old_owner_contact_id": oldOwnerContactID,
			"new_owner_contact_id": newOwnerContactID,
			"bulk":                 true,
		})
		if err != nil {
			return 0, err
		}
	}

	return len(records), nil
}

// ============================================================
// Owner contact update (approval-gated target entity)
// ============================================================

// UpdateContactInput is the mutable field set of an owner contact
type UpdateContactInput struct {
	Phone        *string
	InternalID   *string
	ManagerEmail *string
}

// UpdateOwnerContact applies an approved (or direct admin) update to an
// internal owner contact.
func (s *LGService) UpdateOwnerContact(ctx context.Context, tx *gorm.DB, contactID uint, in *UpdateContactInput, actor *Actor) (*models.InternalOwnerContact, error) {
	contactRepo := repositories.NewContactRepository(tx)
	contact, err := contactRepo.GetByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOwnerContactNotFound
		}
		return nil, err
	}

	changes := models.JSONMap{}
	if in.Phone != nil && *in.Phone != contact.Phone {
		changes["phone"] = models.JSONMap{"old": contact.Phone, "new": *in.Phone}
		contact.Phone = *in.Phone
	}
	if in.InternalID != nil && *in.InternalID != contact.InternalID {
		changes["internal_id"] = models.JSONMap{"old": contact.InternalID, "new": *in.InternalID}
		contact.InternalID = *in.InternalID
	}
	if in.ManagerEmail != nil && *in.ManagerEmail != contact.ManagerEmail {
		changes["manager_email"] = models.JSONMap{"old": contact.ManagerEmail, "new": *in.ManagerEmail}
		contact.ManagerEmail = *in.ManagerEmail
	}

	if len(changes) == 0 {
		return contact, nil
	}

	if err := contactRepo.Update(ctx, contact); err != nil {
		return nil, err
	}

	actorID := actor.MakerUserID
	if actor.CheckerUserID != nil {
		actorID = *actor.CheckerUserID
	}
	contactEntityID := contact.ID
	err = repositories.NewAuditRepository(tx).Create(ctx, &models.AuditLog{
		ActorUserID: &actorID,
		ActionType:  models.AuditOwnerContactUpdated,
		EntityType:  models.EntityOwnerContact,
		EntityID:    &contactEntityID,
		Details:     changes,
		CustomerID:  contact.CustomerID,
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// ============================================================
// Reads
// ============================================================

// GetByID gets an LG record
func (s *LGService) GetByID(ctx context.Context, id uint) (*models.LGRecord, error) {
	lg, err := repositories.NewLGRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLGNotFound
		}
		return nil, err
	}
	return lg, nil
}

// List lists a customer's LG records
func (s *LGService) List(ctx context.Context, customerID uint, offset, limit int) ([]*models.LGRecord, int64, error) {
	return repositories.NewLGRepository(s.db).List(ctx, customerID, offset, limit)
}

// History returns the audit trail of an LG record
func (s *LGService) History(ctx context.Context, lgID uint, offset, limit int) ([]*models.AuditLog, int64, error) {
	return repositories.NewAuditRepository(s.db).ListByLG(ctx, lgID, offset, limit)
}

// Instructions lists an LG record's instructions, newest first
func (s *LGService) Instructions(ctx context.Context, lgID uint) ([]*models.LGInstruction, error) {
	return repositories.NewInstructionRepository(s.db).ListByLG(ctx, lgID)
}
