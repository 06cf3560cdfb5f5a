package repositories

import (
	"context"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// LGRepository handles LG record data access
type LGRepository struct {
	db *gorm.DB
}

// NewLGRepository creates a new LG repository
func NewLGRepository(db *gorm.DB) *LGRepository {
	return &LGRepository{db: db}
}

// Create creates a new LG record
func (r *LGRepository) Create(ctx context.Context, lg *models.LGRecord) error {
	return r.db.WithContext(ctx).Create(lg).Error
}

// GetByID gets an LG record by ID with relations
func (r *LGRepository) GetByID(ctx context.Context, id uint) (*models.LGRecord, error) {
	var lg models.LGRecord
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Currency").
		Preload("IssuingBank").
		Preload("CommunicationBank").
		Preload("Category").
		Preload("OwnerContact").
		First(&lg, id).Error
	if err != nil {
		return nil, err
	}
	return &lg, nil
}

// GetByBusinessNumber gets an LG record by its unique business number
func (r *LGRepository) GetByBusinessNumber(ctx context.Context, number string) (*models.LGRecord, error) {
	var lg models.LGRecord
	err := r.db.WithContext(ctx).
		Where("business_number = ?", number).
		First(&lg).Error
	if err != nil {
		return nil, err
	}
	return &lg, nil
}

// List lists LG records for a customer with pagination
func (r *LGRepository) List(ctx context.Context, customerID uint, offset, limit int) ([]*models.LGRecord, int64, error) {
	var records []*models.LGRecord
	var total int64

	r.db.WithContext(ctx).Model(&models.LGRecord{}).
		Where("customer_id = ?", customerID).
		Count(&total)

	err := r.db.WithContext(ctx).
		Preload("Currency").
		Preload("IssuingBank").
		Preload("OwnerContact").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	return records, total, err
}

// ListByOwner lists records assigned to one internal owner contact
func (r *LGRepository) ListByOwner(ctx context.Context, customerID, ownerContactID uint) ([]*models.LGRecord, error) {
	var records []*models.LGRecord
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND internal_owner_contact_id = ?", customerID, ownerContactID).
		Find(&records).Error
	return records, err
}

// Update saves an LG record
func (r *LGRepository) Update(ctx context.Context, lg *models.LGRecord) error {
	return r.db.WithContext(ctx).Save(lg).Error
}

// NextSequenceNumber returns 1 + the highest sequence number recorded for the
// customer. Uniqueness is backed by the (customer_id, sequence_number) index.
func (r *LGRepository) NextSequenceNumber(ctx context.Context, customerID uint) (uint, error) {
	var max uint
	err := r.db.WithContext(ctx).Model(&models.LGRecord{}).
		Unscoped().
		Where("customer_id = ?", customerID).
		Select("COALESCE(MAX(sequence_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// ListExpiryCandidates returns VALID, non-auto-renew records whose expiry
// date has passed.
func (r *LGRepository) ListExpiryCandidates(ctx context.Context, asOf time.Time) ([]*models.LGRecord, error) {
	var records []*models.LGRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_renewal = ? AND expiry_date < ?",
			models.LGStatusValid, false, asOf).
		Find(&records).Error
	return records, err
}

// ListReminderCandidates returns VALID records expiring on or before the
// threshold date.
func (r *LGRepository) ListReminderCandidates(ctx context.Context, threshold time.Time) ([]*models.LGRecord, error) {
	var records []*models.LGRecord
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Currency").
		Preload("IssuingBank").
		Preload("Category").
		Preload("OwnerContact").
		Where("status = ? AND expiry_date <= ?", models.LGStatusValid, threshold).
		Find(&records).Error
	return records, err
}
