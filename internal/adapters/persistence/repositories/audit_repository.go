package repositories

import (
	"context"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// AuditRepository handles the append-only audit log
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByLG lists audit entries for an LG record, newest first
func (r *AuditRepository) ListByLG(ctx context.Context, lgRecordID uint, offset, limit int) ([]*models.AuditLog, int64, error) {
	var entries []*models.AuditLog
	var total int64

	r.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("lg_record_id = ?", lgRecordID).
		Count(&total)

	err := r.db.WithContext(ctx).
		Where("lg_record_id = ?", lgRecordID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error

	return entries, total, err
}

// ListByCustomer lists audit entries for a customer, newest first
func (r *AuditRepository) ListByCustomer(ctx context.Context, customerID uint, offset, limit int) ([]*models.AuditLog, int64, error) {
	var entries []*models.AuditLog
	var total int64

	r.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("customer_id = ?", customerID).
		Count(&total)

	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error

	return entries, total, err
}
