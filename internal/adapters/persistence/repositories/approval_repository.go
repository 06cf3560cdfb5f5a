package repositories

import (
	"context"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// ApprovalRepository handles approval request data access
type ApprovalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create creates a new approval request
func (r *ApprovalRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// GetByID gets an approval request by ID with relations
func (r *ApprovalRepository) GetByID(ctx context.Context, id uint) (*models.ApprovalRequest, error) {
	var request models.ApprovalRequest
	err := r.db.WithContext(ctx).
		Preload("Maker").
		Preload("Checker").
		First(&request, id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// Update saves an approval request
func (r *ApprovalRepository) Update(ctx context.Context, request *models.ApprovalRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// ListPendingByEntity returns all PENDING requests against one target
// entity, excluding one request id (zero means exclude nothing).
func (r *ApprovalRepository) ListPendingByEntity(ctx context.Context, entityType string, entityID uint, excludeID uint) ([]*models.ApprovalRequest, error) {
	var requests []*models.ApprovalRequest
	q := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND status = ?",
			entityType, entityID, models.ApprovalStatusPending)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Find(&requests).Error
	return requests, err
}

// ListAllPending returns every PENDING request (the expiry sweep applies the
// per-customer cutoff itself).
func (r *ApprovalRepository) ListAllPending(ctx context.Context) ([]*models.ApprovalRequest, error) {
	var requests []*models.ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ApprovalStatusPending).
		Find(&requests).Error
	return requests, err
}

// ListByCustomer lists requests for a customer with pagination, newest first
func (r *ApprovalRepository) ListByCustomer(ctx context.Context, customerID uint, status string, offset, limit int) ([]*models.ApprovalRequest, int64, error) {
	var requests []*models.ApprovalRequest
	var total int64

	q := r.db.WithContext(ctx).Model(&models.ApprovalRequest{}).
		Where("customer_id = ?", customerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q.Count(&total)

	err := q.
		Preload("Maker").
		Preload("Checker").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&requests).Error

	return requests, total, err
}
