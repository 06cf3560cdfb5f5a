package repositories

import (
	"context"
	"strconv"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// SettingRepository resolves runtime settings with customer-override-falls-
// back-to-global semantics.
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// EffectiveValue returns the customer's override for a key, or the global
// row, or the supplied default when neither exists.
func (r *SettingRepository) EffectiveValue(ctx context.Context, customerID uint, key, defaultValue string) (string, error) {
	var setting models.CustomerSetting

	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND `key` = ?", customerID, key).
		First(&setting).Error
	if err == nil {
		return setting.Value, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", err
	}

	err = r.db.WithContext(ctx).
		Where("customer_id IS NULL AND `key` = ?", key).
		First(&setting).Error
	if err == nil {
		return setting.Value, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", err
	}

	return defaultValue, nil
}

// EffectiveInt resolves a setting as an integer
func (r *SettingRepository) EffectiveInt(ctx context.Context, customerID uint, key string, defaultValue int) (int, error) {
	value, err := r.EffectiveValue(ctx, customerID, key, strconv.Itoa(defaultValue))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, nil
	}
	return n, nil
}

// Set upserts a setting row (nil customerID targets the global default)
func (r *SettingRepository) Set(ctx context.Context, customerID *uint, key, value string) error {
	var setting models.CustomerSetting

	q := r.db.WithContext(ctx)
	if customerID == nil {
		q = q.Where("customer_id IS NULL AND `key` = ?", key)
	} else {
		q = q.Where("customer_id = ? AND `key` = ?", *customerID, key)
	}

	err := q.First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		setting = models.CustomerSetting{CustomerID: customerID, Key: key, Value: value}
		return r.db.WithContext(ctx).Create(&setting).Error
	}
	if err != nil {
		return err
	}

	setting.Value = value
	return r.db.WithContext(ctx).Save(&setting).Error
}
