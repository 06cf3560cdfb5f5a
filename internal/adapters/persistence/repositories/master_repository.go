package repositories

import (
	"context"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// MasterRepository handles master data access (banks, currencies, categories,
// customers)
type MasterRepository struct {
	db *gorm.DB
}

// NewMasterRepository creates a new master repository
func NewMasterRepository(db *gorm.DB) *MasterRepository {
	return &MasterRepository{db: db}
}

// GetBankByID gets a bank by ID
func (r *MasterRepository) GetBankByID(ctx context.Context, id uint) (*models.Bank, error) {
	var bank models.Bank
	err := r.db.WithContext(ctx).First(&bank, id).Error
	if err != nil {
		return nil, err
	}
	return &bank, nil
}

// ListBanks lists active banks
func (r *MasterRepository) ListBanks(ctx context.Context) ([]*models.Bank, error) {
	var banks []*models.Bank
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&banks).Error
	return banks, err
}

// GetCurrencyByCode gets a currency by ISO code
func (r *MasterRepository) GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	var currency models.Currency
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&currency).Error
	if err != nil {
		return nil, err
	}
	return &currency, nil
}

// ListCurrencies lists all currencies
func (r *MasterRepository) ListCurrencies(ctx context.Context) ([]*models.Currency, error) {
	var currencies []*models.Currency
	err := r.db.WithContext(ctx).Order("code ASC").Find(&currencies).Error
	return currencies, err
}

// ListCategories lists all LG categories
func (r *MasterRepository) ListCategories(ctx context.Context) ([]*models.LgCategory, error) {
	var categories []*models.LgCategory
	err := r.db.WithContext(ctx).Order("code ASC").Find(&categories).Error
	return categories, err
}

// GetCategoryByID gets an LG category by ID
func (r *MasterRepository) GetCategoryByID(ctx context.Context, id uint) (*models.LgCategory, error) {
	var category models.LgCategory
	err := r.db.WithContext(ctx).First(&category, id).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCustomerByID gets a customer by ID
func (r *MasterRepository) GetCustomerByID(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).First(&customer, id).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// ContactRepository handles internal owner contact data access
type ContactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// GetByID gets a contact by ID
func (r *ContactRepository) GetByID(ctx context.Context, id uint) (*models.InternalOwnerContact, error) {
	var contact models.InternalOwnerContact
	err := r.db.WithContext(ctx).First(&contact, id).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// GetOrCreate returns the customer's contact for an email, creating the row
// when no match exists (contacts are deduplicated per customer by email).
func (r *ContactRepository) GetOrCreate(ctx context.Context, contact *models.InternalOwnerContact) (*models.InternalOwnerContact, error) {
	var existing models.InternalOwnerContact
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND email = ?", contact.CustomerID, contact.Email).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, err
	}
	return contact, nil
}

// Update saves a contact
func (r *ContactRepository) Update(ctx context.Context, contact *models.InternalOwnerContact) error {
	return r.db.WithContext(ctx).Save(contact).Error
}

// ListByCustomer lists a customer's contacts
func (r *ContactRepository) ListByCustomer(ctx context.Context, customerID uint) ([]*models.InternalOwnerContact, error) {
	var contacts []*models.InternalOwnerContact
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("email ASC").
		Find(&contacts).Error
	return contacts, err
}
