package config

import (
	"log"

	"treasury-lghub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// SeedMasterData seeds currencies, LG categories, the foreign-bank sentinel
// row and the global runtime settings. Safe to run on every start.
func SeedMasterData(db *gorm.DB) error {
	if err := seedCurrencies(db); err != nil {
		return err
	}
	if err := seedCategories(db); err != nil {
		return err
	}
	if err := seedBanks(db); err != nil {
		return err
	}
	if err := seedGlobalSettings(db); err != nil {
		return err
	}

	log.Println("✅ Master data seeding completed")
	return nil
}

func seedCurrencies(db *gorm.DB) error {
	currencies := []models.Currency{
		{Code: "USD", Name: "US Dollar", Decimals: 2},
		{Code: "EUR", Name: "Euro", Decimals: 2},
		{Code: "GBP", Name: "Pound Sterling", Decimals: 2},
		{Code: "SAR", Name: "Saudi Riyal", Decimals: 2},
		{Code: "EGP", Name: "Egyptian Pound", Decimals: 2},
		{Code: "AED", Name: "UAE Dirham", Decimals: 2},
	}

	for _, c := range currencies {
		if err := db.Where("code = ?", c.Code).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedCategories(db *gorm.DB) error {
	categories := []models.LgCategory{
		{Code: "B", Name: "Bid Bond"},
		{Code: "P", Name: "Performance Bond"},
		{Code: "A", Name: "Advance Payment"},
		{Code: "F", Name: "Financial"},
	}

	for _, c := range categories {
		if err := db.Where("code = ?", c.Code).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedBanks(db *gorm.DB) error {
	// The sentinel row lets records with no local issuing bank still carry a
	// bank FK; recipient resolution recognises it by name.
	banks := []models.Bank{
		{Code: "FOREIGN", Name: models.ForeignBankSentinel},
	}

	for _, b := range banks {
		if err := db.Where("code = ?", b.Code).FirstOrCreate(&b).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedGlobalSettings(db *gorm.DB) error {
	defaults := map[string]string{
		models.SettingCancellationWindowDays: "7",
		models.SettingMaxPendingDays:         "14",
		models.SettingReminderThresholdDays:  "30",
		models.SettingReminderIntervalDays:   "7",
	}

	for key, value := range defaults {
		setting := models.CustomerSetting{Key: key, Value: value}
		err := db.Where("customer_id IS NULL AND `key` = ?", key).
			FirstOrCreate(&setting).Error
		if err != nil {
			return err
		}
	}
	return nil
}
