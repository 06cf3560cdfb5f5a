package services

import (
	"context"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// genericRecipient is the final fallback when nothing about the issuing side
// resolves to an addressable party.
const genericRecipient = "To Whom It May Concern"

// resolveRecipient decides who an instruction letter is addressed to.
//
// A genuine local issuing bank is addressed directly. A foreign or
// counter-guarantee goes to the communication bank when the LG is advised or
// confirmed and the bank resolves; otherwise (or on any resolution failure)
// to the stored foreign-bank name and address.
func resolveRecipient(ctx context.Context, tx *gorm.DB, lg *models.LGRecord) (name, address string) {
	masterRepo := repositories.NewMasterRepository(tx)

	if lg.IssuingBank == nil && lg.IssuingBankID != nil {
		if bank, err := masterRepo.GetBankByID(ctx, *lg.IssuingBankID); err == nil {
			lg.IssuingBank = bank
		}
	}
	if lg.HasLocalIssuingBank() && lg.IssuingBank != nil {
		return lg.IssuingBank.Name, lg.IssuingBank.Address
	}

	advised := lg.AdvisingStatus != nil &&
		(*lg.AdvisingStatus == models.AdvisingStatusAdvised || *lg.AdvisingStatus == models.AdvisingStatusConfirmed)

	if advised && lg.CommunicationBankID != nil {
		bank, err := masterRepo.GetBankByID(ctx, *lg.CommunicationBankID)
		if err == nil {
			return bank.Name, bank.Address
		}
	}

	if lg.ForeignBankName != "" {
		return lg.ForeignBankName, lg.ForeignBankAddress
	}

	return genericRecipient, ""
}
