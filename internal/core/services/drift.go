package services

import (
	"fmt"
	"sort"

	"treasury-lghub/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
)

// Drift detection compares the snapshot captured at submission time against
// the live row at approval time. A mismatch does not block approval; it is
// surfaced in the audit trail so the checker's decision is traceable to what
// they actually saw.

var driftDecimalFields = map[string]bool{
	"amount": true,
}

var driftDateFields = map[string]bool{
	"issuance_date": true,
	"expiry_date":   true,
}

// snapshotLG captures the fields of an LG record a checker reviews
func snapshotLG(lg *models.LGRecord) models.JSONMap {
	snap := models.JSONMap{
		"business_number":      lg.BusinessNumber,
		"amount":               lg.Amount.StringFixed(2),
		"currency_id":          lg.CurrencyID,
		"issuance_date":        lg.IssuanceDate.Format(dateLayout),
		"expiry_date":          lg.ExpiryDate.Format(dateLayout),
		"status":               lg.Status,
		"type":                 lg.Type,
		"auto_renewal":         lg.AutoRenewal,
		"lg_category_id":       lg.LgCategoryID,
		"owner_contact_id":     lg.InternalOwnerContactID,
		"beneficiary_name":     lg.BeneficiaryName,
		"foreign_bank_name":    lg.ForeignBankName,
		"foreign_bank_address": lg.ForeignBankAddress,
	}
	if lg.OperationalStatus != nil {
		snap["operational_status"] = *lg.OperationalStatus
	}
	if lg.IssuingBankID != nil {
		snap["issuing_bank_id"] = *lg.IssuingBankID
	}
	if lg.AdvisingStatus != nil {
		snap["advising_status"] = *lg.AdvisingStatus
	}
	if lg.CommunicationBankID != nil {
		snap["communication_bank_id"] = *lg.CommunicationBankID
	}
	return snap
}

// snapshotContact captures the reviewable fields of an owner contact
func snapshotContact(c *models.InternalOwnerContact) models.JSONMap {
	return models.JSONMap{
		"email":         c.Email,
		"phone":         c.Phone,
		"internal_id":   c.InternalID,
		"manager_email": c.ManagerEmail,
	}
}

// detectDrift returns the sorted field names whose live value no longer
// matches the snapshot. Fields present only in the snapshot or only live are
// drift too. Snapshot values arrive through a JSON round trip, so numbers are
// float64 and everything is compared through a per-field normalizer.
func detectDrift(snapshot, live models.JSONMap) []string {
	keys := map[string]bool{}
	for k := range snapshot {
		keys[k] = true
	}
	for k := range live {
		keys[k] = true
	}

	var drifted []string
	for k := range keys {
		snapVal, snapOK := snapshot[k]
		liveVal, liveOK := live[k]
		if snapOK != liveOK {
			drifted = append(drifted, k)
			continue
		}
		if !fieldEqual(k, snapVal, liveVal) {
			drifted = append(drifted, k)
		}
	}
	sort.Strings(drifted)
	return drifted
}

func fieldEqual(field string, a, b interface{}) bool {
	switch {
	case driftDecimalFields[field]:
		da, errA := decimal.NewFromString(fmt.Sprint(a))
		db, errB := decimal.NewFromString(fmt.Sprint(b))
		if errA != nil || errB != nil {
			return fmt.Sprint(a) == fmt.Sprint(b)
		}
		return da.Equal(db)
	case driftDateFields[field]:
		return fmt.Sprint(a) == fmt.Sprint(b)
	default:
		// fmt.Sprint flattens the float64/uint mismatch JSON introduced
		// for integer ids.
		return fmt.Sprint(normalizeNumber(a)) == fmt.Sprint(normalizeNumber(b))
	}
}

func normalizeNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case float32:
		return normalizeNumber(float64(n))
	case uint:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return v
	}
}
