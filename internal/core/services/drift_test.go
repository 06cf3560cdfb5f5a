package services

import (
	"encoding/json"
	"testing"

	"treasury-lghub/internal/adapters/persistence/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDriftIdenticalSnapshots(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	assert.Empty(t, detectDrift(snapshotLG(lg), snapshotLG(lg)))
}

// Snapshots are persisted as JSON, so the stored copy comes back with float64
// numbers while the live snapshot carries uints. That round trip alone must
// never count as drift.
func TestDetectDriftSurvivesJSONRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	live := snapshotLG(lg)
	raw, err := json.Marshal(live)
	require.NoError(t, err)
	var stored models.JSONMap
	require.NoError(t, json.Unmarshal(raw, &stored))

	assert.Empty(t, detectDrift(stored, live))
}

func TestDetectDriftDecimalFormatting(t *testing.T) {
	snap := models.JSONMap{"amount": "10000.00"}
	live := models.JSONMap{"amount": "10000"}
	assert.Empty(t, detectDrift(snap, live))

	live = models.JSONMap{"amount": "9999.99"}
	assert.Equal(t, []string{"amount"}, detectDrift(snap, live))
}

func TestDetectDriftReportsChangedFieldsSorted(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	snap := snapshotLG(lg)
	lg.BeneficiaryName = "Somebody Else"
	lg.Status = models.LGStatusReleased
	live := snapshotLG(lg)

	assert.Equal(t, []string{"beneficiary_name", "status"}, detectDrift(snap, live))
}

func TestDetectDriftPresenceMismatch(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	lg := seedLG(t, db, f, 1)

	snap := snapshotLG(lg)
	operative := models.OperationalStatusOperative
	lg.OperationalStatus = &operative
	live := snapshotLG(lg)

	assert.Equal(t, []string{"operational_status"}, detectDrift(snap, live))
}

func TestSnapshotContactFields(t *testing.T) {
	contact := &models.InternalOwnerContact{
		Email:        "owner@acme.test",
		Phone:        "+66-2-555-0100",
		InternalID:   "EMP-1001",
		ManagerEmail: "manager@acme.test",
	}
	snap := snapshotContact(contact)
	assert.Equal(t, "owner@acme.test", snap["email"])
	assert.Equal(t, "EMP-1001", snap["internal_id"])
	assert.Len(t, snap, 4)
}
