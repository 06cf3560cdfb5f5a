package services

import (
	"testing"

	"treasury-lghub/internal/adapters/persistence/models"

	"github.com/stretchr/testify/assert"
)

func TestRenderLetterHTMLSubstitutesPlaceholders(t *testing.T) {
	html := renderLetterHTML(models.InstructionExtension, models.JSONMap{
		"recipient_name":    "Kasikorn Bank",
		"recipient_address": "1 Ratburana Rd, Bangkok",
		"lg_number":         "LG-2026-0001",
		"beneficiary_name":  "Metro Rail Authority",
		"currency":          "USD",
		"lg_amount":         "10000.00",
		"old_expiry_date":   "2026-07-15",
		"new_expiry_date":   "2026-10-15",
		"serial":            "AC01P_0001EXT000100101",
		"notes":             "",
	})

	assert.Contains(t, html, "LG-2026-0001")
	assert.Contains(t, html, "from 2026-07-15 to 2026-10-15")
	assert.Contains(t, html, "AC01P_0001EXT000100101")
	assert.NotContains(t, html, "{{lg_number}}")
}

func TestRenderLetterHTMLLeavesMissingKeysVisible(t *testing.T) {
	html := renderLetterHTML(models.InstructionRelease, models.JSONMap{
		"lg_number": "LG-2026-0001",
	})
	assert.Contains(t, html, "LG-2026-0001")
	// A missing key stays in the document instead of rendering blank.
	assert.Contains(t, html, "{{beneficiary_name}}")
}

func TestRenderLetterHTMLUnknownType(t *testing.T) {
	assert.Empty(t, renderLetterHTML("TELEPORT", models.JSONMap{}))
}

func TestEveryInstructionTypeHasTemplate(t *testing.T) {
	for instructionType := range models.InstructionTypeCode {
		assert.Contains(t, letterTemplates, instructionType, "missing letter template for %s", instructionType)
	}
}
