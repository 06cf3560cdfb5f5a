package services

import (
	"fmt"
	"strings"

	"treasury-lghub/internal/adapters/persistence/models"
)

// Letter bodies. Placeholders use {{key}} and are replaced against the
// instruction's template data before the PDF render step.
var letterTemplates = map[string]string{
	models.InstructionExtension: `<html><body>
<p>{{recipient_name}}<br/>{{recipient_address}}</p>
<h3>Re: Extension of Letter of Guarantee No. {{lg_number}}</h3>
<p>We refer to the above letter of guarantee issued in favour of
{{beneficiary_name}} for {{currency}} {{lg_amount}}.</p>
<p>Kindly extend its validity from {{old_expiry_date}} to {{new_expiry_date}}.
All other terms and conditions remain unchanged.</p>
<p>Reference: {{serial}}</p>
{{notes}}
</body></html>`,

	models.InstructionRelease: `<html><body>
<p>{{recipient_name}}<br/>{{recipient_address}}</p>
<h3>Re: Release of Letter of Guarantee No. {{lg_number}}</h3>
<p>We hereby release the above letter of guarantee for {{currency}}
{{lg_amount}} in favour of {{beneficiary_name}}. No claims remain under it
and it may be treated as cancelled in your records.</p>
<p>Reference: {{serial}}</p>
{{notes}}
</body></html>`,

	models.InstructionLiquidation: `<html><body>
<p>{{recipient_name}}<br/>{{recipient_address}}</p>
<h3>Re: Liquidation of Letter of Guarantee No. {{lg_number}}</h3>
<p>Please proceed with {{liquidation_kind}} liquidation of the above letter
of guarantee. Original amount: {{currency}} {{original_lg_amount}};
amount after liquidation: {{currency}} {{new_amount}}.</p>
<p>Reference: {{serial}}</p>
{{notes}}
</body></html>`,

	models.InstructionDecrease: `<html><body>
<p>{{recipient_name}}<br/>{{recipient_address}}</p>
<h3>Re: Amount Decrease of Letter of Guarantee No. {{lg_number}}</h3>
<p>Kindly decrease the amount of the above letter of guarantee by
{{currency}} {{decrease_amount}}, from {{currency}} {{original_lg_amount}}
to {{currency}} {{new_amount}}. All other terms remain unchanged.</p>
<p>Reference: {{serial}}</p>
{{notes}}
</body></html>`,

	models.InstructionActivation: `<html><body>
<p>{{recipient_name}}<br/>{{recipient_address}}</p>
<h3>Re: Activation of Letter of Guarantee No. {{lg_number}}</h3>
<p>The conditions for operativeness of the above advance payment guarantee
have been met. Kindly treat it as operative with immediate effect.</p>
<p>Reference: {{serial}}</p>
{{notes}}
</body></html>`,

	models.InstructionReminder: `<html><body>
<p>{{recipient_name}}<br/>{{recipient_address}}</p>
<h3>Re: Letter of Guarantee No. {{lg_number}}: Expiry Reminder</h3>
<p>The above letter of guarantee for {{currency}} {{lg_amount}} expires on
{{expiry_date}}. Please advise the intended course of action.</p>
<p>Reference: {{serial}}</p>
</body></html>`,
}

// renderLetterHTML substitutes {{key}} placeholders with template data.
// Unknown placeholders are left in place so a missing key is visible in the
// archived document rather than silently blank.
func renderLetterHTML(instructionType string, data models.JSONMap) string {
	tpl, ok := letterTemplates[instructionType]
	if !ok {
		return ""
	}

	out := tpl
	for key, value := range data {
		out = strings.ReplaceAll(out, "{{"+key+"}}", fmt.Sprint(value))
	}
	return out
}
