package metrics

import (
	"strings"
)

const unknownPlan = "unknown"

// planLabel turns a plan name into a valid label value. Plan names come from
// Stripe nicknames and product names and are otherwise kept verbatim.
func planLabel(raw string) string {
	if raw == "" {
		return unknownPlan
	}
	return strings.ToValidUTF8(raw, "\uFFFD")
}
