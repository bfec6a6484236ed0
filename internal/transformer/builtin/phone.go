package builtin

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"schoolcontacts/internal/contacts"
)

// Phone reformats Contact.Phone as E.164 using Region for numbers written
// without a country code (e.g. "IN" for "0135 2740000").
//
// Values that do not parse as a valid number are left untouched, so a
// directory entry like "Not available" survives as-is.
type Phone struct {
	Region string
}

// Apply implements transformer.Transform.
func (p Phone) Apply(in []contacts.Contact) []contacts.Contact {
	region := strings.ToUpper(strings.TrimSpace(p.Region))
	if region == "" {
		return in
	}
	for i := range in {
		if n := NormalizePhone(in[i].Phone, region); n != "" {
			in[i].Phone = n
		}
	}
	return in
}

// NormalizePhone returns raw in E.164 form, or "" when raw is not a valid
// number for region.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(num) || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
