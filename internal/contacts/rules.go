package contacts

import (
	"slices"
	"strings"

	"schoolcontacts/internal/emailparser"
	"schoolcontacts/internal/extracthtml"
)

// Rule maps a contact table row to a field when the row's icon carries Tag.
//
// When Overflow is set and Field already holds a value, the row is written
// to Overflow instead. Overflow is overwritten by every later match.
//
// With DecodeScript set, an inline script in the value cell that hides an
// email address takes precedence over the cell text.
type Rule struct {
	Tag          string
	Field        Field
	Overflow     Field
	DecodeScript bool
}

// DefaultRules is the icon mapping of the profile pages. Order matters: the
// first rule whose tag is present wins.
var DefaultRules = []Rule{
	{Tag: "fa-university", Field: FieldAddress},
	{Tag: "fa-map-marker", Field: FieldCity},
	{Tag: "fa-phone", Field: FieldPhone},
	{Tag: "fa-envelope", Field: FieldEmail},
	{Tag: "fa-globe", Field: FieldWebsite},
	// District and State share an icon; the first such row is the district.
	{Tag: "text-info", Field: FieldDistrict, Overflow: FieldState},
}

// Match returns the first rule whose tag is one of classes.
func Match(rules []Rule, classes []string) (Rule, bool) {
	for _, r := range rules {
		if slices.Contains(classes, r.Tag) {
			return r, true
		}
	}
	return Rule{}, false
}

// ApplyRules writes every row of a contact table into c.
func ApplyRules(rules []Rule, c *Contact, rows []extracthtml.TableRow) {
	for _, row := range rows {
		r, ok := Match(rules, row.Classes)
		if !ok {
			continue
		}

		text := row.Text
		if r.DecodeScript && row.Script != "" {
			if decoded := emailparser.DecodeEmailFromScript(row.Script); decoded != "" {
				text = decoded
			}
		}

		target := r.Field
		if r.Overflow != FieldNone && c.Get(target) != "" {
			target = r.Overflow
		}
		c.Set(target, text)
	}
}

// WithScriptEmail returns a copy of rules with script decoding enabled on the
// email rule.
func WithScriptEmail(rules []Rule) []Rule {
	out := slices.Clone(rules)
	for i := range out {
		if out[i].Field == FieldEmail {
			out[i].DecodeScript = true
		}
	}
	return out
}

// ResolveURL returns profileURL unchanged when it is already absolute and
// base+profileURL otherwise.
func ResolveURL(base, profileURL string) (string, error) {
	if strings.TrimSpace(profileURL) == "" {
		return "", ErrMissingProfileURL
	}
	if strings.HasPrefix(profileURL, "http") {
		return profileURL, nil
	}
	return base + profileURL, nil
}

// ParsePage extracts a contact from a profile page. SchoolName and FullURL
// are left for the caller.
func ParsePage(html, tableSelector string, rules []Rule) (Contact, error) {
	rows, err := extracthtml.ParseContactTable(html, tableSelector)
	if err != nil {
		return Contact{}, err
	}
	var c Contact
	ApplyRules(rules, &c, rows)
	return c, nil
}
