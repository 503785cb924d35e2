// Package contact decides how freshly observed email and phone values are
// merged into a stored profile.
package contact

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// DefaultRegion is used to parse phone numbers without a country prefix.
const DefaultRegion = "US"

// Contact is an email and phone pair. Empty means unknown.
type Contact struct {
	Email string
	Phone string
}

// Trimmed returns c with surrounding whitespace removed from both fields.
func (c Contact) Trimmed() Contact {
	return Contact{Email: strings.TrimSpace(c.Email), Phone: strings.TrimSpace(c.Phone)}
}

// IsEmpty reports whether neither field is set.
func (c Contact) IsEmpty() bool {
	return c.Email == "" && c.Phone == ""
}

// Policy controls what happens when an observation carries an empty field.
type Policy string

const (
	// Preserve keeps a stored non-empty value when the incoming value is empty.
	Preserve Policy = "preserve"
	// Overwrite replaces stored values with incoming ones, empty or not.
	Overwrite Policy = "overwrite"
)

// ParsePolicy converts a config string into a Policy. Empty selects Preserve.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Preserve:
		return Preserve, nil
	case Overwrite:
		return Overwrite, nil
	default:
		return "", eris.Errorf("contact: unknown merge policy %q", s)
	}
}

// Merge returns the contact values to persist after observing incoming for a
// profile whose stored values are current.
func (p Policy) Merge(current, incoming Contact) Contact {
	incoming = incoming.Trimmed()
	if p == Overwrite {
		return incoming
	}
	merged := current
	if incoming.Email != "" {
		merged.Email = incoming.Email
	}
	if incoming.Phone != "" {
		merged.Phone = incoming.Phone
	}
	return merged
}

// ClearsEmail reports whether persisting merged would drop a known email.
func ClearsEmail(current, merged Contact) bool {
	return current.Email != "" && merged.Email == ""
}

// Differs reports whether incoming carries a non-empty email or phone that is
// not already stored.
func Differs(current, incoming Contact, region string) bool {
	incoming = incoming.Trimmed()
	if incoming.Email != "" && !SameEmail(current.Email, incoming.Email) {
		return true
	}
	if incoming.Phone != "" && !SamePhone(current.Phone, incoming.Phone, region) {
		return true
	}
	return false
}

var folder = cases.Fold()

// SameEmail compares two addresses ignoring case and surrounding whitespace.
func SameEmail(a, b string) bool {
	return folder.String(strings.TrimSpace(a)) == folder.String(strings.TrimSpace(b))
}

// SamePhone compares two numbers after E.164 normalization. Numbers that do
// not parse are compared by their digits.
func SamePhone(a, b, region string) bool {
	na, nb := NormalizePhone(a, region), NormalizePhone(b, region)
	if na != "" && nb != "" {
		return na == nb
	}
	return digits(a) == digits(b)
}

// NormalizePhone formats raw as E.164, or returns "" when it is not a valid
// number for region.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = DefaultRegion
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

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
