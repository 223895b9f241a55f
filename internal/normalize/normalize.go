package normalize

import (
	"regexp"
	"strings"
)

// emailRe is deliberately looser than full RFC 5322: one local part, one
// domain with at least one dot, no spaces. Addresses that fail it are
// rejected before they become lookup keys.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// phoneRe matches an E.164 number after separator stripping: optional +,
// then 8 to 15 digits not starting with zero.
var phoneRe = regexp.MustCompile(`^\+?[1-9][0-9]{7,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ValidEmail reports whether e (already normalized) is a plausible
// address. Storage keys on the normalized form, so validation runs on
// the same form.
func ValidEmail(e string) bool {
	return emailRe.MatchString(e)
}

// Phone returns a normalized form of a phone number: surrounding
// whitespace and common visual separators removed, digits and an
// optional leading + kept as-is.
func Phone(p string) string {
	return phoneSeparators.Replace(strings.TrimSpace(p))
}

// ValidPhone reports whether p (already normalized) is an E.164-shaped
// number.
func ValidPhone(p string) bool {
	return phoneRe.MatchString(p)
}
