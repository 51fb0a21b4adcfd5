package messaging

import (
	"regexp"
	"strings"
)

var (
	phoneNoise     = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	chileanMobile  = regexp.MustCompile(`^(\+56|56)?9\d{8}$`)
	internationals = regexp.MustCompile(`^\+\d{8,15}$`)
)

// NormalizePhone returns a Chilean number in +56 form. Anything else is returned unchanged.
func NormalizePhone(phone string) string {
	clean := phoneNoise.Replace(phone)

	switch {
	case strings.HasPrefix(clean, "+56"):
		return clean
	case strings.HasPrefix(clean, "56"):
		return "+" + clean
	case strings.HasPrefix(clean, "9"):
		return "+56" + clean
	}
	return phone
}

// ValidPhone reports whether phone is a Chilean mobile number or an international one.
func ValidPhone(phone string) bool {
	clean := phoneNoise.Replace(phone)
	return chileanMobile.MatchString(clean) || internationals.MatchString(clean)
}
