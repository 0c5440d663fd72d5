package calls

import "strings"

// NormalizeDestination strips everything but digits and returns an E.164-like
// number. Ten digits are treated as a US number; eleven already carry the
// country digit.
func NormalizeDestination(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch len(digits) {
	case 10:
		return "+1" + digits, nil
	case 11:
		return "+" + digits, nil
	default:
		return "", ErrInvalidDestination
	}
}
