package geo

import "strings"

// PostalCodeLength is the number of leading digits kept from a postal code.
const PostalCodeLength = 5

// NormalizePostalCode strips everything but digits from raw and returns the
// first five. Inputs with fewer than five digits are not resolvable.
//
//	"94105-1234" -> "94105", true
//	" 02 139 "   -> "02139", true
//	"1234"       -> "", false
func NormalizePostalCode(raw string) (string, bool) {
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			if sb.Len() == PostalCodeLength {
				return sb.String(), true
			}
		}
	}
	return "", false
}
