package format

import "strings"

var orgNrWeights = [8]int{3, 2, 7, 6, 5, 4, 3, 2}

// ValidateOrgNr checks a Norwegian organisation number: nine digits where
// the last is a modulus 11 check digit. Spaces are ignored.
func ValidateOrgNr(orgnr string) bool {
	s := strings.ReplaceAll(strings.TrimSpace(orgnr), " ", "")
	if len(s) != 9 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		if i < 8 {
			sum += int(s[i]-'0') * orgNrWeights[i]
		}
	}
	rem := sum % 11
	check := 11 - rem
	if rem < 2 {
		check = rem
	}
	return check == int(s[8]-'0')
}
