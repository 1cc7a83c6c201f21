package recipient

import (
	"regexp"
	"strings"
	"time"
)

// legalIDPattern matches invoice filenames of the form
// <prefix>_<number>_to_<digits>.<ext> and captures the trailing digit run
// as the candidate legal id.
var legalIDPattern = regexp.MustCompile(`^.+_to_([0-9]+)\.[^.]+$`)

// ExtractLegalID pulls the candidate legal id out of an invoice filename.
func ExtractLegalID(filename string) (string, bool) {
	match := legalIDPattern.FindStringSubmatch(filename)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// ValidateLegalID checks a 10-digit legal id. Non-digits are stripped first,
// so dash-formatted ids validate too. The id is tried with both plausible
// century prefixes; it is valid when either candidate has a real YYYYMMDD
// birth date and a correct Luhn check digit.
func ValidateLegalID(id string) bool {
	digits := stripNonDigits(id)
	if len(digits) != 10 {
		return false
	}

	for _, century := range []string{"19", "20"} {
		candidate := century + digits
		if !validBirthDate(candidate[:8]) {
			continue
		}
		if luhnCheckDigit(candidate[2:11]) == int(candidate[11]-'0') {
			return true
		}
	}

	return false
}

// CenturyPrefix disambiguates a two-digit year for display and lookup:
// leading year digits 0-2 map to this century, 3-9 to the previous one.
func CenturyPrefix(id string) string {
	if id == "" {
		return ""
	}
	if id[0] >= '0' && id[0] <= '2' {
		return "20"
	}
	return "19"
}

// FullLegalID returns the century-prefixed 12-digit form used for lookups.
func FullLegalID(id string) string {
	return CenturyPrefix(id) + id
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validBirthDate(yyyymmdd string) bool {
	_, err := time.Parse("20060102", yyyymmdd)
	return err == nil
}

// luhnCheckDigit computes the Luhn check digit over a digit string, doubling
// every other digit starting from the first.
func luhnCheckDigit(digits string) int {
	sum := 0
	for i, r := range digits {
		d := int(r - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}
