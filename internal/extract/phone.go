package extract

import (
	"regexp"
	"strings"
)

// Indian mobile numbers: ten digits starting 6-9, optionally prefixed by +91.
var mobilePattern = regexp.MustCompile(`(?:\+91[\s-]?|\b)[6-9]\d{9}\b`)

// MobileNumber finds the first mobile number in text and returns it with spaces and dashes removed.
func MobileNumber(text string) (string, bool) {
	m := mobilePattern.FindString(text)
	if m == "" {
		return "", false
	}
	m = strings.ReplaceAll(m, " ", "")
	m = strings.ReplaceAll(m, "-", "")
	return m, true
}

var nonDialable = regexp.MustCompile(`[^0-9+]`)

// NormalizeIndianPhone strips everything but digits and '+', and prefixes +91 to a bare ten-digit number.
func NormalizeIndianPhone(raw string) string {
	phone := nonDialable.ReplaceAllString(raw, "")
	if len(phone) == 10 && !strings.HasPrefix(phone, "+") {
		phone = "+91" + phone
	}
	return phone
}
