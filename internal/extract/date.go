package extract

import (
	"regexp"
	"strings"
)

var visitDatePattern = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{4}`)

// LooksLikeVisitDate reports whether text starts with a D/M/YYYY or D-M-YYYY shaped date.
// The calendar validity of the date is not checked.
func LooksLikeVisitDate(text string) bool {
	return visitDatePattern.MatchString(strings.TrimSpace(text))
}
