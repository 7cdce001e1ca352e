// Package extract pulls structured values (budgets, phone numbers, dates) out of free text.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

type budgetPattern struct {
	re   *regexp.Regexp
	unit string
}

// Tried in order against the lower-cased text; the first match wins.
var budgetPatterns = []budgetPattern{
	{regexp.MustCompile(`(\d+\.?\d*)\s*(?:cr|crore|crores)`), "Cr"},
	{regexp.MustCompile(`(\d+\.?\d*)\s*(?:lakh|lakhs)`), "Lakh"},
	{regexp.MustCompile(`₹\s*(\d+\.?\d*)\s*(?:cr|crore|crores)`), "Cr"},
	{regexp.MustCompile(`₹\s*(\d+\.?\d*)\s*(?:lakh|lakhs)`), "Lakh"},
}

// Budget returns the first currency amount in text normalised as "<amount> Cr" or
// "<amount> Lakh". The amount is rendered as a decimal that always carries a fraction
// part ("1.5", "150.0"). ok is false when nothing matches.
func Budget(text string) (amount string, ok bool) {
	lower := strings.ToLower(text)
	for _, p := range budgetPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return formatAmount(v) + " " + p.unit, true
	}
	return "", false
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
