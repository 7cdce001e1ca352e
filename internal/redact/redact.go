// Package redact masks personal and secret values before they reach log output.
package redact

import (
	"strings"
	"unicode/utf8"
)

const placeholder = "[REDACTED]"

// visibleDigits is how many trailing characters of a phone number stay readable.
const visibleDigits = 4

// Phone masks all but the last four characters of a phone number or sender id,
// keeping a leading '+' so the log still shows the number was international.
//
//	redact.Phone("+919876543210") == "+********3210"
func Phone(phone string) string {
	n := utf8.RuneCountInString(phone)
	if n <= visibleDigits {
		return strings.Repeat("*", n)
	}
	prefix := ""
	rest := phone
	if strings.HasPrefix(phone, "+") {
		prefix = "+"
		rest = phone[1:]
	}
	runes := []rune(rest)
	keep := len(runes) - visibleDigits
	if keep < 0 {
		keep = 0
	}
	return prefix + strings.Repeat("*", keep) + string(runes[keep:])
}

// String replaces every occurrence of each sensitive value in s with [REDACTED].
// Values shorter than 4 characters are skipped to avoid spurious redaction of
// common substrings.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}
