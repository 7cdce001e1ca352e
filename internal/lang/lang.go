// Package lang classifies short messages as English or Gujarati.
package lang

import (
	"unicode/utf8"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Gujarati script block and the share of runes inside it that marks a message as Gujarati.
const (
	gujaratiFirst rune = '\u0A80'
	gujaratiLast  rune = '\u0AFF'

	SecondaryThreshold = 0.2
)

// Detect returns LanguageGujarati when more than SecondaryThreshold of the runes in text
// belong to the Gujarati block, and LanguageEnglish otherwise (including for empty text).
func Detect(text string) models.Language {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return models.PrimaryLanguage
	}
	var gujarati int
	for _, r := range text {
		if r >= gujaratiFirst && r <= gujaratiLast {
			gujarati++
		}
	}
	if float64(gujarati)/float64(total) > SecondaryThreshold {
		return models.LanguageGujarati
	}
	return models.PrimaryLanguage
}
