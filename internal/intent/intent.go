// Package intent classifies user messages with keyword tables.
//
// Keywords are data: the table maps an intent to one keyword list per language and a
// single matcher consumes it. The router decides precedence; this package only answers
// "does this text carry that intent".
package intent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"gopkg.in/yaml.v3"
)

// Name identifies an intent in the keyword table.
type Name string

// Intents the router checks.
const (
	Document    Name = "document"
	Affirmative Name = "affirmative"
	Handoff     Name = "handoff"
	Booking     Name = "booking"
)

// Table maps an intent to its keywords per language.
type Table map[Name]map[models.Language][]string

//go:embed keywords.yaml
var defaultKeywords []byte

// ParseTable decodes a YAML keyword table. Keywords are lower-cased on load.
func ParseTable(data []byte) (Table, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table: %w", err)
	}
	t := make(Table, len(raw))
	for intentName, perLang := range raw {
		langs := make(map[models.Language][]string, len(perLang))
		for l, words := range perLang {
			lang := models.Language(l)
			if !lang.IsValid() {
				return nil, fmt.Errorf("intent %q: unsupported language %q", intentName, l)
			}
			lowered := make([]string, 0, len(words))
			for _, w := range words {
				w = strings.ToLower(strings.TrimSpace(w))
				if w == "" {
					continue
				}
				lowered = append(lowered, w)
			}
			langs[lang] = lowered
		}
		t[Name(intentName)] = langs
	}
	return t, nil
}

// DefaultTable returns the built-in keyword table.
func DefaultTable() Table {
	t, err := ParseTable(defaultKeywords)
	if err != nil {
		// The embedded table is part of the binary; a parse failure is a build defect.
		panic(err)
	}
	return t
}

// Matcher answers keyword-membership questions against a Table.
type Matcher struct {
	table Table
}

// NewMatcher creates a Matcher. A nil table selects DefaultTable.
func NewMatcher(table Table) *Matcher {
	if table == nil {
		table = DefaultTable()
	}
	slog.Debug("Matcher.NewMatcher: keyword table loaded", "intents", len(table))
	return &Matcher{table: table}
}

// Matches reports whether text contains any keyword of the intent in any language.
// Unknown intents never match.
func (m *Matcher) Matches(intent Name, text string) bool {
	_, ok := m.Match(intent, text)
	return ok
}

// Match is like Matches but also returns the keyword that hit.
func (m *Matcher) Match(intent Name, text string) (string, bool) {
	perLang, ok := m.table[intent]
	if !ok {
		return "", false
	}
	lower := strings.ToLower(text)
	// Fixed language order keeps the reported keyword deterministic.
	for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageGujarati} {
		for _, kw := range perLang[lang] {
			if strings.Contains(lower, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// Keywords returns a copy of the keywords registered for intent in lang.
func (m *Matcher) Keywords(intent Name, lang models.Language) []string {
	return append([]string(nil), m.table[intent][lang]...)
}
