package intent

import (
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

func TestDefaultTableMatches(t *testing.T) {
	m := NewMatcher(nil)
	tests := []struct {
		intent Name
		text   string
		want   bool
	}{
		{Document, "can you send the brochure", true},
		{Document, "Share the FLOOR PLAN please", true},
		{Document, "what is the price", false},
		{Affirmative, "Yes please", true},
		{Affirmative, "okay", true},
		{Affirmative, "no thanks", false},
		{Handoff, "I want to talk to agent", true},
		{Handoff, "give me the WhatsApp number", true},
		{Handoff, "who is the developer", false},
		{Booking, "I'd like to book site visit", true},
		{Booking, "મારે સાઇટ વિઝિટ કરવી છે", true},
		{Booking, "મુલાકાત ક્યારે થઈ શકે?", true},
		{Booking, "price of 3bhk", false},
		{Name("unknown"), "brochure", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent)+"/"+tt.text, func(t *testing.T) {
			if got := m.Matches(tt.intent, tt.text); got != tt.want {
				t.Errorf("Matches(%s, %q) = %v, want %v", tt.intent, tt.text, got, tt.want)
			}
		})
	}
}

func TestMatchReportsKeyword(t *testing.T) {
	m := NewMatcher(nil)
	kw, ok := m.Match(Document, "please send pdf")
	if !ok {
		t.Fatal("expected a document match")
	}
	// "pdf" is listed before "send pdf".
	if kw != "pdf" {
		t.Errorf("expected first keyword in table order, got %q", kw)
	}
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte("greet:\n  english: [\"  Hello \", \"\"]\n  gujarati: [\"નમસ્તે\"]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := NewMatcher(table)
	if !m.Matches("greet", "HELLO there") {
		t.Error("expected trimmed, lower-cased keyword to match")
	}
	if got := m.Keywords("greet", models.LanguageEnglish); len(got) != 1 {
		t.Errorf("expected blank keywords to be dropped, got %v", got)
	}
	if !m.Matches("greet", "નમસ્તે!") {
		t.Error("expected gujarati keyword to match")
	}
}

func TestParseTableRejectsUnknownLanguage(t *testing.T) {
	if _, err := ParseTable([]byte("greet:\n  klingon: [\"nuqneH\"]\n")); err == nil {
		t.Error("expected error for unsupported language")
	}
	if _, err := ParseTable([]byte("::not yaml")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
