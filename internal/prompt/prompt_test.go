package prompt

import (
	"strings"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/knowledge"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

func testBase() *knowledge.Base {
	return knowledge.NewBase(map[models.Language]knowledge.Tree{
		models.LanguageEnglish: {
			"project_info":       map[string]any{"name": "Brookstone"},
			"possession_details": map[string]any{"date": "May 2027"},
		},
	})
}

func TestBuildIncludesSections(t *testing.T) {
	history := []models.ChatTurn{
		{Text: "first", FromUser: true},
		{Text: "reply one", FromUser: false},
		{Text: "second", FromUser: true},
		{Text: "reply two", FromUser: false},
		{Text: "when is possession?", FromUser: true},
	}
	p := Build("when is possession?", testBase(), models.LanguageEnglish, history)

	for _, want := range []string{
		"Use English language for responses.",
		"PROJECT DATA:\n{\n  \"possession_details\"",
		"RECENT CONVERSATION:\nBot: reply one\nUser: second\nBot: reply two\nUser: when is possession?\n",
		"USER QUESTION: when is possession?",
		"max 1000 characters for WhatsApp",
		"ONLY provide phone number +91 1234567890",
		"For possession date, mention May 2027",
		"sq ft for area, Cr for crore",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "User: first") {
		t.Error("history older than the window leaked into the prompt")
	}
	if !strings.HasSuffix(p, "ANSWER:") {
		t.Error("prompt must end with the answer cue")
	}
}

func TestBuildGujarati(t *testing.T) {
	p := Build("કિંમત?", testBase(), models.LanguageGujarati, nil, WithAgentPhone("+91 9999999999"), WithProjectName("Skyline"))
	for _, want := range []string{
		"Use Gujarati language for responses.",
		"આ વિગત હજી નક્કી કરવાની બાકી છે",
		"મે 2027",
		"ચો.ફૂટ for sqft, કરોડ for crore",
		"+91 9999999999",
		"chatbot for the Skyline project",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "RECENT CONVERSATION:\n") {
		t.Error("empty history must not render a conversation block")
	}
	// Gujarati has no tree of its own, so it is empty rather than the english one.
	if strings.Contains(p, "Brookstone\"") {
		t.Error("gujarati prompt must not quote the english tree")
	}
}
