// Package prompt renders the question-answering prompt sent to the generative backend.
package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/knowledge"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// HistoryWindow is how many of the most recent chat turns are quoted in the prompt.
const HistoryWindow = 4

// MaxReplyChars is the reply length ceiling the model is instructed to respect.
const MaxReplyChars = 1000

// Opts holds the business copy interpolated into the prompt.
type Opts struct {
	ProjectName    string
	AgentPhone     string
	PossessionDate map[models.Language]string
}

// Option configures prompt rendering.
type Option func(*Opts)

// WithProjectName sets the project the assistant represents.
func WithProjectName(name string) Option {
	return func(o *Opts) { o.ProjectName = name }
}

// WithAgentPhone sets the only contact number the model may share.
func WithAgentPhone(phone string) Option {
	return func(o *Opts) { o.AgentPhone = phone }
}

// WithPossessionDate sets the possession date quoted for lang.
func WithPossessionDate(lang models.Language, date string) Option {
	return func(o *Opts) { o.PossessionDate[lang] = date }
}

func defaultOpts() Opts {
	return Opts{
		ProjectName: "Brookstone",
		AgentPhone:  "+91 1234567890",
		PossessionDate: map[models.Language]string{
			models.LanguageEnglish:  "May 2027",
			models.LanguageGujarati: "મે 2027",
		},
	}
}

// Build renders the prompt for question using the knowledge slices relevant to it and
// the last HistoryWindow turns of history.
func Build(question string, base *knowledge.Base, lang models.Language, history []models.ChatTurn, opts ...Option) string {
	o := defaultOpts()
	for _, opt := range opts {
		opt(&o)
	}

	relevant := knowledge.SelectRelevant(question, base, lang)
	data, err := json.MarshalIndent(relevant, "", "  ")
	if err != nil {
		// Trees come from JSON, so re-encoding only fails on a corrupted base.
		slog.Error("prompt.Build: failed to encode project data", "error", err)
		data = []byte("{}")
	}

	gujarati := lang == models.LanguageGujarati
	var b strings.Builder

	b.WriteString("\nYou are a helpful real estate chatbot for the ")
	b.WriteString(o.ProjectName)
	b.WriteString(" project. Answer user questions based on the provided project data and conversation context. ")
	if gujarati {
		b.WriteString("Use Gujarati language for responses.")
	} else {
		b.WriteString("Use English language for responses.")
	}
	b.WriteString("\n\nPROJECT DATA:\n")
	b.Write(data)
	writeHistory(&b, history)
	fmt.Fprintf(&b, "\n\nUSER QUESTION: %s\n\n", question)

	tbd := "This detail is yet to be finalized"
	units := "sq ft for area, Cr for crore"
	if gujarati {
		tbd = "આ વિગત હજી નક્કી કરવાની બાકી છે"
		units = "ચો.ફૂટ for sqft, કરોડ for crore"
	}
	possession := o.PossessionDate[lang]
	if possession == "" {
		possession = o.PossessionDate[models.PrimaryLanguage]
	}

	fmt.Fprintf(&b, `INSTRUCTIONS:
1. ALWAYS use the PROJECT DATA provided above to answer questions
2. Consider the RECENT CONVERSATION context - if user says "yes", "sure", "please", they are responding to your previous question
3. If any detail shows "TBD", say %s
4. Keep responses concise but comprehensive (max %d characters for WhatsApp)
5. For possession date, mention %s
6. After answering, ask 1 natural follow-up question to keep conversation going
7. Be conversational and friendly like a real sales agent
8. NEVER suggest WhatsApp links - only provide phone numbers
9. For agent contact, ONLY provide phone number %s
10. Format your response for WhatsApp - use emojis and clear structure

11. For ground floor questions:
    - Always mention specific dimensions when available
    - Describe the layout and connections between spaces
    - Include details about amenities and facilities
    - If size/dimension is asked but not available, acknowledge that and provide other relevant details

12. When mentioning sizes or dimensions:
    - Use the exact measurements as provided in the data
    - Format dimensions clearly with proper units (e.g., "14'-9" × 14'-6"")
    - For carpet area, specify it's carpet area (કાર્પેટ એરિયા in Gujarati)
    - For total area, specify it's total built-up area (કુલ બિલ્ટ-અપ એરિયા in Gujarati)

13. For BHK queries:
    - Always mention both carpet area and total area
    - Include price when available
    - Specify number of bathrooms and balconies
    - Mention key features of the layout
    - If asking about 3BHK, provide 3BHK details first, then briefly mention 4BHK is also available
    - If asking about 4BHK, provide 4BHK details first, then briefly mention 3BHK is also available

14. Language-specific formatting:
    - Use native number format for Gujarati (૧,૨,૩,૪,૫,૬,૭,૮,૯,૦)
    - Use appropriate units: %s
    - Use native terms for amenities and facilities when in Gujarati

ANSWER:`, tbd, MaxReplyChars, possession, o.AgentPhone, units)

	slog.Debug("prompt.Build: prompt rendered", "language", lang, "sections", len(relevant), "history", len(history), "chars", b.Len())
	return b.String()
}

func writeHistory(b *strings.Builder, history []models.ChatTurn) {
	if len(history) == 0 {
		return
	}
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	b.WriteString("\n\nRECENT CONVERSATION:\n")
	for _, turn := range history {
		role := "Bot"
		if turn.FromUser {
			role = "User"
		}
		fmt.Fprintf(b, "%s: %s\n", role, turn.Text)
	}
}
