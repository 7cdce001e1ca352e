// Package models defines conversation state structures for LeadPipe turns.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Language identifies the language a turn is conducted in.
type Language string

const (
	// LanguageEnglish is the primary language and the default for every turn.
	LanguageEnglish Language = "english"
	// LanguageGujarati is the secondary language, detected from Gujarati script.
	LanguageGujarati Language = "gujarati"
)

// PrimaryLanguage is the language used when detection finds nothing else.
const PrimaryLanguage = LanguageEnglish

// IsValid reports whether l is one of the supported languages.
func (l Language) IsValid() bool {
	return l == LanguageEnglish || l == LanguageGujarati
}

// CaptureMode is the sticky sub-dialogue a user is currently inside.
type CaptureMode string

const (
	// CaptureNone means no sub-dialogue is active.
	CaptureNone CaptureMode = ""
	// CaptureAwaitingPhoneForDocument waits for a mobile number to send the brochure to.
	CaptureAwaitingPhoneForDocument CaptureMode = "awaiting_phone_for_document"
	// CaptureBooking walks the user through the step-by-step booking draft.
	CaptureBooking CaptureMode = "booking"
)

// BookingStep is the cursor over the fixed booking field order.
type BookingStep int

// Booking steps in the only order they may be visited.
const (
	BookingStepName BookingStep = iota
	BookingStepConfirmPhone
	BookingStepDate
	BookingStepTime
	BookingStepUnitType
	BookingStepBudget
	BookingStepDone
)

var bookingStepNames = [...]string{
	BookingStepName:         "name",
	BookingStepConfirmPhone: "confirm_phone",
	BookingStepDate:         "date",
	BookingStepTime:         "time",
	BookingStepUnitType:     "unit_type",
	BookingStepBudget:       "budget",
	BookingStepDone:         "done",
}

// String returns the wire name of the step.
func (s BookingStep) String() string {
	if s < BookingStepName || s > BookingStepDone {
		return fmt.Sprintf("BookingStep(%d)", int(s))
	}
	return bookingStepNames[s]
}

// Next returns the step that follows s. BookingStepDone is absorbing.
func (s BookingStep) Next() BookingStep {
	if s >= BookingStepDone {
		return BookingStepDone
	}
	return s + 1
}

// MarshalJSON encodes the step by name.
func (s BookingStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a step name produced by MarshalJSON.
func (s *BookingStep) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range bookingStepNames {
		if n == name {
			*s = BookingStep(i)
			return nil
		}
	}
	return fmt.Errorf("unknown booking step %q", name)
}

// BookingDraft accumulates appointment details one step at a time.
// The draft is never submitted anywhere; it is dropped once the user is sent to the booking form.
type BookingDraft struct {
	Step     BookingStep `json:"step"`
	Name     string      `json:"name,omitempty"`
	Phone    string      `json:"phone,omitempty"`
	Date     string      `json:"date,omitempty"`
	Time     string      `json:"time,omitempty"`
	UnitType string      `json:"unit_type,omitempty"`
	Budget   string      `json:"budget,omitempty"`
}

// ChatTurn is one entry of the conversation history.
type ChatTurn struct {
	Text     string `json:"text"`
	FromUser bool   `json:"from_user"`
}

// ConversationState is everything the router remembers about one user.
type ConversationState struct {
	UserID                       string        `json:"user_id"`
	ChatHistory                  []ChatTurn    `json:"chat_history"`
	CaptureMode                  CaptureMode   `json:"capture_mode,omitempty"`
	Language                     Language      `json:"language"`
	AwaitingDocumentConfirmation bool          `json:"awaiting_document_confirmation"`
	Booking                      *BookingDraft `json:"booking,omitempty"`
	CreatedAt                    time.Time     `json:"created_at"`
	UpdatedAt                    time.Time     `json:"updated_at"`
}

// NewConversationState returns the state of a user seen for the first time.
func NewConversationState(userID string, now time.Time) *ConversationState {
	return &ConversationState{
		UserID:    userID,
		Language:  PrimaryLanguage,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendUser records an inbound message.
func (s *ConversationState) AppendUser(text string) {
	s.ChatHistory = append(s.ChatHistory, ChatTurn{Text: text, FromUser: true})
}

// AppendBot records an outbound reply.
func (s *ConversationState) AppendBot(text string) {
	s.ChatHistory = append(s.ChatHistory, ChatTurn{Text: text, FromUser: false})
}

// TrimHistory keeps at most limit entries, dropping the oldest. A limit of zero or less keeps everything.
func (s *ConversationState) TrimHistory(limit int) {
	if limit <= 0 || len(s.ChatHistory) <= limit {
		return
	}
	s.ChatHistory = append([]ChatTurn(nil), s.ChatHistory[len(s.ChatHistory)-limit:]...)
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.ChatHistory = append([]ChatTurn(nil), s.ChatHistory...)
	if s.Booking != nil {
		b := *s.Booking
		out.Booking = &b
	}
	return &out
}
