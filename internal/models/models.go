// Package models defines the data shared between LeadPipe's transports, router and API.
package models

import (
	"errors"
	"strings"
)

// MessageType names the shape an inbound message arrived in.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeButton is a quick-reply template button press.
	MessageTypeButton MessageType = "button"
	// MessageTypeInteractive is a button-reply or list-reply selection.
	MessageTypeInteractive MessageType = "interactive"
)

// InboundMessage is one user message handed to the router.
type InboundMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// Validate checks that the message carries what a turn needs.
func (m InboundMessage) Validate() error {
	if m.From == "" {
		return errors.New("sender is required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("message text is required")
	}
	return nil
}

// Document describes a file sent to a user. Ref is interpreted by the transport:
// a media id for the Cloud API, a public URL for Twilio, a local path for whatsmeow.
type Document struct {
	Ref      string `json:"ref"`
	FileName string `json:"file_name"`
	Caption  string `json:"caption"`
}

// BookingRow is one site-visit request in the booking ledger.
// Row is the 1-based sheet row, header included, so the first record is row 2.
type BookingRow struct {
	Row      int    `json:"row"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	UnitType string `json:"unit_type"`
	Budget   string `json:"budget"`
	Status   string `json:"status"`
}

// Booking ledger statuses.
const (
	BookingStatusNew        = ""
	BookingStatusConfirmed  = "Confirmed"
	BookingStatusSendFailed = "Pending - WhatsApp Failed"
	BookingStatusReminded   = "Reminded"
)

// IsNew reports whether the row still awaits its confirmation message.
func (r BookingRow) IsNew() bool {
	return strings.TrimSpace(r.Status) == BookingStatusNew
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
