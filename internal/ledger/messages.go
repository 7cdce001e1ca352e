package ledger

import (
	"fmt"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Default copy for ledger messages.
const (
	DefaultProjectName     = "Brookstone"
	DefaultAgentPhone      = "+91 1234567890"
	DefaultShowflatAddress = "Brookstone Show Flat\nB/S, Vaikunth Bungalows, Next to Oxygen Park\nDPS-Bopal Road, Shilaj, Ahmedabad - 380059"
)

// Messages renders the texts sent for ledger rows.
type Messages struct {
	ProjectName     string
	AgentPhone      string
	ShowflatAddress string
}

func (m Messages) withDefaults() Messages {
	if m.ProjectName == "" {
		m.ProjectName = DefaultProjectName
	}
	if m.AgentPhone == "" {
		m.AgentPhone = DefaultAgentPhone
	}
	if m.ShowflatAddress == "" {
		m.ShowflatAddress = DefaultShowflatAddress
	}
	return m
}

// Confirmation is sent once a new booking row is picked up.
func (m Messages) Confirmation(r models.BookingRow) string {
	return fmt.Sprintf(`🎉 *Site Visit Booking Confirmed!*

Dear %s,

Thank you for booking a site visit at %s. Your appointment details:

📅 Date: %s
⏰ Time: %s
🏠 Unit Interest: %s
💰 Budget Range: %s

📍 *Location:*
%s

Our team will be ready to welcome you! Please carry a valid ID proof.

Need to reschedule? Contact us at: %s

Looking forward to showing you your future home! 🌟

_Note: You'll receive a reminder message 1 day before your visit._`,
		r.Name, m.ProjectName, r.Date, r.Time, r.UnitType, r.Budget, m.ShowflatAddress, m.AgentPhone)
}

// Reminder is sent the day before a confirmed visit.
func (m Messages) Reminder(r models.BookingRow) string {
	return fmt.Sprintf(`⏰ *Site Visit Reminder*

Dear %s,

This is a reminder of your %s site visit tomorrow.

📅 Date: %s
⏰ Time: %s

📍 *Location:*
%s

Need to reschedule? Contact us at: %s

See you soon! 🏠`, r.Name, m.ProjectName, r.Date, r.Time, m.ShowflatAddress, m.AgentPhone)
}
