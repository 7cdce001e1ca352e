package flow

import (
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/extract"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// timeSlots maps the numbered choices of the time prompt.
var timeSlots = map[string]string{
	"1": "10:00 AM",
	"2": "11:30 AM",
	"3": "02:00 PM",
	"4": "03:30 PM",
	"5": "05:00 PM",
}

// unitTypes maps the numbered choices of the unit type prompt.
var unitTypes = map[string]string{
	"1": "3 BHK",
	"2": "4 BHK",
	"3": "Both 3 & 4 BHK",
}

// newBookingDraft starts a draft at the name step with the sender's number prefilled.
func newBookingDraft(sender string) *models.BookingDraft {
	return &models.BookingDraft{Step: models.BookingStepName, Phone: sender}
}

// advanceBooking applies one user input to the draft. Valid input fills the current
// field and moves to the next step; invalid input leaves the step unchanged and
// returns a re-prompt. done is true once the budget step has been accepted.
func advanceBooking(d *models.BookingDraft, input string, t Templates) (reply string, done bool) {
	text := strings.TrimSpace(input)

	switch d.Step {
	case models.BookingStepName:
		if text == "" {
			return t.NameReprompt(), false
		}
		d.Name = text
		d.Step = d.Step.Next()
		return t.ConfirmPhone(d.Name, d.Phone), false

	case models.BookingStepConfirmPhone:
		lower := strings.ToLower(text)
		if lower != "yes" && lower != "1" {
			phone, ok := extract.MobileNumber(text)
			if !ok {
				return t.ConfirmPhoneReprompt(), false
			}
			d.Phone = phone
		}
		d.Step = d.Step.Next()
		return t.DatePrompt(), false

	case models.BookingStepDate:
		if !extract.LooksLikeVisitDate(text) {
			return t.DateReprompt(), false
		}
		d.Date = text
		d.Step = d.Step.Next()
		return t.TimePrompt(), false

	case models.BookingStepTime:
		if slot, ok := timeSlots[text]; ok {
			d.Time = slot
		} else {
			d.Time = text
		}
		d.Step = d.Step.Next()
		return t.UnitTypePrompt(), false

	case models.BookingStepUnitType:
		unit, ok := unitTypes[text]
		if !ok {
			return t.UnitTypeReprompt(), false
		}
		d.UnitType = unit
		d.Step = d.Step.Next()
		return t.BudgetPrompt(), false

	case models.BookingStepBudget:
		budget, ok := extract.Budget(text)
		if !ok {
			return t.BudgetReprompt(), false
		}
		d.Budget = budget
		d.Step = d.Step.Next()
		return t.BookingComplete(), true
	}

	// A draft already at the done step has nothing left to collect.
	return t.BookingComplete(), true
}
