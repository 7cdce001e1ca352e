package flow

import (
	"fmt"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Default business copy.
const (
	DefaultProjectName     = "Brookstone"
	DefaultAgentName       = "Shatranj"
	DefaultAgentPhone      = "+91 1234567890"
	DefaultOfficeHours     = "10 AM - 7 PM"
	DefaultFormURLEnglish  = "https://docs.google.com/forms/d/e/1FAIpQLSceds-nIr9vTLHJ0Jl1TOv0DNYGQhb0CtEa2R3mA9Ae3iP8Lg/viewform"
	DefaultFormURLGujarati = "https://docs.google.com/forms/d/e/1FAIpQLSdmWOyIDKZ5KU47LhzKUJXwITN40Fn8tV8swuX7IIWFvB72qQ/viewform"
)

// DefaultProjectNameGujarati is DefaultProjectName written in Gujarati script.
const DefaultProjectNameGujarati = "બ્રૂકસ્ટોન"

// Templates renders every fixed reply the router can send.
type Templates struct {
	ProjectName     string
	AgentName       string
	AgentPhone      string
	OfficeHours     string
	FormURLEnglish  string
	FormURLGujarati string
}

// DefaultTemplates returns the stock copy.
func DefaultTemplates() Templates {
	return Templates{
		ProjectName:     DefaultProjectName,
		AgentName:       DefaultAgentName,
		AgentPhone:      DefaultAgentPhone,
		OfficeHours:     DefaultOfficeHours,
		FormURLEnglish:  DefaultFormURLEnglish,
		FormURLGujarati: DefaultFormURLGujarati,
	}
}

// withDefaults fills empty fields from DefaultTemplates.
func (t Templates) withDefaults() Templates {
	d := DefaultTemplates()
	if t.ProjectName == "" {
		t.ProjectName = d.ProjectName
	}
	if t.AgentName == "" {
		t.AgentName = d.AgentName
	}
	if t.AgentPhone == "" {
		t.AgentPhone = d.AgentPhone
	}
	if t.OfficeHours == "" {
		t.OfficeHours = d.OfficeHours
	}
	if t.FormURLEnglish == "" {
		t.FormURLEnglish = d.FormURLEnglish
	}
	if t.FormURLGujarati == "" {
		t.FormURLGujarati = d.FormURLGujarati
	}
	return t
}

// FormURL returns the booking form for lang.
func (t Templates) FormURL(lang models.Language) string {
	if lang == models.LanguageGujarati {
		return t.FormURLGujarati
	}
	return t.FormURLEnglish
}

// projectNameGujarati is the name used in Gujarati copy. A custom project name is
// kept as configured.
func (t Templates) projectNameGujarati() string {
	if t.ProjectName == DefaultProjectName {
		return DefaultProjectNameGujarati
	}
	return t.ProjectName
}

// Document delivery failures. Each path has its own wording.

// PhoneDocumentFailed is sent when the brochure could not be delivered to a number
// the user typed.
func (t Templates) PhoneDocumentFailed() string {
	return fmt.Sprintf(`I apologize, but there was an issue sending the brochure to your WhatsApp. 

Please try again later or contact our agent directly at %s.`, t.AgentPhone)
}

// DocumentFailed is sent when a brochure request could not be served.
func (t Templates) DocumentFailed() string {
	return fmt.Sprintf(`I apologize, but there was an issue sending the brochure.

Please contact our agent at %s for assistance.`, t.AgentPhone)
}

// ConfirmedDocumentFailed is sent when a confirmed resend fails.
func (t Templates) ConfirmedDocumentFailed() string {
	return fmt.Sprintf(`❌ There was an issue sending your brochure on WhatsApp.
Please contact our agent at %s.`, t.AgentPhone)
}

// DocumentPhoneReprompt asks again for a number to send the brochure to.
func (t Templates) DocumentPhoneReprompt() string {
	return `I didn't find a valid phone number. Please share your *10-digit mobile number* to send the brochure.

For example: 9876543210 or +91 9876543210`
}

// Handoff gives the agent contact details.
func (t Templates) Handoff() string {
	return fmt.Sprintf(`Great! You can reach our agent, %s, directly on WhatsApp at:

📱 *WhatsApp Number:* %s

Our team will respond within 30 minutes during office hours (%s).

You can also call on the same number for a phone conversation.

Is there anything else about %s I can help you with? 🏠`, t.AgentName, t.AgentPhone, t.OfficeHours, t.ProjectName)
}

// BookingForm is the reply to a booking request: a link to the external form.
func (t Templates) BookingForm(lang models.Language) string {
	if lang == models.LanguageGujarati {
		return fmt.Sprintf(`🏠 *%s સાઇટ વિઝિટ બુકિંગ*

તમારી સાઇટ વિઝિટ શેડ્યૂલ કરવા માટે, નીચેની લિંક પર ક્લિક કરો અને ફોર્મ ભરો:

📝 %s

ફોર્મમાં આ માહિતી પૂછવામાં આવશે:
• તમારું નામ
• કોન્ટેક્ટ નંબર
• પસંદગીની તારીખ અને સમય
• યુનિટ પસંદગી
• બજેટ રેન્જ

ફોર્મ સબમિટ કર્યા પછી, તમને 15 મિનિટની અંદર WhatsApp પર કન્ફર્મેશન મેસેજ મળશે.

ફોર્મ ભરવામાં કોઈ મદદ જોઈએ છે? પૂછવામાં સંકોચ ન કરશો! 😊

_નોંધ: કૃપા કરીને ફોર્મમાં સાચો કોન્ટેક્ટ નંબર આપશો, કારણ કે અમે એ જ WhatsApp નંબર પર કન્ફર્મેશન મોકલીશું._ 📱`, t.projectNameGujarati(), t.FormURLGujarati)
	}
	return fmt.Sprintf(`🏠 *Book Your Site Visit to %s*

To schedule your site visit, please click the link below and fill out a quick form:

📝 %s

The form will ask for:
• Your Name
• Contact Number
• Preferred Date & Time
• Unit Type Interest
• Budget Range

Once you submit the form, you will receive a confirmation message here on WhatsApp within 15 minutes.

Need help with the form? Feel free to ask! 😊

_Tip: Make sure to provide accurate contact details in the form as we'll send the confirmation on the same WhatsApp number._ 📱`, t.ProjectName, t.FormURLEnglish)
}

// Step-by-step booking prompts.

// BookingStart opens the guided booking and asks for the full name.
func (t Templates) BookingStart() string {
	return fmt.Sprintf(`🏠 *Book Your Site Visit to %s*

Let's get a few details. What is your *full name*?`, t.ProjectName)
}

// NameReprompt asks again for the visitor name.
func (t Templates) NameReprompt() string {
	return "Please tell me your *full name* to continue the booking."
}

// ConfirmPhone asks the user to confirm phone or send another number.
func (t Templates) ConfirmPhone(name, phone string) string {
	return fmt.Sprintf(`Thank you, %s! 📝

I have your phone number as: *%s*
Is this the correct number for the site visit coordination?

Reply with:
1️⃣ *Yes* to confirm this number
2️⃣ Or type your *alternate number*`, name, phone)
}

// ConfirmPhoneReprompt follows an answer that was neither yes nor a valid number.
func (t Templates) ConfirmPhoneReprompt() string {
	return `Please provide a valid 10-digit phone number or type *Yes* to confirm the existing number.

Example: 9876543210 or +91 9876543210`
}

// DatePrompt asks for the visit date as DD/MM/YYYY.
func (t Templates) DatePrompt() string {
	return `Great! Now, please tell me your *preferred date* for the site visit.

Format: DD/MM/YYYY
Example: 05/11/2025`
}

// DateReprompt follows a date that did not parse.
func (t Templates) DateReprompt() string {
	return `Please provide the date in the correct format (DD/MM/YYYY).

Example: 05/11/2025`
}

// TimePrompt lists the visit slots.
func (t Templates) TimePrompt() string {
	return `Perfect! Now, please select your *preferred time* for the site visit.

Available slots:
1️⃣ 10:00 AM
2️⃣ 11:30 AM
3️⃣ 02:00 PM
4️⃣ 03:30 PM
5️⃣ 05:00 PM

Reply with the slot number (1-5) or type the time.`
}

// UnitTypePrompt offers the unit types.
func (t Templates) UnitTypePrompt() string {
	return `Excellent! Which unit type are you interested in?

1️⃣ *3 BHK* (2650 sq ft)
2️⃣ *4 BHK* (3850 sq ft)
3️⃣ *Both options*

Please reply with 1, 2, or 3.`
}

// UnitTypeReprompt follows an unknown unit choice.
func (t Templates) UnitTypeReprompt() string {
	return `Please select a valid option:
1️⃣ for 3 BHK
2️⃣ for 4 BHK
3️⃣ for Both options`
}

// BudgetPrompt asks for the approximate budget.
func (t Templates) BudgetPrompt() string {
	return `Almost done! 🎯

What is your *approximate budget*?

Example formats:
• 1.5 Cr
• 2 Crore
• 150 Lakhs`
}

// BudgetReprompt follows a budget that could not be read.
func (t Templates) BudgetReprompt() string {
	return `Please specify your budget in a clear format:
Example: 1.5 Cr, 2 Crore, or 150 Lakhs`
}

// BookingComplete redirects a finished step-by-step booking to the form.
func (t Templates) BookingComplete() string {
	return fmt.Sprintf(`✅ To complete your booking, please fill out our site visit form:

📝 %s

Once you submit the form, you'll receive a confirmation message with all the details.

Need help with anything else? 😊`, t.FormURLEnglish)
}
