package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "12345", "Hello Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.SentMessages))
	}

	if mock.SentMessages[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", mock.SentMessages[0].Body)
	}
}

func TestWhatsAppAddress(t *testing.T) {
	tests := map[string]string{
		"919876543210":           "whatsapp:+919876543210",
		"+919876543210":          "whatsapp:+919876543210",
		"whatsapp:+919876543210": "whatsapp:+919876543210",
	}
	for in, want := range tests {
		if got := WhatsAppAddress(in); got != want {
			t.Errorf("WhatsAppAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(WithAccountSID("AC1")); err == nil {
		t.Error("expected error without auth token")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without sending number")
	}
	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("14155238886"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("unexpected from address %q", c.fromWhats)
	}
}

func TestSendDocumentRejectsNonURL(t *testing.T) {
	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("+1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.SendDocument(context.Background(), "+91", "/tmp/brochure.pdf", ""); err == nil {
		t.Error("expected error for a local path")
	}
}
