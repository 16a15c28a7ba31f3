package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 555 123 4567", "15551234567"},
		{"+255-712-345-678", "255712345678"},
		{"15551234567", "15551234567"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhoneFromWhatsAppID(t *testing.T) {
	if got := PhoneFromWhatsAppID("15551234567@c.us"); got != "15551234567" {
		t.Errorf("PhoneFromWhatsAppID = %q", got)
	}
	if got := PhoneFromWhatsAppID("15551234567"); got != "15551234567" {
		t.Errorf("bare number = %q", got)
	}
}
