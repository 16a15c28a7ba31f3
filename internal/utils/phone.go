package utils

import "strings"

// NormalizePhone strips the formatting characters the Meta Cloud API rejects:
// leading +, spaces and hyphens. "+234 803-555-0101" becomes "2348035550101".
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer("+", "", " ", "", "-", "")
	return replacer.Replace(phone)
}

// PhoneFromWhatsAppID extracts the bare phone number from a WhatsApp
// identifier like "2348035550101@c.us".
func PhoneFromWhatsAppID(whatsappID string) string {
	return strings.TrimSuffix(whatsappID, "@c.us")
}
