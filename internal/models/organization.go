package models

import "time"

// Organization represents a church/ministry tenant. All contacts, workflow
// steps and messages hang off one organization.
type Organization struct {
	ID     string `json:"id" gorm:"type:uuid;primaryKey"`
	Name   string `json:"name" gorm:"size:255;not null"`
	AIName string `json:"ai_name" gorm:"size:255;default:'Shepherd AI'"`

	// WhatsApp delivery configuration.
	// Meta Cloud API credentials (push channel):
	WhatsAppPhoneID           string `json:"whatsapp_phone_id" gorm:"size:255"`
	WhatsAppBusinessAccountID string `json:"whatsapp_business_account_id" gorm:"size:255"`
	WhatsAppAccessToken       string `json:"-"`
	// Self-hosted WPPConnect bridge (poll channel):
	WPPConnectBridgeURL string `json:"wppconnect_bridge_url"`

	// AI configuration (per organization)
	AIProvider string `json:"ai_provider" gorm:"size:50;default:'gemini'"` // gemini, openai, deepseek, groq, custom
	AIAPIKey   string `json:"-"`
	AIModel    string `json:"ai_model" gorm:"size:100;default:'gemini-2.0-flash'"`
	AIBaseURL  string `json:"ai_base_url"` // for custom OpenAI-compatible providers

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPushCredentials reports whether the organization can send through the
// Meta Cloud API. Push takes precedence over the bridge when both are set.
func (o *Organization) HasPushCredentials() bool {
	return o.WhatsAppPhoneID != "" && o.WhatsAppAccessToken != ""
}
