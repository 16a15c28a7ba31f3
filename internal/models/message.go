package models

import "time"

// Message directions
const (
	MessageTypeOutbound = "Outbound"
	MessageTypeInbound  = "Inbound"
)

// Message lifecycle statuses. Transitions are one-directional:
// Pending -> Sent | Failed, Sent -> Delivered | Read. Failed, Delivered and
// Read are terminal for delivery purposes.
const (
	MessageStatusPending   = "Pending"
	MessageStatusSent      = "Sent"
	MessageStatusDelivered = "Delivered"
	MessageStatusRead      = "Read"
	MessageStatusFailed    = "Failed"
)

// Message is one outbound or inbound WhatsApp message tied to a contact.
// Outbound workflow messages are the unit the scheduler, dispatcher and
// bridge polling protocol operate on.
type Message struct {
	ID             string `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string `json:"organization_id" gorm:"type:uuid;index;not null"`
	ContactID      string `json:"contact_id" gorm:"type:uuid;index:idx_messages_contact;not null"`
	Content        string `json:"content" gorm:"not null"`
	Type           string `json:"type" gorm:"size:50;not null"`
	Status         string `json:"status" gorm:"size:50;not null;index:idx_messages_status_scheduled"`

	ScheduledFor *time.Time `json:"scheduled_for" gorm:"index:idx_messages_status_scheduled"`
	SentAt       *time.Time `json:"sent_at"`
	// DispatchedAt marks a push-channel claim by the dispatcher; a stale claim
	// becomes reclaimable after ClaimTimeout.
	DispatchedAt *time.Time `json:"-"`

	WhatsAppMessageID string `json:"whatsapp_message_id" gorm:"size:255"`
	ErrorMessage      string `json:"error_message"`

	AttachmentURL  string `json:"attachment_url"`
	AttachmentType string `json:"attachment_type" gorm:"size:50"`
	AttachmentName string `json:"attachment_name" gorm:"size:255"`

	CreatedBy *string   `json:"created_by" gorm:"type:uuid"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_messages_contact"`
}

// IsTerminal reports whether a status admits no further delivery transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case MessageStatusFailed, MessageStatusDelivered, MessageStatusRead:
		return true
	}
	return false
}

// CanTransition reports whether a message may move from one status to
// another. Same-status "transitions" are not covered here; callers treat them
// as idempotent no-ops.
func CanTransition(from, to string) bool {
	switch from {
	case MessageStatusPending:
		return to == MessageStatusSent || to == MessageStatusFailed
	case MessageStatusSent:
		return to == MessageStatusDelivered || to == MessageStatusRead
	}
	return false
}

// MessageCreate is the request body for queueing a message from the API.
type MessageCreate struct {
	ContactID      string     `json:"contact_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
	AttachmentURL  string     `json:"attachment_url"`
	AttachmentType string     `json:"attachment_type"`
	AttachmentName string     `json:"attachment_name"`
}

// PendingDelivery is a pending outbound message joined with the recipient's
// phone number, as handed to a polling bridge.
type PendingDelivery struct {
	Message Message
	Phone   string
}
