package models

import "time"

// Group is a WhatsApp group the organization manages through its bridge.
type Group struct {
	ID              string `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID  string `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:uq_org_whatsapp_group"`
	WhatsAppGroupID string `json:"whatsapp_group_id" gorm:"size:255;not null;uniqueIndex:uq_org_whatsapp_group"`
	Name            string `json:"name" gorm:"size:255;not null"`
	Description     string `json:"description"`
	MemberCount     int    `json:"member_count" gorm:"default:0"`
	IsActive        bool   `json:"is_active" gorm:"default:true"`

	// Auto-welcome settings
	AutoWelcomeEnabled     bool   `json:"auto_welcome_enabled" gorm:"default:false"`
	WelcomeMessageTemplate string `json:"welcome_message_template"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupMember tracks one participant of a managed group. WelcomeSentAt
// prevents the welcome queue from handing the same member to the bridge twice.
type GroupMember struct {
	ID            string     `json:"id" gorm:"type:uuid;primaryKey"`
	GroupID       string     `json:"group_id" gorm:"type:uuid;not null;uniqueIndex:uq_group_member"`
	ContactID     *string    `json:"contact_id" gorm:"type:uuid"`
	WhatsAppID    string     `json:"whatsapp_id" gorm:"size:255;not null;uniqueIndex:uq_group_member"`
	Name          string     `json:"name" gorm:"size:255"`
	IsAdmin       bool       `json:"is_admin" gorm:"default:false"`
	JoinedAt      time.Time  `json:"joined_at" gorm:"index"`
	LeftAt        *time.Time `json:"left_at"`
	WelcomeSentAt *time.Time `json:"welcome_sent_at"`
}

// WelcomeCandidate is a recently joined member of an auto-welcome group,
// joined with its group for template rendering.
type WelcomeCandidate struct {
	Member GroupMember
	Group  Group
}
