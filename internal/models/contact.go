package models

import "time"

// Contact statuses
const (
	ContactStatusActive   = "Active"
	ContactStatusInactive = "Inactive"
)

// Contact is a church member or prospect that drip campaigns run against.
type Contact struct {
	ID             string     `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string     `json:"organization_id" gorm:"type:uuid;not null;index:idx_contacts_org_category;uniqueIndex:uq_org_phone"`
	Name           string     `json:"name" gorm:"size:255;not null"`
	Phone          string     `json:"phone" gorm:"size:50;not null;uniqueIndex:uq_org_phone"`
	Email          string     `json:"email" gorm:"size:255"`
	Category       string     `json:"category" gorm:"size:100;not null;index:idx_contacts_org_category"`
	JoinDate       time.Time  `json:"join_date" gorm:"not null;index"`
	Notes          string     `json:"notes"`
	Status         string     `json:"status" gorm:"size:50;default:'Active'"`
	LastContacted  *time.Time `json:"last_contacted"`
	CreatedBy      *string    `json:"created_by" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ContactCreate is the request body for registering a new contact.
type ContactCreate struct {
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Email    string    `json:"email"`
	Category string    `json:"category"`
	JoinDate time.Time `json:"join_date"`
	Notes    string    `json:"notes"`
}
