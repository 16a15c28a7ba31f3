package models

import "time"

// WorkflowStep is one message in a category's drip sequence. Steps are
// ordered by Day ascending within (organization, category); the ordering is
// the campaign sequence, not a literal calendar day.
type WorkflowStep struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:uq_org_category_day"`
	Category       string    `json:"category" gorm:"size:100;not null;uniqueIndex:uq_org_category_day"`
	Day            int       `json:"day" gorm:"not null;uniqueIndex:uq_org_category_day"`
	Title          string    `json:"title" gorm:"size:255;not null"`
	Prompt         string    `json:"prompt" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// WorkflowStepCreate is the request body for adding a step.
type WorkflowStepCreate struct {
	Category string `json:"category"`
	Day      int    `json:"day"`
	Title    string `json:"title"`
	Prompt   string `json:"prompt"`
}
