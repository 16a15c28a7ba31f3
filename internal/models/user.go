package models

import (
	"strings"
	"time"
)

// User is a staff account (pastor, worker, admin) within an organization.
type User struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"not null"`
	FullName       string    `json:"full_name" gorm:"size:255"`
	Role           string    `json:"role" gorm:"size:50;default:'worker'"` // admin, pastor, worker
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;index;not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConnectionCodeLength is how many leading characters of a user ID form the
// bridge pairing code.
const ConnectionCodeLength = 8

// ConnectionCode derives the short code a bridge instance enters to pair with
// this user's organization. It is simply the first 8 characters of the user
// ID, uppercased; matching is case-insensitive.
func (u *User) ConnectionCode() string {
	id := u.ID
	if len(id) > ConnectionCodeLength {
		id = id[:ConnectionCodeLength]
	}
	return strings.ToUpper(id)
}
