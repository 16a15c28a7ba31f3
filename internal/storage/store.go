package storage

import (
	"time"

	"github.com/teleiosites/shepherd-backend/internal/models"
)

// BridgeBatchSize caps how many pending messages a single bridge poll
// returns. The bridge drains in FIFO order, oldest first.
const BridgeBatchSize = 10

// ClaimTimeout is how long a dispatcher's push-channel claim on a message is
// honored before another dispatcher pass may reclaim it.
const ClaimTimeout = 5 * time.Minute

// MessageFilter narrows ListMessages results.
type MessageFilter struct {
	ContactID string
	Status    string
	Type      string
	Limit     int
	Offset    int
}

// Store defines the interface for storage operations
type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	// GetUserByCodePrefix resolves the bridge connection code: the one user
	// whose ID starts (case-insensitively) with code. Returns
	// apperrors.ErrInvalidConnectionCode when nobody matches.
	GetUserByCodePrefix(code string) (*models.User, error)

	// Organization operations
	CreateOrganization(org *models.Organization) error
	GetOrganization(id string) (*models.Organization, error)
	UpdateOrganization(org *models.Organization) error

	// Contact operations
	CreateContact(contact *models.Contact) error
	GetContact(orgID, id string) (*models.Contact, error)
	GetContactByPhone(orgID, phone string) (*models.Contact, error)
	ListContacts(orgID string) ([]*models.Contact, error)
	GetActiveContacts() ([]*models.Contact, error)
	UpdateContact(contact *models.Contact) error

	// Workflow step operations
	CreateWorkflowStep(step *models.WorkflowStep) error
	// GetWorkflowSteps returns the category's steps ordered by day ascending.
	// Category matching is case-insensitive.
	GetWorkflowSteps(orgID, category string) ([]*models.WorkflowStep, error)
	GetDayZeroStep(orgID, category string) (*models.WorkflowStep, error)
	ListWorkflowSteps(orgID string) ([]*models.WorkflowStep, error)
	DeleteWorkflowStep(orgID, id string) error

	// Message operations
	CreateMessage(msg *models.Message) error
	// CreateOutboundIfNoneSince inserts msg only if the contact has no
	// outbound message created at or after since. The check and insert are
	// atomic; returns false when the dedupe guard suppressed the insert.
	CreateOutboundIfNoneSince(msg *models.Message, since time.Time) (bool, error)
	// HasOutboundSince reports whether the contact has any outbound message
	// created at or after since (the daily dedupe pre-check).
	HasOutboundSince(contactID string, since time.Time) (bool, error)
	GetMessage(orgID, id string) (*models.Message, error)
	ListMessages(orgID string, filter MessageFilter) ([]*models.Message, error)
	// GetPendingForBridge returns up to limit eligible pending outbound
	// messages for the organization, oldest first, joined with each
	// recipient's phone. Read-only: repeated polls return the same set until
	// a status report lands.
	GetPendingForBridge(orgID string, now time.Time, limit int) ([]models.PendingDelivery, error)
	// GetDueMessages returns pending outbound messages whose scheduled time
	// has arrived.
	GetDueMessages(now time.Time) ([]*models.Message, error)
	// CountActiveOutbound counts the contact's outbound messages that are
	// pending, sent, delivered or read; failed messages don't count toward
	// the workflow catch-up index.
	CountActiveOutbound(contactID string) (int, error)
	// ClaimForDispatch atomically claims a pending message for a push send.
	// Returns false if the message is no longer pending or another dispatcher
	// holds a live claim.
	ClaimForDispatch(id string, now time.Time) (bool, error)
	// TransitionMessageStatus applies a status change under the message state
	// machine: a repeat of the current status is an idempotent no-op, a legal
	// transition is applied atomically, anything else returns a
	// StatusConflictError. whatsappMessageID and errMsg are recorded when
	// non-empty.
	TransitionMessageStatus(orgID, id, status, whatsappMessageID, errMsg string, now time.Time) error

	// Group operations (welcome queue)
	CreateGroup(group *models.Group) error
	ListGroups(orgID string) ([]*models.Group, error)
	GetGroupByWhatsAppID(orgID, whatsappGroupID string) (*models.Group, error)
	UpdateGroup(group *models.Group) error
	CreateGroupMember(member *models.GroupMember) error
	// GetWelcomeQueue returns members of auto-welcome groups who joined at or
	// after since, are still in the group, and have not been welcomed yet.
	GetWelcomeQueue(orgID string, since time.Time) ([]models.WelcomeCandidate, error)
	MarkWelcomeSent(orgID, memberID string, now time.Time) error
}
