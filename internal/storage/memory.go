package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and local development
// without PostgreSQL (USE_MEMORY_STORE=true).
type MemoryStore struct {
	users         map[string]*models.User
	organizations map[string]*models.Organization
	contacts      map[string]*models.Contact
	steps         map[string]*models.WorkflowStep
	messages      map[string]*models.Message
	groups        map[string]*models.Group
	members       map[string]*models.GroupMember

	// Mutexes for thread safety
	userMu    sync.RWMutex
	orgMu     sync.RWMutex
	contactMu sync.RWMutex
	stepMu    sync.RWMutex
	messageMu sync.RWMutex
	groupMu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		organizations: make(map[string]*models.Organization),
		contacts:      make(map[string]*models.Contact),
		steps:         make(map[string]*models.WorkflowStep),
		messages:      make(map[string]*models.Message),
		groups:        make(map[string]*models.Group),
		members:       make(map[string]*models.GroupMember),
	}
}

// User operations

func (m *MemoryStore) CreateUser(user *models.User) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStore) GetUserByID(id string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, apperrors.NewNotFound("user", id)
	}
	return user, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, apperrors.NewNotFound("user", email)
}

func (m *MemoryStore) GetUserByCodePrefix(code string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	prefix := strings.ToLower(code)
	if prefix == "" {
		return nil, apperrors.ErrInvalidConnectionCode
	}
	for _, user := range m.users {
		if strings.HasPrefix(strings.ToLower(user.ID), prefix) {
			return user, nil
		}
	}
	return nil, apperrors.ErrInvalidConnectionCode
}

// Organization operations

func (m *MemoryStore) CreateOrganization(org *models.Organization) error {
	m.orgMu.Lock()
	defer m.orgMu.Unlock()

	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	m.organizations[org.ID] = org
	return nil
}

func (m *MemoryStore) GetOrganization(id string) (*models.Organization, error) {
	m.orgMu.RLock()
	defer m.orgMu.RUnlock()

	org, exists := m.organizations[id]
	if !exists {
		return nil, apperrors.NewNotFound("organization", id)
	}
	return org, nil
}

func (m *MemoryStore) UpdateOrganization(org *models.Organization) error {
	m.orgMu.Lock()
	defer m.orgMu.Unlock()

	if _, exists := m.organizations[org.ID]; !exists {
		return apperrors.NewNotFound("organization", org.ID)
	}
	org.UpdatedAt = time.Now()
	m.organizations[org.ID] = org
	return nil
}

// Contact operations

func (m *MemoryStore) CreateContact(contact *models.Contact) error {
	m.contactMu.Lock()
	defer m.contactMu.Unlock()

	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	if contact.Status == "" {
		contact.Status = models.ContactStatusActive
	}
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = contact.CreatedAt
	m.contacts[contact.ID] = contact
	return nil
}

func (m *MemoryStore) GetContact(orgID, id string) (*models.Contact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	contact, exists := m.contacts[id]
	if !exists || contact.OrganizationID != orgID {
		return nil, apperrors.NewNotFound("contact", id)
	}
	return contact, nil
}

func (m *MemoryStore) GetContactByPhone(orgID, phone string) (*models.Contact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	for _, contact := range m.contacts {
		if contact.OrganizationID == orgID && contact.Phone == phone {
			return contact, nil
		}
	}
	return nil, apperrors.NewNotFound("contact", phone)
}

func (m *MemoryStore) ListContacts(orgID string) ([]*models.Contact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	var contacts []*models.Contact
	for _, contact := range m.contacts {
		if contact.OrganizationID == orgID {
			contacts = append(contacts, contact)
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
	return contacts, nil
}

func (m *MemoryStore) GetActiveContacts() ([]*models.Contact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	var contacts []*models.Contact
	for _, contact := range m.contacts {
		if contact.Status == models.ContactStatusActive {
			contacts = append(contacts, contact)
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
	return contacts, nil
}

func (m *MemoryStore) UpdateContact(contact *models.Contact) error {
	m.contactMu.Lock()
	defer m.contactMu.Unlock()

	if _, exists := m.contacts[contact.ID]; !exists {
		return apperrors.NewNotFound("contact", contact.ID)
	}
	contact.UpdatedAt = time.Now()
	m.contacts[contact.ID] = contact
	return nil
}

// Workflow step operations

func (m *MemoryStore) CreateWorkflowStep(step *models.WorkflowStep) error {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()

	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	for _, existing := range m.steps {
		if existing.OrganizationID == step.OrganizationID &&
			strings.EqualFold(existing.Category, step.Category) &&
			existing.Day == step.Day {
			return fmt.Errorf("workflow step for category %q day %d already exists", step.Category, step.Day)
		}
	}
	step.CreatedAt = time.Now()
	m.steps[step.ID] = step
	return nil
}

func (m *MemoryStore) GetWorkflowSteps(orgID, category string) ([]*models.WorkflowStep, error) {
	m.stepMu.RLock()
	defer m.stepMu.RUnlock()

	var steps []*models.WorkflowStep
	for _, step := range m.steps {
		if step.OrganizationID == orgID && strings.EqualFold(step.Category, category) {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Day < steps[j].Day })
	return steps, nil
}

func (m *MemoryStore) GetDayZeroStep(orgID, category string) (*models.WorkflowStep, error) {
	steps, err := m.GetWorkflowSteps(orgID, category)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		if step.Day == 0 {
			return step, nil
		}
	}
	return nil, apperrors.NewNotFound("workflow step", category+"/day 0")
}

func (m *MemoryStore) ListWorkflowSteps(orgID string) ([]*models.WorkflowStep, error) {
	m.stepMu.RLock()
	defer m.stepMu.RUnlock()

	var steps []*models.WorkflowStep
	for _, step := range m.steps {
		if step.OrganizationID == orgID {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Category != steps[j].Category {
			return steps[i].Category < steps[j].Category
		}
		return steps[i].Day < steps[j].Day
	})
	return steps, nil
}

func (m *MemoryStore) DeleteWorkflowStep(orgID, id string) error {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()

	step, exists := m.steps[id]
	if !exists || step.OrganizationID != orgID {
		return apperrors.NewNotFound("workflow step", id)
	}
	delete(m.steps, id)
	return nil
}

// Message operations

func (m *MemoryStore) CreateMessage(msg *models.Message) error {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	m.insertMessageLocked(msg)
	return nil
}

func (m *MemoryStore) insertMessageLocked(msg *models.Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages[msg.ID] = msg
}

func (m *MemoryStore) CreateOutboundIfNoneSince(msg *models.Message, since time.Time) (bool, error) {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	for _, existing := range m.messages {
		if existing.ContactID == msg.ContactID &&
			existing.Type == models.MessageTypeOutbound &&
			!existing.CreatedAt.Before(since) {
			return false, nil
		}
	}
	m.insertMessageLocked(msg)
	return true, nil
}

func (m *MemoryStore) HasOutboundSince(contactID string, since time.Time) (bool, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	for _, msg := range m.messages {
		if msg.ContactID == contactID &&
			msg.Type == models.MessageTypeOutbound &&
			!msg.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetMessage(orgID, id string) (*models.Message, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	msg, exists := m.messages[id]
	if !exists || msg.OrganizationID != orgID {
		return nil, apperrors.NewNotFound("message", id)
	}
	return msg, nil
}

func (m *MemoryStore) ListMessages(orgID string, filter MessageFilter) ([]*models.Message, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	var messages []*models.Message
	for _, msg := range m.messages {
		if msg.OrganizationID != orgID {
			continue
		}
		if filter.ContactID != "" && msg.ContactID != filter.ContactID {
			continue
		}
		if filter.Status != "" && msg.Status != filter.Status {
			continue
		}
		if filter.Type != "" && msg.Type != filter.Type {
			continue
		}
		messages = append(messages, msg)
	}
	// Newest first, like the dashboard expects
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(messages) {
			return nil, nil
		}
		messages = messages[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(messages) {
		messages = messages[:filter.Limit]
	}
	return messages, nil
}

func (m *MemoryStore) GetPendingForBridge(orgID string, now time.Time, limit int) ([]models.PendingDelivery, error) {
	m.messageMu.RLock()
	var pending []*models.Message
	for _, msg := range m.messages {
		if msg.OrganizationID != orgID ||
			msg.Type != models.MessageTypeOutbound ||
			msg.Status != models.MessageStatusPending {
			continue
		}
		if msg.ScheduledFor != nil && msg.ScheduledFor.After(now) {
			continue
		}
		pending = append(pending, msg)
	}
	m.messageMu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && limit < len(pending) {
		pending = pending[:limit]
	}

	deliveries := make([]models.PendingDelivery, 0, len(pending))
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()
	for _, msg := range pending {
		contact, exists := m.contacts[msg.ContactID]
		if !exists {
			continue
		}
		deliveries = append(deliveries, models.PendingDelivery{Message: *msg, Phone: contact.Phone})
	}
	return deliveries, nil
}

func (m *MemoryStore) GetDueMessages(now time.Time) ([]*models.Message, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	var due []*models.Message
	for _, msg := range m.messages {
		if msg.Type != models.MessageTypeOutbound || msg.Status != models.MessageStatusPending {
			continue
		}
		if msg.ScheduledFor == nil || msg.ScheduledFor.After(now) {
			continue
		}
		due = append(due, msg)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	return due, nil
}

func (m *MemoryStore) CountActiveOutbound(contactID string) (int, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	count := 0
	for _, msg := range m.messages {
		if msg.ContactID != contactID || msg.Type != models.MessageTypeOutbound {
			continue
		}
		switch msg.Status {
		case models.MessageStatusPending, models.MessageStatusSent,
			models.MessageStatusDelivered, models.MessageStatusRead:
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ClaimForDispatch(id string, now time.Time) (bool, error) {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	msg, exists := m.messages[id]
	if !exists || msg.Status != models.MessageStatusPending {
		return false, nil
	}
	if msg.DispatchedAt != nil && now.Sub(*msg.DispatchedAt) < ClaimTimeout {
		return false, nil
	}
	claimed := now
	msg.DispatchedAt = &claimed
	return true, nil
}

func (m *MemoryStore) TransitionMessageStatus(orgID, id, status, whatsappMessageID, errMsg string, now time.Time) error {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	msg, exists := m.messages[id]
	if !exists || msg.OrganizationID != orgID {
		return apperrors.NewNotFound("message", id)
	}
	if msg.Status == status {
		// Duplicate report for the same outcome, e.g. a retrying bridge.
		return nil
	}
	if !models.CanTransition(msg.Status, status) {
		return apperrors.NewStatusConflict(id, msg.Status, status)
	}

	msg.Status = status
	if whatsappMessageID != "" {
		msg.WhatsAppMessageID = whatsappMessageID
	}
	if status == models.MessageStatusSent {
		sentAt := now
		msg.SentAt = &sentAt
	}
	if status == models.MessageStatusFailed && errMsg != "" {
		msg.ErrorMessage = errMsg
	}
	return nil
}

// Group operations

func (m *MemoryStore) CreateGroup(group *models.Group) error {
	m.groupMu.Lock()
	defer m.groupMu.Unlock()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	m.groups[group.ID] = group
	return nil
}

func (m *MemoryStore) ListGroups(orgID string) ([]*models.Group, error) {
	m.groupMu.RLock()
	defer m.groupMu.RUnlock()

	var groups []*models.Group
	for _, group := range m.groups {
		if group.OrganizationID == orgID {
			groups = append(groups, group)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CreatedAt.Before(groups[j].CreatedAt)
	})
	return groups, nil
}

func (m *MemoryStore) GetGroupByWhatsAppID(orgID, whatsappGroupID string) (*models.Group, error) {
	m.groupMu.RLock()
	defer m.groupMu.RUnlock()

	for _, group := range m.groups {
		if group.OrganizationID == orgID && group.WhatsAppGroupID == whatsappGroupID {
			return group, nil
		}
	}
	return nil, apperrors.NewNotFound("group", whatsappGroupID)
}

func (m *MemoryStore) UpdateGroup(group *models.Group) error {
	m.groupMu.Lock()
	defer m.groupMu.Unlock()

	if _, exists := m.groups[group.ID]; !exists {
		return apperrors.NewNotFound("group", group.ID)
	}
	group.UpdatedAt = time.Now()
	m.groups[group.ID] = group
	return nil
}

func (m *MemoryStore) CreateGroupMember(member *models.GroupMember) error {
	m.groupMu.Lock()
	defer m.groupMu.Unlock()

	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	m.members[member.ID] = member
	return nil
}

func (m *MemoryStore) GetWelcomeQueue(orgID string, since time.Time) ([]models.WelcomeCandidate, error) {
	m.groupMu.RLock()
	defer m.groupMu.RUnlock()

	var queue []models.WelcomeCandidate
	for _, member := range m.members {
		if member.LeftAt != nil || member.WelcomeSentAt != nil || member.JoinedAt.Before(since) {
			continue
		}
		group, exists := m.groups[member.GroupID]
		if !exists || group.OrganizationID != orgID || !group.AutoWelcomeEnabled {
			continue
		}
		queue = append(queue, models.WelcomeCandidate{Member: *member, Group: *group})
	}
	sort.Slice(queue, func(i, j int) bool {
		return queue[i].Member.JoinedAt.Before(queue[j].Member.JoinedAt)
	})
	return queue, nil
}

func (m *MemoryStore) MarkWelcomeSent(orgID, memberID string, now time.Time) error {
	m.groupMu.Lock()
	defer m.groupMu.Unlock()

	member, exists := m.members[memberID]
	if !exists {
		return apperrors.NewNotFound("group member", memberID)
	}
	group, exists := m.groups[member.GroupID]
	if !exists || group.OrganizationID != orgID {
		return apperrors.NewNotFound("group member", memberID)
	}
	sentAt := now
	member.WelcomeSentAt = &sentAt
	return nil
}
