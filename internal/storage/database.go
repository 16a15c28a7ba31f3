package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/models"
)

// DatabaseStore is the PostgreSQL-backed store.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store over an open GORM connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound(entity, id)
	}
	return err
}

// User operations

func (d *DatabaseStore) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return d.db.Create(user).Error
}

func (d *DatabaseStore) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return &user, nil
}

func (d *DatabaseStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		return nil, notFoundOr(err, "user", email)
	}
	return &user, nil
}

// escapeLike neutralizes LIKE wildcards so the pairing code is always
// matched as a literal prefix.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return replacer.Replace(s)
}

func (d *DatabaseStore) GetUserByCodePrefix(code string) (*models.User, error) {
	if code == "" {
		return nil, apperrors.ErrInvalidConnectionCode
	}
	var user models.User
	err := d.db.First(&user, "LOWER(id::text) LIKE ?", escapeLike(strings.ToLower(code))+"%").Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidConnectionCode
		}
		return nil, err
	}
	return &user, nil
}

// Organization operations

func (d *DatabaseStore) CreateOrganization(org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	return d.db.Create(org).Error
}

func (d *DatabaseStore) GetOrganization(id string) (*models.Organization, error) {
	var org models.Organization
	if err := d.db.First(&org, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "organization", id)
	}
	return &org, nil
}

func (d *DatabaseStore) UpdateOrganization(org *models.Organization) error {
	return d.db.Save(org).Error
}

// Contact operations

func (d *DatabaseStore) CreateContact(contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	if contact.Status == "" {
		contact.Status = models.ContactStatusActive
	}
	return d.db.Create(contact).Error
}

func (d *DatabaseStore) GetContact(orgID, id string) (*models.Contact, error) {
	var contact models.Contact
	err := d.db.First(&contact, "id = ? AND organization_id = ?", id, orgID).Error
	if err != nil {
		return nil, notFoundOr(err, "contact", id)
	}
	return &contact, nil
}

func (d *DatabaseStore) GetContactByPhone(orgID, phone string) (*models.Contact, error) {
	var contact models.Contact
	err := d.db.First(&contact, "organization_id = ? AND phone = ?", orgID, phone).Error
	if err != nil {
		return nil, notFoundOr(err, "contact", phone)
	}
	return &contact, nil
}

func (d *DatabaseStore) ListContacts(orgID string) ([]*models.Contact, error) {
	var contacts []*models.Contact
	err := d.db.Where("organization_id = ?", orgID).Order("created_at ASC").Find(&contacts).Error
	return contacts, err
}

func (d *DatabaseStore) GetActiveContacts() ([]*models.Contact, error) {
	var contacts []*models.Contact
	err := d.db.Where("status = ?", models.ContactStatusActive).Order("created_at ASC").Find(&contacts).Error
	return contacts, err
}

func (d *DatabaseStore) UpdateContact(contact *models.Contact) error {
	return d.db.Save(contact).Error
}

// Workflow step operations

func (d *DatabaseStore) CreateWorkflowStep(step *models.WorkflowStep) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	return d.db.Create(step).Error
}

func (d *DatabaseStore) GetWorkflowSteps(orgID, category string) ([]*models.WorkflowStep, error) {
	var steps []*models.WorkflowStep
	err := d.db.
		Where("organization_id = ? AND LOWER(category) = LOWER(?)", orgID, category).
		Order("day ASC").
		Find(&steps).Error
	return steps, err
}

func (d *DatabaseStore) GetDayZeroStep(orgID, category string) (*models.WorkflowStep, error) {
	var step models.WorkflowStep
	err := d.db.First(&step,
		"organization_id = ? AND LOWER(category) = LOWER(?) AND day = 0", orgID, category).Error
	if err != nil {
		return nil, notFoundOr(err, "workflow step", category+"/day 0")
	}
	return &step, nil
}

func (d *DatabaseStore) ListWorkflowSteps(orgID string) ([]*models.WorkflowStep, error) {
	var steps []*models.WorkflowStep
	err := d.db.Where("organization_id = ?", orgID).Order("category ASC, day ASC").Find(&steps).Error
	return steps, err
}

func (d *DatabaseStore) DeleteWorkflowStep(orgID, id string) error {
	res := d.db.Where("id = ? AND organization_id = ?", id, orgID).Delete(&models.WorkflowStep{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("workflow step", id)
	}
	return nil
}

// Message operations

func (d *DatabaseStore) CreateMessage(msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	return d.db.Create(msg).Error
}

func (d *DatabaseStore) CreateOutboundIfNoneSince(msg *models.Message, since time.Time) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	created := false
	err := d.db.Transaction(func(tx *gorm.DB) error {
		// Serialize concurrent scheduler runs for the same contact; plain
		// count-then-insert would race.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", msg.ContactID).Error; err != nil {
			return err
		}
		var count int64
		err := tx.Model(&models.Message{}).
			Where("contact_id = ? AND type = ? AND created_at >= ?",
				msg.ContactID, models.MessageTypeOutbound, since).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (d *DatabaseStore) HasOutboundSince(contactID string, since time.Time) (bool, error) {
	var count int64
	err := d.db.Model(&models.Message{}).
		Where("contact_id = ? AND type = ? AND created_at >= ?",
			contactID, models.MessageTypeOutbound, since).
		Count(&count).Error
	return count > 0, err
}

func (d *DatabaseStore) GetMessage(orgID, id string) (*models.Message, error) {
	var msg models.Message
	err := d.db.First(&msg, "id = ? AND organization_id = ?", id, orgID).Error
	if err != nil {
		return nil, notFoundOr(err, "message", id)
	}
	return &msg, nil
}

func (d *DatabaseStore) ListMessages(orgID string, filter MessageFilter) ([]*models.Message, error) {
	query := d.db.Where("organization_id = ?", orgID)
	if filter.ContactID != "" {
		query = query.Where("contact_id = ?", filter.ContactID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var messages []*models.Message
	err := query.Order("created_at DESC").Find(&messages).Error
	return messages, err
}

func (d *DatabaseStore) GetPendingForBridge(orgID string, now time.Time, limit int) ([]models.PendingDelivery, error) {
	var pending []models.Message
	err := d.db.
		Where("organization_id = ? AND type = ? AND status = ?",
			orgID, models.MessageTypeOutbound, models.MessageStatusPending).
		Where("scheduled_for IS NULL OR scheduled_for <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	contactIDs := make([]string, 0, len(pending))
	for _, msg := range pending {
		contactIDs = append(contactIDs, msg.ContactID)
	}
	var contacts []models.Contact
	if err := d.db.Where("id IN ?", contactIDs).Find(&contacts).Error; err != nil {
		return nil, err
	}
	phones := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		phones[contact.ID] = contact.Phone
	}

	deliveries := make([]models.PendingDelivery, 0, len(pending))
	for _, msg := range pending {
		phone, ok := phones[msg.ContactID]
		if !ok {
			continue
		}
		deliveries = append(deliveries, models.PendingDelivery{Message: msg, Phone: phone})
	}
	return deliveries, nil
}

func (d *DatabaseStore) GetDueMessages(now time.Time) ([]*models.Message, error) {
	var due []*models.Message
	err := d.db.
		Where("type = ? AND status = ?", models.MessageTypeOutbound, models.MessageStatusPending).
		Where("scheduled_for IS NOT NULL AND scheduled_for <= ?", now).
		Order("created_at ASC").
		Find(&due).Error
	return due, err
}

func (d *DatabaseStore) CountActiveOutbound(contactID string) (int, error) {
	var count int64
	err := d.db.Model(&models.Message{}).
		Where("contact_id = ? AND type = ? AND status IN ?",
			contactID, models.MessageTypeOutbound, []string{
				models.MessageStatusPending,
				models.MessageStatusSent,
				models.MessageStatusDelivered,
				models.MessageStatusRead,
			}).
		Count(&count).Error
	return int(count), err
}

func (d *DatabaseStore) ClaimForDispatch(id string, now time.Time) (bool, error) {
	res := d.db.Model(&models.Message{}).
		Where("id = ? AND status = ?", id, models.MessageStatusPending).
		Where("dispatched_at IS NULL OR dispatched_at < ?", now.Add(-ClaimTimeout)).
		Update("dispatched_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *DatabaseStore) TransitionMessageStatus(orgID, id, status, whatsappMessageID, errMsg string, now time.Time) error {
	// Conditional update: succeeds only while the message still holds the
	// status we read. One retry absorbs a lost race before reporting conflict.
	for attempt := 0; attempt < 2; attempt++ {
		var msg models.Message
		err := d.db.First(&msg, "id = ? AND organization_id = ?", id, orgID).Error
		if err != nil {
			return notFoundOr(err, "message", id)
		}
		if msg.Status == status {
			return nil
		}
		if !models.CanTransition(msg.Status, status) {
			return apperrors.NewStatusConflict(id, msg.Status, status)
		}

		updates := map[string]interface{}{"status": status}
		if whatsappMessageID != "" {
			updates["whatsapp_message_id"] = whatsappMessageID
		}
		if status == models.MessageStatusSent {
			updates["sent_at"] = now
		}
		if status == models.MessageStatusFailed && errMsg != "" {
			updates["error_message"] = errMsg
		}

		res := d.db.Model(&models.Message{}).
			Where("id = ? AND status = ?", id, msg.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}
	}
	return apperrors.NewStatusConflict(id, "unknown", status)
}

// Group operations

func (d *DatabaseStore) CreateGroup(group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	return d.db.Create(group).Error
}

func (d *DatabaseStore) ListGroups(orgID string) ([]*models.Group, error) {
	var groups []*models.Group
	err := d.db.Where("organization_id = ?", orgID).Order("created_at ASC").Find(&groups).Error
	return groups, err
}

func (d *DatabaseStore) GetGroupByWhatsAppID(orgID, whatsappGroupID string) (*models.Group, error) {
	var group models.Group
	err := d.db.Where("organization_id = ? AND whatsapp_group_id = ?", orgID, whatsappGroupID).First(&group).Error
	if err != nil {
		return nil, notFoundOr(err, "group", whatsappGroupID)
	}
	return &group, nil
}

func (d *DatabaseStore) UpdateGroup(group *models.Group) error {
	res := d.db.Model(&models.Group{}).Where("id = ?", group.ID).Updates(group)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("group", group.ID)
	}
	return nil
}

func (d *DatabaseStore) CreateGroupMember(member *models.GroupMember) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	return d.db.Create(member).Error
}

func (d *DatabaseStore) GetWelcomeQueue(orgID string, since time.Time) ([]models.WelcomeCandidate, error) {
	var members []models.GroupMember
	err := d.db.Model(&models.GroupMember{}).
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("groups.organization_id = ? AND groups.auto_welcome_enabled = ?", orgID, true).
		Where("group_members.joined_at >= ?", since).
		Where("group_members.left_at IS NULL AND group_members.welcome_sent_at IS NULL").
		Order("group_members.joined_at ASC").
		Find(&members).Error
	if err != nil || len(members) == 0 {
		return nil, err
	}

	groupIDs := make([]string, 0, len(members))
	for _, member := range members {
		groupIDs = append(groupIDs, member.GroupID)
	}
	var groups []models.Group
	if err := d.db.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Group, len(groups))
	for _, group := range groups {
		byID[group.ID] = group
	}

	queue := make([]models.WelcomeCandidate, 0, len(members))
	for _, member := range members {
		group, ok := byID[member.GroupID]
		if !ok {
			continue
		}
		queue = append(queue, models.WelcomeCandidate{Member: member, Group: group})
	}
	return queue, nil
}

func (d *DatabaseStore) MarkWelcomeSent(orgID, memberID string, now time.Time) error {
	res := d.db.Model(&models.GroupMember{}).
		Where("id = ? AND group_id IN (?)",
			memberID,
			d.db.Model(&models.Group{}).Select("id").Where("organization_id = ?", orgID)).
		Update("welcome_sent_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("group member", memberID)
	}
	return nil
}
