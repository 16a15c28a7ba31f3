package storage

import (
	"testing"
	"time"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/models"
)

func seedOrgWithContact(t *testing.T, store *MemoryStore) (*models.Organization, *models.Contact) {
	t.Helper()

	org := &models.Organization{Name: "Grace Chapel"}
	if err := store.CreateOrganization(org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	contact := &models.Contact{
		OrganizationID: org.ID,
		Name:           "Ada",
		Phone:          "15551234567",
		Category:       "First Timer",
		JoinDate:       time.Now(),
	}
	if err := store.CreateContact(contact); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	return org, contact
}

func pendingMessage(t *testing.T, store *MemoryStore, orgID, contactID string, scheduledFor time.Time) *models.Message {
	t.Helper()

	msg := &models.Message{
		OrganizationID: orgID,
		ContactID:      contactID,
		Content:        "Hello!",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &scheduledFor,
	}
	if err := store.CreateMessage(msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return msg
}

func TestTransitionMessageStatus(t *testing.T) {
	store := NewMemoryStore()
	org, contact := seedOrgWithContact(t, store)
	now := time.Now()
	msg := pendingMessage(t, store, org.ID, contact.ID, now)

	// Pending -> Sent records the provider ID and sent time.
	if err := store.TransitionMessageStatus(org.ID, msg.ID, models.MessageStatusSent, "wamid.1", "", now); err != nil {
		t.Fatalf("Pending->Sent: %v", err)
	}
	got, _ := store.GetMessage(org.ID, msg.ID)
	if got.Status != models.MessageStatusSent {
		t.Fatalf("status = %q, want Sent", got.Status)
	}
	if got.WhatsAppMessageID != "wamid.1" {
		t.Errorf("whatsapp message id = %q, want wamid.1", got.WhatsAppMessageID)
	}
	if got.SentAt == nil {
		t.Error("SentAt not set on Sent transition")
	}

	// A duplicate report of the same status is a no-op, not an error.
	if err := store.TransitionMessageStatus(org.ID, msg.ID, models.MessageStatusSent, "wamid.2", "", now); err != nil {
		t.Fatalf("duplicate Sent report: %v", err)
	}
	got, _ = store.GetMessage(org.ID, msg.ID)
	if got.WhatsAppMessageID != "wamid.1" {
		t.Errorf("duplicate report overwrote provider id: %q", got.WhatsAppMessageID)
	}

	// Sent -> Failed contradicts the settled outcome.
	err := store.TransitionMessageStatus(org.ID, msg.ID, models.MessageStatusFailed, "", "boom", now)
	if !apperrors.IsStatusConflict(err) {
		t.Fatalf("Sent->Failed error = %v, want StatusConflictError", err)
	}

	// Sent -> Read is a legal delivery progression.
	if err := store.TransitionMessageStatus(org.ID, msg.ID, models.MessageStatusRead, "", "", now); err != nil {
		t.Fatalf("Sent->Read: %v", err)
	}

	// Read is terminal.
	err = store.TransitionMessageStatus(org.ID, msg.ID, models.MessageStatusDelivered, "", "", now)
	if !apperrors.IsStatusConflict(err) {
		t.Fatalf("Read->Delivered error = %v, want StatusConflictError", err)
	}
}

func TestTransitionMessageStatusCrossTenant(t *testing.T) {
	store := NewMemoryStore()
	org, contact := seedOrgWithContact(t, store)
	other := &models.Organization{Name: "Other Church"}
	if err := store.CreateOrganization(other); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	msg := pendingMessage(t, store, org.ID, contact.ID, time.Now())

	err := store.TransitionMessageStatus(other.ID, msg.ID, models.MessageStatusSent, "", "", time.Now())
	if !apperrors.IsNotFound(err) {
		t.Fatalf("cross-tenant transition error = %v, want NotFoundError", err)
	}
	got, _ := store.GetMessage(org.ID, msg.ID)
	if got.Status != models.MessageStatusPending {
		t.Errorf("cross-tenant attempt changed status to %q", got.Status)
	}
}

func TestClaimForDispatch(t *testing.T) {
	store := NewMemoryStore()
	org, contact := seedOrgWithContact(t, store)
	now := time.Now()
	msg := pendingMessage(t, store, org.ID, contact.ID, now)

	claimed, err := store.ClaimForDispatch(msg.ID, now)
	if err != nil || !claimed {
		t.Fatalf("first claim = (%v, %v), want (true, nil)", claimed, err)
	}

	// A second claim inside the timeout loses.
	claimed, err = store.ClaimForDispatch(msg.ID, now.Add(time.Minute))
	if err != nil || claimed {
		t.Fatalf("second claim = (%v, %v), want (false, nil)", claimed, err)
	}

	// After the claim goes stale the message is reclaimable.
	claimed, err = store.ClaimForDispatch(msg.ID, now.Add(ClaimTimeout+time.Second))
	if err != nil || !claimed {
		t.Fatalf("stale reclaim = (%v, %v), want (true, nil)", claimed, err)
	}

	// A resolved message can never be claimed again.
	if err := store.TransitionMessageStatus(org.ID, msg.ID, models.MessageStatusSent, "", "", now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	claimed, err = store.ClaimForDispatch(msg.ID, now.Add(time.Hour))
	if err != nil || claimed {
		t.Fatalf("claim on Sent = (%v, %v), want (false, nil)", claimed, err)
	}
}

func TestCreateOutboundIfNoneSince(t *testing.T) {
	store := NewMemoryStore()
	org, contact := seedOrgWithContact(t, store)
	midnight := time.Now().Truncate(24 * time.Hour)

	first := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        "Day 1",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
	}
	created, err := store.CreateOutboundIfNoneSince(first, midnight)
	if err != nil || !created {
		t.Fatalf("first insert = (%v, %v), want (true, nil)", created, err)
	}

	second := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        "Day 1 again",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
	}
	created, err = store.CreateOutboundIfNoneSince(second, midnight)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Fatal("dedupe guard allowed a second message for the same day")
	}

	messages, err := store.ListMessages(org.ID, MessageFilter{ContactID: contact.ID})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("message count = %d, want 1", len(messages))
	}
}

func TestGetPendingForBridge(t *testing.T) {
	store := NewMemoryStore()
	org, contact := seedOrgWithContact(t, store)
	now := time.Now()

	oldest := pendingMessage(t, store, org.ID, contact.ID, now.Add(-2*time.Hour))
	oldest.CreatedAt = now.Add(-2 * time.Hour)
	middle := pendingMessage(t, store, org.ID, contact.ID, now.Add(-time.Hour))
	middle.CreatedAt = now.Add(-time.Hour)

	// Scheduled in the future: invisible until its time arrives.
	future := pendingMessage(t, store, org.ID, contact.ID, now.Add(time.Hour))
	future.CreatedAt = now

	// Already resolved: never handed out again.
	resolved := pendingMessage(t, store, org.ID, contact.ID, now.Add(-3*time.Hour))
	if err := store.TransitionMessageStatus(org.ID, resolved.ID, models.MessageStatusSent, "", "", now); err != nil {
		t.Fatalf("transition: %v", err)
	}

	pending, err := store.GetPendingForBridge(org.ID, now, BridgeBatchSize)
	if err != nil {
		t.Fatalf("GetPendingForBridge: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending count = %d, want 2", len(pending))
	}
	if pending[0].Message.ID != oldest.ID || pending[1].Message.ID != middle.ID {
		t.Error("pending batch not in oldest-first order")
	}
	if pending[0].Phone != contact.Phone {
		t.Errorf("phone = %q, want %q", pending[0].Phone, contact.Phone)
	}

	// Polling is read-only: the same batch comes back until a report lands.
	again, err := store.GetPendingForBridge(org.ID, now, BridgeBatchSize)
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("second poll count = %d, want 2", len(again))
	}

	// Limit caps the batch.
	capped, err := store.GetPendingForBridge(org.ID, now, 1)
	if err != nil {
		t.Fatalf("capped poll: %v", err)
	}
	if len(capped) != 1 || capped[0].Message.ID != oldest.ID {
		t.Fatal("limit did not keep the oldest message")
	}
}

func TestGetUserByCodePrefix(t *testing.T) {
	store := NewMemoryStore()
	org, _ := seedOrgWithContact(t, store)

	user := &models.User{
		ID:             "a1b2c3d4-0000-0000-0000-000000000000",
		Email:          "pastor@example.com",
		HashedPassword: "x",
		OrganizationID: org.ID,
	}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// The connection code is the uppercased ID prefix; lookup ignores case.
	got, err := store.GetUserByCodePrefix(user.ConnectionCode())
	if err != nil {
		t.Fatalf("uppercase code: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("resolved user %s, want %s", got.ID, user.ID)
	}
	if _, err := store.GetUserByCodePrefix("a1b2c3d4"); err != nil {
		t.Fatalf("lowercase code: %v", err)
	}

	if _, err := store.GetUserByCodePrefix("ffffffff"); err != apperrors.ErrInvalidConnectionCode {
		t.Fatalf("unknown code error = %v, want ErrInvalidConnectionCode", err)
	}
	if _, err := store.GetUserByCodePrefix(""); err != apperrors.ErrInvalidConnectionCode {
		t.Fatalf("empty code error = %v, want ErrInvalidConnectionCode", err)
	}

	// Wildcard characters are not a skeleton key.
	for _, code := range []string{"%", "_", "a1b2%"} {
		if _, err := store.GetUserByCodePrefix(code); err != apperrors.ErrInvalidConnectionCode {
			t.Fatalf("code %q error = %v, want ErrInvalidConnectionCode", code, err)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a1b2c3d4", "a1b2c3d4"},
		{"%", `\%`},
		{"_", `\_`},
		{`a%b_c\`, `a\%b\_c\\`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCountActiveOutbound(t *testing.T) {
	store := NewMemoryStore()
	org, contact := seedOrgWithContact(t, store)
	now := time.Now()

	statuses := []string{
		models.MessageStatusPending,
		models.MessageStatusSent,
		models.MessageStatusDelivered,
		models.MessageStatusRead,
		models.MessageStatusFailed,
	}
	for _, status := range statuses {
		msg := &models.Message{
			OrganizationID: org.ID,
			ContactID:      contact.ID,
			Content:        "x",
			Type:           models.MessageTypeOutbound,
			Status:         status,
			ScheduledFor:   &now,
		}
		if err := store.CreateMessage(msg); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	count, err := store.CountActiveOutbound(contact.ID)
	if err != nil {
		t.Fatalf("CountActiveOutbound: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4 (Failed excluded)", count)
	}
}

func TestWelcomeQueue(t *testing.T) {
	store := NewMemoryStore()
	org, _ := seedOrgWithContact(t, store)
	now := time.Now()

	group := &models.Group{
		OrganizationID:     org.ID,
		WhatsAppGroupID:    "123@g.us",
		Name:               "Youth",
		AutoWelcomeEnabled: true,
	}
	if err := store.CreateGroup(group); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	fresh := &models.GroupMember{GroupID: group.ID, WhatsAppID: "111@c.us", Name: "Ben", JoinedAt: now}
	stale := &models.GroupMember{GroupID: group.ID, WhatsAppID: "222@c.us", Name: "Old", JoinedAt: now.Add(-time.Hour)}
	for _, member := range []*models.GroupMember{fresh, stale} {
		if err := store.CreateGroupMember(member); err != nil {
			t.Fatalf("CreateGroupMember: %v", err)
		}
	}

	queue, err := store.GetWelcomeQueue(org.ID, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("GetWelcomeQueue: %v", err)
	}
	if len(queue) != 1 || queue[0].Member.ID != fresh.ID {
		t.Fatalf("queue = %d entries, want just the fresh join", len(queue))
	}

	if err := store.MarkWelcomeSent(org.ID, fresh.ID, now); err != nil {
		t.Fatalf("MarkWelcomeSent: %v", err)
	}
	queue, err = store.GetWelcomeQueue(org.ID, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("second GetWelcomeQueue: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue still has %d entries after welcome sent", len(queue))
	}
}
