package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/services"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

type fakeGenerator struct{}

func (fakeGenerator) Generate(org *models.Organization, params services.GenerateParams) string {
	return "Hello " + params.ContactName
}

func newTestScheduler(store storage.Store, now time.Time) *Scheduler {
	s := NewScheduler(store, fakeGenerator{})
	s.now = func() time.Time { return now }
	return s
}

func seedCampaign(t *testing.T, store *storage.MemoryStore) (*models.Organization, *models.Contact) {
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
	for day, title := range map[int]string{0: "Welcome", 1: "Check In", 3: "Invite"} {
		step := &models.WorkflowStep{
			OrganizationID: org.ID,
			Category:       "First Timer",
			Day:            day,
			Title:          title,
			Prompt:         "Write something kind",
		}
		if err := store.CreateWorkflowStep(step); err != nil {
			t.Fatalf("CreateWorkflowStep: %v", err)
		}
	}
	return org, contact
}

func outboundCount(t *testing.T, store *storage.MemoryStore, orgID, contactID string) int {
	t.Helper()
	messages, err := store.ListMessages(orgID, storage.MessageFilter{ContactID: contactID})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	return len(messages)
}

func TestRunDailyWorkflowsSkipsDayZero(t *testing.T) {
	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)

	// No day-zero message exists (imported contact). The run must jump over
	// the Day 0 step rather than re-fire the creation trigger.
	s := newTestScheduler(store, time.Now())
	if got := s.RunDailyWorkflows(); got != 1 {
		t.Fatalf("generated = %d, want 1", got)
	}
	if n := outboundCount(t, store, org.ID, contact.ID); n != 1 {
		t.Fatalf("outbound messages = %d, want 1", n)
	}

	messages, _ := store.ListMessages(org.ID, storage.MessageFilter{ContactID: contact.ID})
	msg := messages[0]
	if msg.Status != models.MessageStatusPending {
		t.Errorf("queued message status = %q, want Pending", msg.Status)
	}
	if msg.Content != "Hello Ada" {
		t.Errorf("content = %q, want generated text", msg.Content)
	}
}

func TestRunDailyWorkflowsOncePerDay(t *testing.T) {
	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)
	s := newTestScheduler(store, time.Now())

	if got := s.RunDailyWorkflows(); got != 1 {
		t.Fatalf("first run generated = %d, want 1", got)
	}
	// Triggering the run again on the same day must not double-send.
	if got := s.RunDailyWorkflows(); got != 0 {
		t.Fatalf("second run generated = %d, want 0", got)
	}
	if n := outboundCount(t, store, org.ID, contact.ID); n != 1 {
		t.Fatalf("outbound messages = %d, want 1", n)
	}
}

func TestRunDailyWorkflowsCatchUpOneStepPerRun(t *testing.T) {
	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)

	// Day-zero already fired at contact creation.
	now := time.Now()
	dayZero := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        "Welcome!",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusSent,
		CreatedAt:      now.Add(-72 * time.Hour),
	}
	if err := store.CreateMessage(dayZero); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	// However many days were missed, each run advances exactly one step.
	day1 := now
	s := newTestScheduler(store, day1)
	if got := s.RunDailyWorkflows(); got != 1 {
		t.Fatalf("run 1 generated = %d, want 1", got)
	}

	day2 := now.Add(24 * time.Hour)
	s = newTestScheduler(store, day2)
	if got := s.RunDailyWorkflows(); got != 1 {
		t.Fatalf("run 2 generated = %d, want 1", got)
	}

	// Sequence exhausted: further runs are quiet.
	day3 := now.Add(48 * time.Hour)
	s = newTestScheduler(store, day3)
	if got := s.RunDailyWorkflows(); got != 0 {
		t.Fatalf("run 3 generated = %d, want 0", got)
	}
	if n := outboundCount(t, store, org.ID, contact.ID); n != 3 {
		t.Fatalf("total outbound = %d, want 3", n)
	}
}

func TestRunDailyWorkflowsIgnoresInactiveContacts(t *testing.T) {
	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)
	contact.Status = models.ContactStatusInactive
	if err := store.UpdateContact(contact); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}

	s := newTestScheduler(store, time.Now())
	if got := s.RunDailyWorkflows(); got != 0 {
		t.Fatalf("generated = %d, want 0 for inactive contact", got)
	}
	if n := outboundCount(t, store, org.ID, contact.ID); n != 0 {
		t.Fatalf("outbound messages = %d, want 0", n)
	}
}

func TestDispatchLeavesPollMessagesPending(t *testing.T) {
	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)

	// No Meta credentials: the organization is on the poll channel.
	now := time.Now()
	due := now.Add(-time.Minute)
	msg := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        "Queued",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &due,
	}
	if err := store.CreateMessage(msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	s := newTestScheduler(store, now)
	if got := s.DispatchDueMessages(); got != 0 {
		t.Fatalf("resolved = %d, want 0 on the poll channel", got)
	}

	got, _ := store.GetMessage(org.ID, msg.ID)
	if got.Status != models.MessageStatusPending {
		t.Fatalf("status = %q, want Pending (bridge owns delivery)", got.Status)
	}
	if got.DispatchedAt != nil {
		t.Error("poll-routed message must not be claimed")
	}
}

func TestDispatchSendsPushMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.test.1"}]}`))
	}))
	defer server.Close()
	t.Setenv("WHATSAPP_API_URL", server.URL)

	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)
	org.WhatsAppPhoneID = "12345"
	org.WhatsAppAccessToken = "token"
	if err := store.UpdateOrganization(org); err != nil {
		t.Fatalf("UpdateOrganization: %v", err)
	}

	now := time.Now()
	due := now.Add(-time.Minute)
	msg := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        "Hello",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &due,
	}
	if err := store.CreateMessage(msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	s := newTestScheduler(store, now)
	if got := s.DispatchDueMessages(); got != 1 {
		t.Fatalf("resolved = %d, want 1", got)
	}

	got, _ := store.GetMessage(org.ID, msg.ID)
	if got.Status != models.MessageStatusSent {
		t.Fatalf("status = %q, want Sent", got.Status)
	}
	if got.WhatsAppMessageID != "wamid.test.1" {
		t.Errorf("provider id = %q, want wamid.test.1", got.WhatsAppMessageID)
	}

	// Re-running the dispatcher finds nothing to do.
	if got := s.DispatchDueMessages(); got != 0 {
		t.Fatalf("second pass resolved = %d, want 0", got)
	}
}

func TestDispatchRecordsPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Recipient not on WhatsApp"}}`))
	}))
	defer server.Close()
	t.Setenv("WHATSAPP_API_URL", server.URL)

	store := storage.NewMemoryStore()
	org, contact := seedCampaign(t, store)
	org.WhatsAppPhoneID = "12345"
	org.WhatsAppAccessToken = "token"
	if err := store.UpdateOrganization(org); err != nil {
		t.Fatalf("UpdateOrganization: %v", err)
	}

	now := time.Now()
	due := now.Add(-time.Minute)
	msg := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        "Hello",
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &due,
	}
	if err := store.CreateMessage(msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	s := newTestScheduler(store, now)
	if got := s.DispatchDueMessages(); got != 1 {
		t.Fatalf("resolved = %d, want 1 (failure is a resolution)", got)
	}

	got, _ := store.GetMessage(org.ID, msg.ID)
	if got.Status != models.MessageStatusFailed {
		t.Fatalf("status = %q, want Failed", got.Status)
	}
	if got.ErrorMessage != "Recipient not on WhatsApp" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	store := storage.NewMemoryStore()
	s := NewScheduler(store, fakeGenerator{})
	s.dispatchInterval = 10 * time.Millisecond

	s.Start()
	s.Start() // second Start is a no-op
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop() // second Stop is a no-op
}
