package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/services"
)

// RunDailyWorkflows walks every active contact and queues at most one drip
// campaign message each. Returns how many messages were generated. One
// contact's failure never aborts the rest of the run.
func (s *Scheduler) RunDailyWorkflows() int {
	contacts, err := s.store.GetActiveContacts()
	if err != nil {
		log.Printf("Error loading active contacts for workflow run: %v", err)
		return 0
	}

	generated := 0
	for _, contact := range contacts {
		created, err := s.processContactWorkflow(contact)
		if err != nil {
			log.Printf("Error processing workflow for contact %s: %v", contact.ID, err)
			continue
		}
		if created {
			generated++
		}
	}
	return generated
}

// processContactWorkflow applies the catch-up policy for one contact: advance
// exactly one step per run, never more, regardless of how many runs were
// missed.
func (s *Scheduler) processContactWorkflow(contact *models.Contact) (bool, error) {
	steps, err := s.store.GetWorkflowSteps(contact.OrganizationID, contact.Category)
	if err != nil {
		return false, err
	}
	if len(steps) == 0 {
		return false, nil
	}

	// The catch-up index: in-flight or delivered outbound messages. The
	// day-zero message created at contact registration occupies the day-zero
	// ordinal, so the next unsent step is simply steps[sentCount].
	sentCount, err := s.store.CountActiveOutbound(contact.ID)
	if err != nil {
		return false, err
	}
	if sentCount >= len(steps) {
		// Campaign complete
		return false, nil
	}

	step := steps[sentCount]
	if step.Day == 0 {
		// Day 0 belongs to the contact-creation trigger, never to the daily run.
		next := sentCount + 1
		if next >= len(steps) {
			return false, nil
		}
		step = steps[next]
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// At most one workflow message per contact per day, even if the run is
	// triggered twice.
	sentToday, err := s.store.HasOutboundSince(contact.ID, midnight)
	if err != nil {
		return false, err
	}
	if sentToday {
		return false, nil
	}

	org, err := s.store.GetOrganization(contact.OrganizationID)
	if err != nil {
		return false, err
	}

	content := s.generator.Generate(org, services.GenerateParams{
		ContactName:      contact.Name,
		ContactCategory:  contact.Category,
		Context:          fmt.Sprintf("Workflow Step: %s\nPrompt: %s", step.Title, step.Prompt),
		Tone:             "encouraging",
		SenderName:       "Pastor",
		OrganizationName: org.Name,
	})

	scheduledFor := now
	msg := &models.Message{
		OrganizationID: contact.OrganizationID,
		ContactID:      contact.ID,
		Content:        content,
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &scheduledFor,
		CreatedAt:      now,
	}

	// The conditional insert re-checks the dedupe guard atomically; a
	// concurrent run for the same contact loses quietly.
	created, err := s.store.CreateOutboundIfNoneSince(msg, midnight)
	if err != nil {
		return false, err
	}
	if created {
		log.Printf("📬 Queued workflow step %q (day %d) for contact %s", step.Title, step.Day, contact.ID)
	}
	return created, nil
}
