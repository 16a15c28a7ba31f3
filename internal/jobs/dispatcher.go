package jobs

import (
	"log"

	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/services"
)

// DispatchDueMessages promotes pending messages whose scheduled time has
// arrived. Push-routed messages are claimed and sent synchronously through
// the Meta Cloud API. Poll-routed messages stay Pending: reaching their
// scheduled time already makes them visible to the bridge, and only the
// bridge's status report moves them out of Pending. Returns how many
// messages were resolved (Sent or Failed) this pass.
func (s *Scheduler) DispatchDueMessages() int {
	now := s.now()
	due, err := s.store.GetDueMessages(now)
	if err != nil {
		log.Printf("Error loading due messages: %v", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	orgs := make(map[string]*models.Organization)
	resolved := 0
	for _, msg := range due {
		org, ok := orgs[msg.OrganizationID]
		if !ok {
			loaded, err := s.store.GetOrganization(msg.OrganizationID)
			if err != nil {
				log.Printf("Error loading organization %s for message %s: %v", msg.OrganizationID, msg.ID, err)
				continue
			}
			org = loaded
			orgs[org.ID] = org
		}

		// Routing is re-evaluated on every pass so configuration changes
		// take effect immediately.
		channel := services.RouteChannel(org)
		push, isPush := channel.(*services.PushChannel)
		if !isPush {
			continue
		}

		if s.dispatchPush(push, msg) {
			resolved++
		}
	}
	return resolved
}

// dispatchPush claims one message and resolves it against the Meta Cloud
// API. A failed claim means another dispatcher instance owns the message.
func (s *Scheduler) dispatchPush(channel *services.PushChannel, msg *models.Message) bool {
	now := s.now()
	claimed, err := s.store.ClaimForDispatch(msg.ID, now)
	if err != nil {
		log.Printf("Error claiming message %s: %v", msg.ID, err)
		return false
	}
	if !claimed {
		return false
	}

	contact, err := s.store.GetContact(msg.OrganizationID, msg.ContactID)
	if err != nil {
		log.Printf("Error loading contact for message %s: %v", msg.ID, err)
		return false
	}

	var result *services.SendResult
	if msg.AttachmentURL != "" {
		result = channel.Meta.SendMedia(contact.Phone, msg.AttachmentType, msg.AttachmentURL, msg.Content, msg.AttachmentName)
	} else {
		result = channel.Meta.SendMessage(contact.Phone, msg.Content)
	}

	status := models.MessageStatusSent
	if !result.Success {
		status = models.MessageStatusFailed
	}
	err = s.store.TransitionMessageStatus(msg.OrganizationID, msg.ID, status, result.MessageID, result.Error, s.now())
	if err != nil {
		log.Printf("Error updating message %s after push send: %v", msg.ID, err)
		return false
	}
	if result.Success {
		log.Printf("✅ Message %s sent via Meta (provider id %s)", msg.ID, result.MessageID)
	} else {
		log.Printf("❌ Message %s failed via Meta: %s", msg.ID, result.Error)
	}
	return true
}
