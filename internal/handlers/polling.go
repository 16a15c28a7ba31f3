package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/storage"
	"github.com/teleiosites/shepherd-backend/internal/utils"
)

// welcomeWindow is how far back the welcome queue looks for new group
// members. Joins older than this are assumed handled or stale.
const welcomeWindow = 5 * time.Minute

// defaultWelcomeTemplate greets members of groups that enable auto-welcome
// without setting their own text.
const defaultWelcomeTemplate = "Welcome to {{group_name}}!"

// PollingHandler serves the endpoints a WPPConnect bridge polls. Every route
// here is authenticated by connection code, not by JWT; the resolved user's
// organization scopes all queries.
type PollingHandler struct {
	store storage.Store
}

// NewPollingHandler creates a new polling handler
func NewPollingHandler(store storage.Store) *PollingHandler {
	return &PollingHandler{store: store}
}

// GetPendingMessages hands the bridge its next batch of queued outbound
// messages, oldest first. The read has no side effects: a message leaves the
// queue only when the bridge reports an outcome, so a crashed bridge sees the
// same batch again on its next poll.
func (h *PollingHandler) GetPendingMessages(c *fiber.Ctx) error {
	user := middleware.BridgeUser(c)

	pending, err := h.store.GetPendingForBridge(user.OrganizationID, time.Now(), storage.BridgeBatchSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load pending messages",
		})
	}

	messages := make([]fiber.Map, 0, len(pending))
	for _, p := range pending {
		messages = append(messages, fiber.Map{
			"id":              p.Message.ID,
			"contact_id":      p.Message.ContactID,
			"phone":           p.Phone,
			"content":         p.Message.Content,
			"attachment_url":  p.Message.AttachmentURL,
			"attachment_type": p.Message.AttachmentType,
			"attachment_name": p.Message.AttachmentName,
			"created_at":      p.Message.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(messages),
		"messages": messages,
	})
}

// UpdateMessageStatus records the bridge's delivery outcome for one message.
// A repeated report of the same status is acknowledged without effect; a
// report that contradicts an already-settled outcome is rejected with 409.
func (h *PollingHandler) UpdateMessageStatus(c *fiber.Ctx) error {
	user := middleware.BridgeUser(c)

	var req struct {
		MessageID         string `json:"message_id"`
		Status            string `json:"status"`
		WhatsAppMessageID string `json:"whatsapp_message_id"`
		Error             string `json:"error"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.MessageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message_id is required",
		})
	}

	status, ok := parseReportedStatus(req.Status)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status must be one of: sent, failed, delivered, read",
		})
	}

	err := h.store.TransitionMessageStatus(user.OrganizationID, req.MessageID, status, req.WhatsAppMessageID, req.Error, time.Now())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Message not found",
			})
		}
		if apperrors.IsStatusConflict(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update message status",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message_id": req.MessageID,
		"status":     status,
	})
}

// parseReportedStatus maps the bridge's lowercase status words onto message
// statuses.
func parseReportedStatus(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sent":
		return models.MessageStatusSent, true
	case "failed":
		return models.MessageStatusFailed, true
	case "delivered":
		return models.MessageStatusDelivered, true
	case "read":
		return models.MessageStatusRead, true
	}
	return "", false
}

// GetWelcomeQueue lists recently joined members of auto-welcome groups who
// have not been greeted yet, with the welcome text already rendered.
func (h *PollingHandler) GetWelcomeQueue(c *fiber.Ctx) error {
	user := middleware.BridgeUser(c)

	since := time.Now().Add(-welcomeWindow)
	candidates, err := h.store.GetWelcomeQueue(user.OrganizationID, since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load welcome queue",
		})
	}

	welcomes := make([]fiber.Map, 0, len(candidates))
	for _, cand := range candidates {
		welcomes = append(welcomes, fiber.Map{
			"member_id":   cand.Member.ID,
			"whatsapp_id": cand.Member.WhatsAppID,
			"phone":       utils.PhoneFromWhatsAppID(cand.Member.WhatsAppID),
			"group_id":    cand.Group.WhatsAppGroupID,
			"group_name":  cand.Group.Name,
			"message":     renderWelcome(cand),
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(welcomes),
		"welcomes": welcomes,
	})
}

// MarkWelcomeSent records that the bridge delivered a welcome, removing the
// member from subsequent queue polls.
func (h *PollingHandler) MarkWelcomeSent(c *fiber.Ctx) error {
	user := middleware.BridgeUser(c)
	memberID := c.Params("memberID")

	if err := h.store.MarkWelcomeSent(user.OrganizationID, memberID, time.Now()); err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Group member not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to mark welcome as sent",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"member_id": memberID,
	})
}

func renderWelcome(cand models.WelcomeCandidate) string {
	template := cand.Group.WelcomeMessageTemplate
	if template == "" {
		template = defaultWelcomeTemplate
	}
	name := cand.Member.Name
	if name == "" {
		name = "there"
	}
	text := strings.ReplaceAll(template, "{{name}}", name)
	return strings.ReplaceAll(text, "{{group_name}}", cand.Group.Name)
}
