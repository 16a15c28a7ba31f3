package handlers

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/services"
	"github.com/teleiosites/shepherd-backend/internal/storage"
	"github.com/teleiosites/shepherd-backend/internal/utils"
)

// WhatsAppHandler serves the dashboard's direct send endpoints. Every send is
// recorded as a message row; whether it leaves immediately depends on the
// organization's delivery channel.
type WhatsAppHandler struct {
	store storage.Store
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(store storage.Store) *WhatsAppHandler {
	return &WhatsAppHandler{store: store}
}

type sendRequest struct {
	ContactID string `json:"contact_id"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`

	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
	Filename  string `json:"filename"`
}

// SendMessage sends a text message to a contact. On the push channel the
// Meta API is called synchronously and the recorded message lands as Sent or
// Failed; on the poll channel it is queued Pending for the bridge.
func (h *WhatsAppHandler) SendMessage(c *fiber.Ctx) error {
	return h.send(c, false)
}

// SendMedia sends a media message (image, document, video or audio) by URL.
func (h *WhatsAppHandler) SendMedia(c *fiber.Ctx) error {
	return h.send(c, true)
}

func (h *WhatsAppHandler) send(c *fiber.Ctx, media bool) error {
	user := middleware.CurrentUser(c)

	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if media && req.MediaURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "media_url is required",
		})
	}
	if !media && req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	contact, err := h.resolveContact(user.OrganizationID, req.ContactID, req.Phone)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	org, err := h.store.GetOrganization(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load organization",
		})
	}

	now := time.Now()
	msg := &models.Message{
		OrganizationID: org.ID,
		ContactID:      contact.ID,
		Content:        req.Message,
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &now,
		CreatedBy:      &user.ID,
	}
	if media {
		msg.AttachmentURL = req.MediaURL
		msg.AttachmentType = req.MediaType
		msg.AttachmentName = req.Filename
	}
	if err := h.store.CreateMessage(msg); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record message",
		})
	}

	channel := services.RouteChannel(org)
	push, isPush := channel.(*services.PushChannel)
	if !isPush {
		// Poll channel: the message waits for the bridge's next poll.
		return c.JSON(fiber.Map{
			"success":    true,
			"channel":    services.ChannelPoll,
			"status":     models.MessageStatusPending,
			"message_id": msg.ID,
			"note":       "Queued for delivery via WhatsApp bridge",
		})
	}

	claimed, err := h.store.ClaimForDispatch(msg.ID, now)
	if err != nil || !claimed {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to claim message for sending",
		})
	}

	var result *services.SendResult
	if media {
		result = push.Meta.SendMedia(contact.Phone, req.MediaType, req.MediaURL, req.Message, req.Filename)
	} else {
		result = push.Meta.SendMessage(contact.Phone, req.Message)
	}

	status := models.MessageStatusSent
	if !result.Success {
		status = models.MessageStatusFailed
	}
	if err := h.store.TransitionMessageStatus(org.ID, msg.ID, status, result.MessageID, result.Error, time.Now()); err != nil {
		log.Printf("Error recording send outcome for message %s: %v", msg.ID, err)
	}

	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success":    false,
			"channel":    services.ChannelPush,
			"status":     models.MessageStatusFailed,
			"message_id": msg.ID,
			"error":      result.Error,
		})
	}
	return c.JSON(fiber.Map{
		"success":             true,
		"channel":             services.ChannelPush,
		"status":              models.MessageStatusSent,
		"message_id":          msg.ID,
		"whatsapp_message_id": result.MessageID,
	})
}

func (h *WhatsAppHandler) resolveContact(orgID, contactID, phone string) (*models.Contact, error) {
	if contactID != "" {
		return h.store.GetContact(orgID, contactID)
	}
	if phone == "" {
		return nil, apperrors.NewNotFound("contact", "")
	}
	return h.store.GetContactByPhone(orgID, utils.NormalizePhone(phone))
}

// GetStatus reports the organization's active delivery channel and its
// connection state.
func (h *WhatsAppHandler) GetStatus(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	org, err := h.store.GetOrganization(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load organization",
		})
	}

	channel := services.RouteChannel(org)
	if push, ok := channel.(*services.PushChannel); ok {
		status := push.Meta.GetStatus()
		status["channel"] = services.ChannelPush
		return c.JSON(status)
	}
	poll := channel.(*services.PollChannel)
	status := services.NewWPPConnectService(poll.BridgeURL).GetStatus()
	status["channel"] = services.ChannelPoll
	return c.JSON(status)
}

// VerifyWebhook answers Meta's webhook verification handshake.
func (h *WhatsAppHandler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == os.Getenv("WHATSAPP_VERIFY_TOKEN") {
		return c.SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// ReceiveWebhook accepts Meta Cloud API event deliveries. Inbound messages
// and receipt processing are not wired to the campaign flow yet; events are
// acknowledged so Meta does not retry.
func (h *WhatsAppHandler) ReceiveWebhook(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := c.BodyParser(&payload); err != nil {
		return c.SendStatus(fiber.StatusOK)
	}
	log.Printf("📥 Webhook event received (object=%v)", payload["object"])
	return c.SendStatus(fiber.StatusOK)
}
