package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

// MessageHandler serves the dashboard's message history and manual queueing.
type MessageHandler struct {
	store storage.Store
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(store storage.Store) *MessageHandler {
	return &MessageHandler{store: store}
}

// ListMessages returns messages filtered by the optional contact_id, status,
// type, limit and offset query parameters, newest first.
func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	filter := storage.MessageFilter{
		ContactID: c.Query("contact_id"),
		Status:    c.Query("status"),
		Type:      c.Query("type"),
		Limit:     c.QueryInt("limit", 100),
		Offset:    c.QueryInt("offset", 0),
	}

	messages, err := h.store.ListMessages(user.OrganizationID, filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve messages",
		})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetMessage retrieves one message by ID.
func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	msg, err := h.store.GetMessage(user.OrganizationID, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Message not found",
		})
	}
	return c.JSON(msg)
}

// CreateMessage queues an outbound message, optionally scheduled for later.
// A future scheduled_for keeps the message invisible to both the dispatcher
// and the bridge until its time arrives.
func (h *MessageHandler) CreateMessage(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req models.MessageCreate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ContactID == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Contact ID and content are required",
		})
	}

	if _, err := h.store.GetContact(user.OrganizationID, req.ContactID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageTypeOutbound
	}
	scheduledFor := req.ScheduledFor
	if scheduledFor == nil {
		now := time.Now()
		scheduledFor = &now
	}

	msg := &models.Message{
		OrganizationID: user.OrganizationID,
		ContactID:      req.ContactID,
		Content:        req.Content,
		Type:           msgType,
		Status:         models.MessageStatusPending,
		ScheduledFor:   scheduledFor,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
		AttachmentName: req.AttachmentName,
		CreatedBy:      &user.ID,
	}
	if err := h.store.CreateMessage(msg); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create message",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}
