package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/services"
	"github.com/teleiosites/shepherd-backend/internal/storage"
	"github.com/teleiosites/shepherd-backend/internal/utils"
)

// ContactHandler handles contact CRUD. Creating a contact also fires the
// category's day-zero workflow step, so new members get their first message
// without waiting for the next daily run.
type ContactHandler struct {
	store     storage.Store
	generator services.Generator
}

// NewContactHandler creates a new contact handler
func NewContactHandler(store storage.Store, generator services.Generator) *ContactHandler {
	return &ContactHandler{store: store, generator: generator}
}

// CreateContact registers a new contact and queues the day-zero welcome
// message when the category defines one.
func (h *ContactHandler) CreateContact(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req models.ContactCreate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" || req.Phone == "" || req.Category == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name, phone and category are required",
		})
	}

	phone := utils.NormalizePhone(req.Phone)
	if _, err := h.store.GetContactByPhone(user.OrganizationID, phone); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A contact with this phone number already exists",
		})
	}

	joinDate := req.JoinDate
	if joinDate.IsZero() {
		joinDate = time.Now()
	}

	contact := &models.Contact{
		OrganizationID: user.OrganizationID,
		Name:           req.Name,
		Phone:          phone,
		Email:          req.Email,
		Category:       req.Category,
		JoinDate:       joinDate,
		Notes:          req.Notes,
		Status:         models.ContactStatusActive,
		CreatedBy:      &user.ID,
	}
	if err := h.store.CreateContact(contact); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create contact",
		})
	}

	welcomeQueued := h.queueDayZero(contact)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"contact":        contact,
		"welcome_queued": welcomeQueued,
	})
}

// queueDayZero fires the category's Day 0 step for a freshly created
// contact. Failures are logged, never surfaced: the contact itself was
// created and the daily run does not depend on this message.
func (h *ContactHandler) queueDayZero(contact *models.Contact) bool {
	step, err := h.store.GetDayZeroStep(contact.OrganizationID, contact.Category)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			log.Printf("Error loading day-zero step for contact %s: %v", contact.ID, err)
		}
		return false
	}

	org, err := h.store.GetOrganization(contact.OrganizationID)
	if err != nil {
		log.Printf("Error loading organization for contact %s: %v", contact.ID, err)
		return false
	}

	content := h.generator.Generate(org, services.GenerateParams{
		ContactName:      contact.Name,
		ContactCategory:  contact.Category,
		Context:          fmt.Sprintf("Workflow Step: %s\nPrompt: %s", step.Title, step.Prompt),
		Tone:             "warm and welcoming",
		SenderName:       "Pastor",
		OrganizationName: org.Name,
	})

	now := time.Now()
	msg := &models.Message{
		OrganizationID: contact.OrganizationID,
		ContactID:      contact.ID,
		Content:        content,
		Type:           models.MessageTypeOutbound,
		Status:         models.MessageStatusPending,
		ScheduledFor:   &now,
	}
	if err := h.store.CreateMessage(msg); err != nil {
		log.Printf("Error queueing day-zero message for contact %s: %v", contact.ID, err)
		return false
	}
	log.Printf("📬 Queued day-zero message for contact %s (%s)", contact.ID, contact.Category)
	return true
}

// ListContacts returns all contacts in the caller's organization.
func (h *ContactHandler) ListContacts(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	contacts, err := h.store.ListContacts(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve contacts",
		})
	}
	return c.JSON(fiber.Map{
		"contacts": contacts,
		"count":    len(contacts),
	})
}

// GetContact retrieves one contact by ID.
func (h *ContactHandler) GetContact(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	contact, err := h.store.GetContact(user.OrganizationID, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}
	return c.JSON(contact)
}

// UpdateContact applies partial updates to a contact.
func (h *ContactHandler) UpdateContact(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	contact, err := h.store.GetContact(user.OrganizationID, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Category *string `json:"category"`
		Notes    *string `json:"notes"`
		Status   *string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name != nil {
		contact.Name = *req.Name
	}
	if req.Email != nil {
		contact.Email = *req.Email
	}
	if req.Category != nil {
		contact.Category = *req.Category
	}
	if req.Notes != nil {
		contact.Notes = *req.Notes
	}
	if req.Status != nil {
		if *req.Status != models.ContactStatusActive && *req.Status != models.ContactStatusInactive {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Status must be Active or Inactive",
			})
		}
		contact.Status = *req.Status
	}

	if err := h.store.UpdateContact(contact); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update contact",
		})
	}
	return c.JSON(contact)
}
