package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

// GroupHandler manages WhatsApp group records and their auto-welcome
// settings. Member joins are reported by the bridge; the dashboard only
// configures which groups greet newcomers and with what text.
type GroupHandler struct {
	store storage.Store
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(store storage.Store) *GroupHandler {
	return &GroupHandler{store: store}
}

// ListGroups returns the organization's managed groups.
func (h *GroupHandler) ListGroups(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	groups, err := h.store.ListGroups(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve groups",
		})
	}
	return c.JSON(fiber.Map{
		"groups": groups,
		"count":  len(groups),
	})
}

// CreateGroup registers a WhatsApp group for management.
func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req struct {
		WhatsAppGroupID        string `json:"whatsapp_group_id"`
		Name                   string `json:"name"`
		Description            string `json:"description"`
		AutoWelcomeEnabled     bool   `json:"auto_welcome_enabled"`
		WelcomeMessageTemplate string `json:"welcome_message_template"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.WhatsAppGroupID == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "WhatsApp group ID and name are required",
		})
	}

	if _, err := h.store.GetGroupByWhatsAppID(user.OrganizationID, req.WhatsAppGroupID); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "This group is already registered",
		})
	}

	group := &models.Group{
		OrganizationID:         user.OrganizationID,
		WhatsAppGroupID:        req.WhatsAppGroupID,
		Name:                   req.Name,
		Description:            req.Description,
		IsActive:               true,
		AutoWelcomeEnabled:     req.AutoWelcomeEnabled,
		WelcomeMessageTemplate: req.WelcomeMessageTemplate,
	}
	if err := h.store.CreateGroup(group); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create group",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

// UpdateGroup changes a group's auto-welcome settings.
func (h *GroupHandler) UpdateGroup(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	groups, err := h.store.ListGroups(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve groups",
		})
	}
	var group *models.Group
	for _, g := range groups {
		if g.ID == c.Params("id") {
			group = g
			break
		}
	}
	if group == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	var req struct {
		Name                   *string `json:"name"`
		Description            *string `json:"description"`
		IsActive               *bool   `json:"is_active"`
		AutoWelcomeEnabled     *bool   `json:"auto_welcome_enabled"`
		WelcomeMessageTemplate *string `json:"welcome_message_template"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}
	if req.AutoWelcomeEnabled != nil {
		group.AutoWelcomeEnabled = *req.AutoWelcomeEnabled
	}
	if req.WelcomeMessageTemplate != nil {
		group.WelcomeMessageTemplate = *req.WelcomeMessageTemplate
	}

	if err := h.store.UpdateGroup(group); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update group",
		})
	}
	return c.JSON(group)
}

// ReportMemberJoin is called by the bridge when someone joins a managed
// group. The member enters the welcome queue if the group auto-welcomes.
func (h *GroupHandler) ReportMemberJoin(c *fiber.Ctx) error {
	user := middleware.BridgeUser(c)

	var req struct {
		GroupID    string `json:"group_id"`
		WhatsAppID string `json:"whatsapp_id"`
		Name       string `json:"name"`
		IsAdmin    bool   `json:"is_admin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.GroupID == "" || req.WhatsAppID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "group_id and whatsapp_id are required",
		})
	}

	group, err := h.store.GetGroupByWhatsAppID(user.OrganizationID, req.GroupID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Group not registered",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load group",
		})
	}

	member := &models.GroupMember{
		GroupID:    group.ID,
		WhatsAppID: req.WhatsAppID,
		Name:       req.Name,
		IsAdmin:    req.IsAdmin,
		JoinedAt:   time.Now(),
	}
	if err := h.store.CreateGroupMember(member); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record group member",
		})
	}

	group.MemberCount++
	if err := h.store.UpdateGroup(group); err != nil {
		// Member was recorded; the count is advisory.
		return c.Status(fiber.StatusCreated).JSON(member)
	}

	return c.Status(fiber.StatusCreated).JSON(member)
}
