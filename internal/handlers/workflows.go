package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/apperrors"
	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

// WorkflowHandler manages drip-campaign step definitions.
type WorkflowHandler struct {
	store storage.Store
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(store storage.Store) *WorkflowHandler {
	return &WorkflowHandler{store: store}
}

// ListSteps returns workflow steps, optionally narrowed to one category via
// ?category=. Steps come back ordered by day within each category.
func (h *WorkflowHandler) ListSteps(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	category := c.Query("category")
	var (
		steps []*models.WorkflowStep
		err   error
	)
	if category != "" {
		steps, err = h.store.GetWorkflowSteps(user.OrganizationID, category)
	} else {
		steps, err = h.store.ListWorkflowSteps(user.OrganizationID)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve workflow steps",
		})
	}

	return c.JSON(fiber.Map{
		"steps": steps,
		"count": len(steps),
	})
}

// CreateStep adds one step to a category's sequence. Day numbers are unique
// within (organization, category); Day 0 is the contact-creation trigger.
func (h *WorkflowHandler) CreateStep(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req models.WorkflowStepCreate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Category == "" || req.Title == "" || req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Category, title and prompt are required",
		})
	}
	if req.Day < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Day must be zero or positive",
		})
	}

	existing, err := h.store.GetWorkflowSteps(user.OrganizationID, req.Category)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check existing steps",
		})
	}
	for _, step := range existing {
		if step.Day == req.Day {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A step for this day already exists in the category",
			})
		}
	}

	step := &models.WorkflowStep{
		OrganizationID: user.OrganizationID,
		Category:       req.Category,
		Day:            req.Day,
		Title:          req.Title,
		Prompt:         req.Prompt,
	}
	if err := h.store.CreateWorkflowStep(step); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create workflow step",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

// DeleteStep removes one step from its sequence.
func (h *WorkflowHandler) DeleteStep(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := h.store.DeleteWorkflowStep(user.OrganizationID, c.Params("id")); err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Workflow step not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete workflow step",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
