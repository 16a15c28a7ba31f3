package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/services"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

// BridgeHandler manages the pairing between a dashboard user and a
// self-hosted WPPConnect bridge instance.
type BridgeHandler struct {
	store storage.Store
}

// NewBridgeHandler creates a new bridge handler
func NewBridgeHandler(store storage.Store) *BridgeHandler {
	return &BridgeHandler{store: store}
}

// GetConnectionCode returns the short code the user enters into their bridge
// to pair it with this account.
func (h *BridgeHandler) GetConnectionCode(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(fiber.Map{
		"connection_code": user.ConnectionCode(),
		"instructions":    "Enter this code in your WhatsApp bridge to connect it to your account",
	})
}

// RegisterBridge is called by the bridge itself once the user enters the
// connection code. It records the bridge's callback URL on the organization,
// which flips the organization onto the poll channel unless Meta credentials
// override it.
func (h *BridgeHandler) RegisterBridge(c *fiber.Ctx) error {
	user := middleware.BridgeUser(c)

	var req struct {
		BridgeURL string `json:"bridge_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.BridgeURL = strings.TrimRight(strings.TrimSpace(req.BridgeURL), "/")
	if req.BridgeURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bridge_url is required",
		})
	}

	org, err := h.store.GetOrganization(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load organization",
		})
	}

	org.WPPConnectBridgeURL = req.BridgeURL
	org.UpdatedAt = time.Now()
	if err := h.store.UpdateOrganization(org); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register bridge",
		})
	}

	log.Printf("🔗 Bridge registered for organization %s at %s", org.ID, req.BridgeURL)
	return c.JSON(fiber.Map{
		"success":      true,
		"organization": org.Name,
		"message":      "Bridge connected successfully",
	})
}

// GetBridgeStatus reports the active delivery channel and, for poll-channel
// organizations, proxies the bridge's own session status.
func (h *BridgeHandler) GetBridgeStatus(c *fiber.Ctx) error {
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

// DisconnectBridge clears the organization's bridge URL.
func (h *BridgeHandler) DisconnectBridge(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	org, err := h.store.GetOrganization(user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load organization",
		})
	}

	org.WPPConnectBridgeURL = ""
	org.UpdatedAt = time.Now()
	if err := h.store.UpdateOrganization(org); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to disconnect bridge",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Bridge disconnected",
	})
}
