package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/handlers"
	"github.com/teleiosites/shepherd-backend/internal/middleware"
	"github.com/teleiosites/shepherd-backend/internal/services"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, generator services.Generator) {

	authHandler := handlers.NewAuthHandler(store)
	contactHandler := handlers.NewContactHandler(store, generator)
	workflowHandler := handlers.NewWorkflowHandler(store)
	messageHandler := handlers.NewMessageHandler(store)
	whatsappHandler := handlers.NewWhatsAppHandler(store)
	bridgeHandler := handlers.NewBridgeHandler(store)
	pollingHandler := handlers.NewPollingHandler(store)
	groupHandler := handlers.NewGroupHandler(store)
	healthHandler := handlers.NewHealthHandler("1.0.0")

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Shepherd Backend!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":  "/health",
				"api":     "/api",
				"webhook": "/webhook/whatsapp",
			},
		})
	})

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.RequireAuth(store), authHandler.Me)

	requireAuth := middleware.RequireAuth(store)
	requireCode := middleware.RequireConnectionCode(store)

	// Contact routes
	contacts := api.Group("/contacts", requireAuth)
	contacts.Post("/", contactHandler.CreateContact)
	contacts.Get("/", contactHandler.ListContacts)
	contacts.Get("/:id", contactHandler.GetContact)
	contacts.Patch("/:id", contactHandler.UpdateContact)

	// Workflow step routes
	workflows := api.Group("/workflows", requireAuth)
	workflows.Get("/", workflowHandler.ListSteps)
	workflows.Post("/", workflowHandler.CreateStep)
	workflows.Delete("/:id", workflowHandler.DeleteStep)

	// Message routes
	messages := api.Group("/messages", requireAuth)
	messages.Get("/", messageHandler.ListMessages)
	messages.Post("/", messageHandler.CreateMessage)
	messages.Get("/:id", messageHandler.GetMessage)

	// WhatsApp send routes (dashboard)
	whatsapp := api.Group("/whatsapp", requireAuth)
	whatsapp.Post("/send", whatsappHandler.SendMessage)
	whatsapp.Post("/send-media", whatsappHandler.SendMedia)
	whatsapp.Get("/status", whatsappHandler.GetStatus)

	// Bridge pairing and status (dashboard)
	bridge := api.Group("/bridge")
	bridge.Get("/connection-code", requireAuth, bridgeHandler.GetConnectionCode)
	bridge.Get("/status", requireAuth, bridgeHandler.GetBridgeStatus)
	bridge.Post("/disconnect", requireAuth, bridgeHandler.DisconnectBridge)

	// Bridge polling protocol (connection-code auth)
	bridge.Post("/register", requireCode, bridgeHandler.RegisterBridge)
	bridge.Get("/pending-messages", requireCode, pollingHandler.GetPendingMessages)
	bridge.Post("/update-message-status", requireCode, pollingHandler.UpdateMessageStatus)

	// Group routes
	groups := api.Group("/groups")
	groups.Get("/", requireAuth, groupHandler.ListGroups)
	groups.Post("/", requireAuth, groupHandler.CreateGroup)
	groups.Patch("/:id", requireAuth, groupHandler.UpdateGroup)

	// Welcome queue (connection-code auth)
	groups.Post("/members", requireCode, groupHandler.ReportMemberJoin)
	groups.Get("/welcome-queue", requireCode, pollingHandler.GetWelcomeQueue)
	groups.Post("/welcome-queue/:memberID/sent", requireCode, pollingHandler.MarkWelcomeSent)

	// Meta Cloud API webhook
	webhooks := app.Group("/webhook")
	webhooks.Get("/whatsapp", whatsappHandler.VerifyWebhook)
	webhooks.Post("/whatsapp", whatsappHandler.ReceiveWebhook)
}
