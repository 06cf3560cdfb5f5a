package routes

import (
	"treasury-lghub/internal/adapters/http/handlers"
	"treasury-lghub/internal/adapters/http/middleware"
	"treasury-lghub/internal/adapters/persistence/repositories"
	"treasury-lghub/internal/config"
	"treasury-lghub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Setup configures all routes for the application. The returned sweep service
// is started by the caller so shutdown ordering stays in main.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.SweepService {
	// Repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	masterRepo := repositories.NewMasterRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	settingRepo := repositories.NewSettingRepository(db)

	// External collaborators
	renderer := services.NewHTTPRenderer(cfg.Integrations.RenderURL)
	store := services.NewHTTPObjectStore(cfg.Integrations.StorageURL, cfg.Integrations.StorageToken)
	notifier := services.NewMailNotifier(cfg.Integrations.MailRelayURL, cfg.Integrations.MailToken)

	// Services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	writer := services.NewInstructionWriter(renderer, store)
	transitionService := services.NewTransitionService(db, writer, notifier)
	lgService := services.NewLGService(db, notifier)
	cancellationService := services.NewCancellationService(db)
	approvalService := services.NewApprovalService(db, transitionService, lgService, cancellationService, notifier, store)
	tracker := services.NewInstructionTracker(db)
	sweepService := services.NewSweepService(db, approvalService, transitionService, notifier)

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	lgHandler := handlers.NewLGHandler(lgService, transitionService)
	approvalHandler := handlers.NewApprovalHandler(approvalService)
	instructionHandler := handlers.NewInstructionHandler(tracker, cancellationService, lgService)
	masterHandler := handlers.NewMasterHandler(masterRepo, contactRepo, settingRepo, lgService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	apiV1 := app.Group("/api/v1")

	// Auth routes
	auth := apiV1.Group("/auth")
	auth.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)

	// Everything below requires authentication
	authed := apiV1.Group("", middleware.AuthMiddleware(cfg))

	// LG records
	lgs := authed.Group("/lgs")
	lgs.Post("/", lgHandler.Create)
	lgs.Get("/", lgHandler.List)
	lgs.Get("/:id", lgHandler.Get)
	lgs.Get("/:id/history", lgHandler.History)
	lgs.Get("/:id/instructions", lgHandler.Instructions)

	// Direct actions bypass maker-checker, reserved for corporate admins
	actions := lgs.Group("/:id/actions", middleware.AdminOnly())
	actions.Post("/extend", lgHandler.Extend)
	actions.Post("/release", lgHandler.Release)
	actions.Post("/liquidate", lgHandler.Liquidate)
	actions.Post("/decrease", lgHandler.Decrease)
	actions.Post("/activate", lgHandler.Activate)
	lgs.Post("/:id/amend", middleware.AdminOnly(), lgHandler.Amend)
	lgs.Post("/:id/change-owner", middleware.AdminOnly(), lgHandler.ChangeOwner)

	authed.Post("/owners/bulk-change", middleware.AdminOnly(), lgHandler.BulkChangeOwner)

	// Approvals
	approvals := authed.Group("/approvals")
	approvals.Post("/", approvalHandler.Submit)
	approvals.Get("/", approvalHandler.List)
	approvals.Get("/:id", approvalHandler.Get)
	approvals.Post("/:id/approve", middleware.CheckerOnly(), approvalHandler.Approve)
	approvals.Post("/:id/reject", middleware.CheckerOnly(), approvalHandler.Reject)
	approvals.Post("/:id/withdraw", approvalHandler.Withdraw)

	// Instructions
	instructions := authed.Group("/instructions")
	instructions.Get("/:id", instructionHandler.Get)
	instructions.Post("/:id/delivered", instructionHandler.MarkDelivered)
	instructions.Post("/:id/bank-confirmed", instructionHandler.MarkBankConfirmed)
	instructions.Post("/:id/cancel", middleware.AdminOnly(), instructionHandler.Cancel)

	// Master data & settings
	master := authed.Group("/master")
	master.Get("/banks", masterHandler.ListBanks)
	master.Get("/currencies", masterHandler.ListCurrencies)
	master.Get("/categories", masterHandler.ListCategories)
	master.Get("/contacts", masterHandler.ListContacts)
	master.Put("/contacts/:id", middleware.AdminOnly(), masterHandler.UpdateContact)
	master.Put("/settings", middleware.AdminOnly(), masterHandler.SetSetting)

	return sweepService
}
