package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/config"
	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/handlers"
	"github.com/example/vitrine/internal/middleware"
)

// Dependencies are the long-lived services the routes are served from.
type Dependencies struct {
	Config   *config.Config
	Registry *flows.Registry
	Catalog  *catalog.Catalog
	Calls    *calls.Manager
	Charges  handlers.ChargeStore
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	cfg := deps.Config

	storefrontHandler := handlers.NewStorefrontHandler(deps.Registry, cfg.JWTSecret, cfg.SessionTTL)
	catalogHandler := handlers.NewCatalogHandler(deps.Catalog)
	flowHandler := handlers.NewFlowHandler()
	callHandler := handlers.NewCallHandler(deps.Calls)
	adminHandler := handlers.NewAdminHandler(deps.Charges, deps.Registry)

	storefrontAuth := middleware.StorefrontAuth(cfg.JWTSecret, deps.Registry)

	api := app.Group("/api")

	// Public routes
	api.Post("/storefronts", storefrontHandler.Create)
	api.Get("/catalog", catalogHandler.GetCatalog)

	// Storefront routes
	api.Get("/storefront", storefrontAuth, storefrontHandler.Get)

	flowRoutes := api.Group("/flows", storefrontAuth)
	flowRoutes.Get("/:flow", flowHandler.Get)
	flowRoutes.Get("/:flow/qr", flowHandler.QRCode)
	flowRoutes.Post("/:flow/start", flowHandler.Start)
	flowRoutes.Post("/:flow/display", flowHandler.ToggleDisplay)
	flowRoutes.Post("/:flow/copy", flowHandler.Copy)
	flowRoutes.Post("/:flow/verify", flowHandler.Verify)
	flowRoutes.Post("/:flow/cancel", flowHandler.Cancel)

	call := api.Group("/call", storefrontAuth)
	call.Get("/", callHandler.Get)
	call.Post("/end", callHandler.End)

	// Admin routes
	admin := api.Group("/admin", middleware.AdminAuth(cfg.AdminUser, cfg.AdminPasswordHash))
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/charges", adminHandler.ListCharges)
}
