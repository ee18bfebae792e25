package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/utils"
)

// StorefrontHandler opens visitor storefronts and hands out their tokens.
type StorefrontHandler struct {
	registry *flows.Registry
	secret   string
	ttl      time.Duration
}

func NewStorefrontHandler(registry *flows.Registry, secret string, ttl time.Duration) *StorefrontHandler {
	return &StorefrontHandler{registry: registry, secret: secret, ttl: ttl}
}

// Create opens a new storefront and returns its bearer token.
func (h *StorefrontHandler) Create(c *fiber.Ctx) error {
	sf := h.registry.Create()

	token, err := utils.GenerateStorefrontToken(h.secret, sf.ID, h.ttl)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"storefront_id": sf.ID,
		"token":         token,
		"expires_at":    time.Now().Add(h.ttl),
		"flows":         storefrontViews(sf),
	})
}

// Get returns the view of every flow of the caller's storefront.
func (h *StorefrontHandler) Get(c *fiber.Ctx) error {
	sf, ok := middleware.GetStorefront(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing storefront")
	}
	return c.JSON(fiber.Map{
		"storefront_id": sf.ID,
		"flows":         storefrontViews(sf),
	})
}

func storefrontViews(sf *flows.Storefront) map[flows.Kind]flows.View {
	views := make(map[flows.Kind]flows.View, len(flows.Kinds))
	for _, kind := range flows.Kinds {
		if f, ok := sf.Flow(kind); ok {
			views[kind] = f.View()
		}
	}
	return views
}
