package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/catalog"
)

// CatalogHandler serves what the storefront sells. Access links stay hidden
// until a package is paid.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

func (h *CatalogHandler) GetCatalog(c *fiber.Ctx) error {
	return c.JSON(h.catalog)
}
