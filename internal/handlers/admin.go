package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/services"
	"github.com/example/vitrine/internal/utils"
)

// ChargeStore is the read side of the purchase ledger.
type ChargeStore interface {
	List(ctx context.Context, filter services.ChargeFilter, page utils.Pagination) ([]models.PixCharge, int64, error)
	Stats(ctx context.Context, now time.Time) (services.ChargeStats, error)
}

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	charges  ChargeStore
	registry *flows.Registry
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(charges ChargeStore, registry *flows.Registry) *AdminHandler {
	return &AdminHandler{charges: charges, registry: registry}
}

// DashboardStats returns ledger totals and the number of live storefronts.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.charges.Stats(c.UserContext(), time.Now())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":            true,
		"data":               stats,
		"active_storefronts": h.registry.Len(),
	})
}

// ListCharges returns the Pix charge history, optionally filtered.
func (h *AdminHandler) ListCharges(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	var filter services.ChargeFilter

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = string(gateway.ParseStatus(status))
	}
	if flow := strings.TrimSpace(c.Query("flow")); flow != "" {
		kind, err := flows.ParseKind(flow)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid flow")
		}
		filter.Flow = string(kind)
	}

	charges, total, err := h.charges.List(c.UserContext(), filter, pg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    charges,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
