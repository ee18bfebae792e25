package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/middleware"
)

// CallHandler reports and ends the storefront's paid video call.
type CallHandler struct {
	calls *calls.Manager
}

func NewCallHandler(m *calls.Manager) *CallHandler {
	return &CallHandler{calls: m}
}

func (h *CallHandler) Get(c *fiber.Ctx) error {
	sf, ok := middleware.GetStorefront(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing storefront")
	}

	if st, ok := h.calls.Get(sf.ID); ok {
		return c.JSON(fiber.Map{"call": st})
	}
	return c.JSON(fiber.Map{"call": nil})
}

func (h *CallHandler) End(c *fiber.Ctx) error {
	sf, ok := middleware.GetStorefront(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing storefront")
	}

	st, ok := h.calls.End(sf.ID)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no active call")
	}
	return c.JSON(fiber.Map{"call": st})
}
