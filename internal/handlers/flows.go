package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/utils"
)

// FlowHandler exposes the payment actions of one storefront flow. Action
// routes always answer with the flow view; "accepted" is false when the
// session ignored the action.
type FlowHandler struct{}

func NewFlowHandler() *FlowHandler {
	return &FlowHandler{}
}

type startRequest struct {
	ItemID string `json:"item_id"`
}

func (h *FlowHandler) Get(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}
	return c.JSON(f.View())
}

func (h *FlowHandler) Start(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}

	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "item_id is required")
	}

	accepted, err := f.Start(c.UserContext(), req.ItemID)
	if errors.Is(err, flows.ErrUnknownItem) {
		return fiber.NewError(fiber.StatusNotFound, "unknown item")
	}
	if err != nil {
		return err
	}
	return actionResult(c, f, accepted)
}

func (h *FlowHandler) ToggleDisplay(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}
	return actionResult(c, f, f.ToggleDisplay())
}

func (h *FlowHandler) Copy(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}
	code, copied := f.Copy()
	return c.JSON(fiber.Map{
		"copied": copied,
		"code":   code,
		"flow":   f.View(),
	})
}

func (h *FlowHandler) Verify(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}
	return actionResult(c, f, f.Verify(c.UserContext()))
}

func (h *FlowHandler) Cancel(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}
	return actionResult(c, f, f.Cancel())
}

// QRCode serves the charge's QR image, rendering one from the Pix code when
// the provider sent none or sent an unreadable one.
func (h *FlowHandler) QRCode(c *fiber.Ctx) error {
	f, err := currentFlow(c)
	if err != nil {
		return err
	}

	charge, ok := f.Charge()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no active charge")
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	if charge.HasImage() {
		img, contentType, err := utils.DecodeImage(charge.EncodedImage)
		if err == nil {
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(img)
		}
		log.Printf("[Flow] charge %s: unreadable QR image, rendering from code: %v", charge.ID, err)
	}

	if !charge.HasCode() {
		return fiber.NewError(fiber.StatusNotFound, "qr code not available")
	}
	png, err := utils.RenderQRCode(charge.Code)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render qr code")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func currentFlow(c *fiber.Ctx) (*flows.Flow, error) {
	sf, ok := middleware.GetStorefront(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "missing storefront")
	}
	kind, err := flows.ParseKind(c.Params("flow"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown flow")
	}
	f, ok := sf.Flow(kind)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown flow")
	}
	return f, nil
}

func actionResult(c *fiber.Ctx, f *flows.Flow, accepted bool) error {
	return c.JSON(fiber.Map{
		"accepted": accepted,
		"flow":     f.View(),
	})
}
