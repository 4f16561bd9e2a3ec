package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vitalwarrior/internal/api/dto"
	"github.com/spec-kit/vitalwarrior/internal/app"
	"github.com/spec-kit/vitalwarrior/internal/events"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/observability"
)

// StateHandler exposes the render state, modals and the toast.
type StateHandler struct {
	ctrl    *app.Controller
	toasts  *notify.Sink
	metrics *observability.Metrics
}

// NewStateHandler constructs handler.
func NewStateHandler(ctrl *app.Controller, toasts *notify.Sink, metrics *observability.Metrics) *StateHandler {
	return &StateHandler{ctrl: ctrl, toasts: toasts, metrics: metrics}
}

// State handles GET /api/state.
func (h *StateHandler) State(c *fiber.Ctx) error {
	resp := dto.StateResponse{Snapshot: h.ctrl.Snapshot()}
	if toast, ok := h.toasts.Current(); ok {
		resp.Notification = &toast
	}
	return c.JSON(fiber.Map{"data": resp})
}

// OpenModal handles POST /api/modals/:name/open.
func (h *StateHandler) OpenModal(c *fiber.Ctx) error {
	return h.modal(c, events.EventOpenModal)
}

// CloseModal handles POST /api/modals/:name/close.
func (h *StateHandler) CloseModal(c *fiber.Ctx) error {
	return h.modal(c, events.EventCloseModal)
}

func (h *StateHandler) modal(c *fiber.Ctx, t events.EventType) error {
	payload := events.ModalPayload{Modal: c.Params("name")}
	if err := h.ctrl.Handle(c.UserContext(), events.New(t, payload)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ctrl.Snapshot()})
}

// Notification handles GET /api/notifications/current.
func (h *StateHandler) Notification(c *fiber.Ctx) error {
	toast, ok := h.toasts.Current()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(fiber.Map{"data": toast})
}

// DismissNotification handles DELETE /api/notifications/current.
func (h *StateHandler) DismissNotification(c *fiber.Ctx) error {
	h.toasts.Hide()
	return c.SendStatus(fiber.StatusNoContent)
}

// Metrics handles GET /api/metrics.
func (h *StateHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
