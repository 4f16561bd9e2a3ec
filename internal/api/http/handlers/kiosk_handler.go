package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vitalwarrior/internal/api/dto"
	"github.com/spec-kit/vitalwarrior/internal/app"
	"github.com/spec-kit/vitalwarrior/internal/events"
)

// KioskHandler covers the contact form and connectivity changes.
type KioskHandler struct {
	ctrl *app.Controller
}

// NewKioskHandler constructs handler.
func NewKioskHandler(ctrl *app.Controller) *KioskHandler {
	return &KioskHandler{ctrl: ctrl}
}

// Contact handles POST /api/contact.
func (h *KioskHandler) Contact(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	payload := events.ContactPayload{Name: req.Name, Email: req.Email, Message: req.Message}
	if err := h.ctrl.Handle(c.UserContext(), events.New(events.EventContact, payload)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}

// Online handles POST /api/connectivity/online.
func (h *KioskHandler) Online(c *fiber.Ctx) error {
	return h.connectivity(c, events.EventOnline)
}

// Offline handles POST /api/connectivity/offline.
func (h *KioskHandler) Offline(c *fiber.Ctx) error {
	return h.connectivity(c, events.EventOffline)
}

func (h *KioskHandler) connectivity(c *fiber.Ctx, t events.EventType) error {
	if err := h.ctrl.Handle(c.UserContext(), events.New(t, nil)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"online": h.ctrl.Snapshot().Online}})
}
