package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vitalwarrior/internal/api/dto"
	"github.com/spec-kit/vitalwarrior/internal/app"
	"github.com/spec-kit/vitalwarrior/internal/events"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// ScanHandler drives the camera and the health scan.
type ScanHandler struct {
	ctrl *app.Controller
}

// NewScanHandler constructs handler.
func NewScanHandler(ctrl *app.Controller) *ScanHandler {
	return &ScanHandler{ctrl: ctrl}
}

// Start handles POST /api/scan/start.
func (h *ScanHandler) Start(c *fiber.Ctx) error {
	return h.dispatch(c, events.EventStartScan)
}

// Switch handles POST /api/scan/switch.
func (h *ScanHandler) Switch(c *fiber.Ctx) error {
	return h.dispatch(c, events.EventSwitchCamera)
}

// Stop handles POST /api/scan/stop.
func (h *ScanHandler) Stop(c *fiber.Ctx) error {
	return h.dispatch(c, events.EventStopScan)
}

// Capture handles POST /api/scan/capture. The response arrives once the
// analysis has finished.
func (h *ScanHandler) Capture(c *fiber.Ctx) error {
	result, err := h.ctrl.CaptureAndAnalyze(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewScanResultResponse(*result)})
}

// Result handles GET /api/scan/result.
func (h *ScanHandler) Result(c *fiber.Ctx) error {
	snap := h.ctrl.Snapshot()
	if snap.ScanResult == nil {
		return apperrors.NewNotFound("scan result", nil)
	}
	return c.JSON(fiber.Map{"data": dto.NewScanResultResponse(*snap.ScanResult)})
}

// Frame handles GET /api/scan/frame and returns the last captured still.
func (h *ScanHandler) Frame(c *fiber.Ctx) error {
	frame, ok := h.ctrl.LastFrame()
	if !ok {
		return apperrors.NewNotFound("frame", nil)
	}
	c.Set(fiber.HeaderContentType, frame.MIMEType)
	c.Set("X-Frame-Id", frame.ID)
	return c.Send(frame.Data)
}

func (h *ScanHandler) dispatch(c *fiber.Ctx, t events.EventType) error {
	if err := h.ctrl.Handle(c.UserContext(), events.New(t, nil)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ctrl.Snapshot()})
}
