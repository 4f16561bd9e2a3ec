package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vitalwarrior/internal/api/dto"
	"github.com/spec-kit/vitalwarrior/internal/app"
	"github.com/spec-kit/vitalwarrior/internal/events"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// AuthHandler exposes the login, register and logout forms.
type AuthHandler struct {
	ctrl *app.Controller
}

// NewAuthHandler constructs handler.
func NewAuthHandler(ctrl *app.Controller) *AuthHandler {
	return &AuthHandler{ctrl: ctrl}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	user, err := h.ctrl.SubmitLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuthResponse(*user)})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	user, err := h.ctrl.SubmitRegister(c.UserContext(), req.Profile())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAuthResponse(*user)})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.ctrl.Handle(c.UserContext(), events.New(events.EventLogout, nil)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// OAuth handles POST /api/auth/oauth/:provider.
func (h *AuthHandler) OAuth(c *fiber.Ctx) error {
	url, err := h.ctrl.SignInWithOAuth(c.UserContext(), c.Params("provider"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OAuthResponse{URL: url}})
}

func invalidPayload() error {
	return apperrors.NewValidationError("invalid payload", nil)
}
