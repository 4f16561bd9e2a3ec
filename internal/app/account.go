package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/state"
	"github.com/spec-kit/vitalwarrior/internal/validation"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// MsgContactSent confirms a contact form submission.
const MsgContactSent = "Message sent successfully! We'll get back to you soon."

// SubmitLogin validates the login form and signs in. The login modal closes
// on success.
func (c *Controller) SubmitLogin(ctx context.Context, email, password string) (*domain.UserRecord, error) {
	if err := validation.Login(email, password); err != nil {
		c.rejectForm(err)
		return nil, err
	}
	user, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.closeModal(state.ModalLogin)
	return user, nil
}

// SubmitRegister validates the register form and creates the account. The
// register modal closes on success.
func (c *Controller) SubmitRegister(ctx context.Context, p domain.RegistrationProfile) (*domain.UserRecord, error) {
	if err := validation.Register(p); err != nil {
		c.rejectForm(err)
		return nil, err
	}
	user, err := c.auth.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	c.closeModal(state.ModalRegister)
	return user, nil
}

// Logout ends the session.
func (c *Controller) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}

// SignInWithOAuth returns the provider URL to redirect the browser to.
func (c *Controller) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	return c.auth.SignInWithOAuth(ctx, provider)
}

// SubmitContact validates the contact form and confirms it right away.
func (c *Controller) SubmitContact(_ context.Context, name, email, message string) error {
	if err := validation.Contact(name, email, message); err != nil {
		c.rejectForm(err)
		return err
	}
	c.logger.Info("contact form submission",
		zap.String("name", name),
		zap.String("email", email),
		zap.Int("message_length", len(message)))
	c.notifier.Show(MsgContactSent, notify.KindSuccess, 0)
	return nil
}

func (c *Controller) rejectForm(err error) {
	c.notifier.Show(apperrors.ToDomainError(err).Message, notify.KindError, 0)
}

func (c *Controller) closeModal(m state.Modal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CloseModal(m)
}
