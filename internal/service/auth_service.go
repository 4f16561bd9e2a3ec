package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/backend"
	"github.com/spec-kit/vitalwarrior/internal/config"
	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/syncqueue"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// User-facing auth messages.
const (
	MsgLoginSuccess        = "Login successful!"
	MsgDemoLoginSuccess    = "Demo login successful!"
	MsgLoginFailed         = "Login failed. Please try again."
	MsgRegisterSuccess     = "Registration successful! Please check your email for verification."
	MsgDemoRegisterSuccess = "Demo registration successful!"
	MsgRegisterFailed      = "Registration failed. Please try again."
	MsgLogoutSuccess       = "Logged out successfully."
	MsgLogoutFailed        = "Logout failed."
	MsgOAuthDemo           = "Google OAuth not available in demo mode."
	MsgOAuthFailed         = "Google authentication failed."
)

// Demo identity used when no backend is configured.
const (
	DemoFirstName = "Demo"
	DemoLastName  = "User"
)

// AuthState receives sign-in and sign-out transitions.
type AuthState interface {
	SignedIn(user domain.UserRecord)
	SignedOut()
}

// AuthDependencies encapsulates what the auth façade talks to.
type AuthDependencies struct {
	// Backend is nil in demo mode.
	Backend  backend.Backend
	Queue    *syncqueue.Queue
	Notifier notify.Notifier
	State    AuthState
	// Online reports connectivity; nil means always online.
	Online func() bool
	Logger *zap.Logger
}

// AuthService coordinates login, registration and logout against the
// configured backend, or simulates them in demo mode.
type AuthService struct {
	backend       backend.Backend
	queue         *syncqueue.Queue
	notifier      notify.Notifier
	state         AuthState
	online        func() bool
	logger        *zap.Logger
	demoDelay     time.Duration
	oauthRedirect string
}

// NewAuthService builds the service and subscribes the state to the
// backend's auth-state changes.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Online == nil {
		deps.Online = func() bool { return true }
	}
	s := &AuthService{
		backend:       deps.Backend,
		queue:         deps.Queue,
		notifier:      deps.Notifier,
		state:         deps.State,
		online:        deps.Online,
		logger:        deps.Logger.Named("auth"),
		demoDelay:     cfg.Auth.DemoDelay,
		oauthRedirect: cfg.Auth.OAuthRedirectURL,
	}
	if s.backend != nil {
		s.backend.OnAuthStateChange(s.onAuthStateChange)
	}
	return s
}

// DemoMode reports whether no backend is configured.
func (s *AuthService) DemoMode() bool {
	return s.backend == nil
}

func (s *AuthService) onAuthStateChange(event domain.AuthEvent, session *domain.Session) {
	s.logger.Info("auth state changed", zap.String("event", string(event)))
	switch {
	case event == domain.AuthEventSignedIn && session != nil:
		s.state.SignedIn(session.User)
	case event == domain.AuthEventSignedOut:
		s.state.SignedOut()
	}
}

// RestoreSession signs the persisted user back in at start-up.
func (s *AuthService) RestoreSession(ctx context.Context) (*domain.UserRecord, error) {
	if s.backend == nil {
		return nil, nil
	}
	session, err := s.backend.GetSession(ctx)
	if err != nil {
		s.logger.Warn("restore session failed", zap.Error(err))
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	s.state.SignedIn(session.User)
	s.logger.Info("session restored", zap.String("user_id", session.User.ID))
	return &session.User, nil
}

// Login authenticates with email and password. Input is expected to be
// validated already.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.UserRecord, error) {
	if s.backend == nil {
		if err := s.simulate(ctx); err != nil {
			s.fail(err, MsgLoginFailed)
			return nil, err
		}
		user := domain.UserRecord{
			ID:        uuid.NewString(),
			Email:     email,
			FirstName: DemoFirstName,
			LastName:  DemoLastName,
			StudentID: domain.PlaceholderStudentID,
		}
		s.state.SignedIn(user)
		s.notifier.Show(MsgDemoLoginSuccess, notify.KindSuccess, 0)
		return &user, nil
	}

	session, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		s.fail(err, MsgLoginFailed)
		return nil, err
	}
	s.state.SignedIn(session.User)
	s.notifier.Show(MsgLoginSuccess, notify.KindSuccess, 0)
	return &session.User, nil
}

// Register creates an account from the profile. When the backend signs the
// user in straight away the state is updated; otherwise the user has to
// confirm their email first.
func (s *AuthService) Register(ctx context.Context, p domain.RegistrationProfile) (*domain.UserRecord, error) {
	if s.backend == nil {
		if err := s.simulate(ctx); err != nil {
			s.fail(err, MsgRegisterFailed)
			return nil, err
		}
		user := p.User(uuid.NewString())
		s.state.SignedIn(user)
		s.notifier.Show(MsgDemoRegisterSuccess, notify.KindSuccess, 0)
		return &user, nil
	}

	res, err := s.backend.SignUp(ctx, p)
	if err != nil {
		s.logger.Warn("registration failed", zap.String("email", p.Email), zap.Error(err))
		s.fail(err, MsgRegisterFailed)
		return nil, err
	}
	if res.Session != nil {
		s.state.SignedIn(res.User)
	}
	if res.User.ID != "" {
		s.saveProfile(ctx, domain.ProfileFor(res.User))
	}
	s.notifier.Show(MsgRegisterSuccess, notify.KindSuccess, 0)
	return &res.User, nil
}

// Logout ends the session.
func (s *AuthService) Logout(ctx context.Context) error {
	if s.backend != nil {
		if err := s.backend.SignOut(ctx); err != nil {
			s.logger.Warn("logout failed", zap.Error(err))
			s.notifier.Show(MsgLogoutFailed, notify.KindError, 0)
			return err
		}
	}
	s.state.SignedOut()
	s.notifier.Show(MsgLogoutSuccess, notify.KindInfo, 0)
	return nil
}

// SignInWithOAuth returns the provider URL the browser must be sent to.
func (s *AuthService) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	if s.backend == nil {
		s.notifier.Show(MsgOAuthDemo, notify.KindWarning, 0)
		return "", apperrors.NewDomainError(apperrors.CodeBackendError, MsgOAuthDemo, http.StatusNotImplemented, nil)
	}
	url, err := s.backend.OAuthURL(ctx, provider, s.oauthRedirect)
	if err != nil {
		s.fail(err, MsgOAuthFailed)
		return "", err
	}
	s.logger.Info("oauth redirect issued", zap.String("provider", provider))
	return url, nil
}

// saveProfile upserts the profile row, queueing it when offline.
func (s *AuthService) saveProfile(ctx context.Context, profile domain.Profile) {
	if s.online() {
		err := s.backend.Upsert(ctx, domain.TableProfiles, profile)
		if err == nil {
			return
		}
		if !apperrors.IsOffline(err) {
			s.logger.Warn("profile upsert failed", zap.String("user_id", profile.ID), zap.Error(err))
			return
		}
	}
	if s.queue == nil {
		return
	}
	if _, err := s.queue.Enqueue(ctx, domain.SyncUserProfile, profile); err != nil {
		s.logger.Error("queue profile failed", zap.Error(err))
	}
}

// fail shows backend messages verbatim and fallback otherwise.
func (s *AuthService) fail(err error, fallback string) {
	msg := fallback
	var de *apperrors.DomainError
	if errors.As(err, &de) && de.Code == apperrors.CodeBackendError && de.Message != "" {
		msg = de.Message
	}
	s.notifier.Show(msg, notify.KindError, 0)
}

func (s *AuthService) simulate(ctx context.Context) error {
	if s.demoDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.demoDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
