package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// SupabaseOptions configures the hosted backend client.
type SupabaseOptions struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
	Slots     persistence.SlotStore
	Logger    *zap.Logger
}

// SupabaseBackend speaks the hosted product's auth and REST contracts.
type SupabaseBackend struct {
	baseURL   string
	anonKey   string
	timeout   time.Duration
	tokens    *TokenManager
	store     sessionStore
	listeners listeners
	logger    *zap.Logger

	mu      sync.Mutex
	session *domain.Session
}

// NewSupabaseBackend builds the client. Access tokens are verified when a
// project JWT secret is supplied.
func NewSupabaseBackend(opts SupabaseOptions) *SupabaseBackend {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Slots == nil {
		opts.Slots = persistence.NewMemorySlots()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := &SupabaseBackend{
		baseURL: strings.TrimRight(opts.URL, "/"),
		anonKey: opts.AnonKey,
		timeout: opts.Timeout,
		store:   sessionStore{slots: opts.Slots},
		logger:  opts.Logger.Named("supabase"),
	}
	if opts.JWTSecret != "" {
		b.tokens = NewTokenManager(opts.JWTSecret, 0)
	}
	return b
}

type gotrueUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

// OnAuthStateChange registers listener for sign-in and sign-out.
func (b *SupabaseBackend) OnAuthStateChange(listener AuthListener) {
	b.listeners.add(listener)
}

// GetSession returns the cached or persisted session, refreshing it when the
// access token has expired.
func (b *SupabaseBackend) GetSession(ctx context.Context) (*domain.Session, error) {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session == nil {
		loaded, err := b.store.load(ctx)
		if err != nil {
			return nil, err
		}
		session = loaded
	}
	if session == nil {
		return nil, nil
	}
	if !session.Expired(time.Now()) {
		b.setSession(ctx, session)
		return session, nil
	}
	if session.RefreshToken == "" {
		b.clearSession(ctx)
		return nil, nil
	}

	refreshed, err := b.tokenRequest(ctx, "refresh_token", map[string]string{"refresh_token": session.RefreshToken})
	if err != nil {
		if apperrors.IsOffline(err) {
			return nil, err
		}
		b.logger.Info("session refresh rejected", zap.Error(err))
		b.clearSession(ctx)
		return nil, nil
	}
	b.setSession(ctx, refreshed)
	return refreshed, nil
}

// SignIn exchanges credentials for a session.
func (b *SupabaseBackend) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := b.tokenRequest(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	b.setSession(ctx, session)
	b.listeners.emit(domain.AuthEventSignedIn, session)
	return session, nil
}

// SignUp creates the account with the profile stored as user metadata.
func (b *SupabaseBackend) SignUp(ctx context.Context, p domain.RegistrationProfile) (*SignUpResult, error) {
	user := p.User("")
	body := map[string]any{
		"email":    p.Email,
		"password": p.Password,
		"data": UserMetadata{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			StudentID: p.StudentID,
			FullName:  user.FullName(),
		},
	}
	resp, err := b.request(ctx, fiber.MethodPost, "/auth/v1/signup", body, b.anonKey, nil)
	if err != nil {
		return nil, err
	}

	var gs gotrueSession
	if err := json.Unmarshal(resp, &gs); err != nil {
		return nil, apperrors.NewBackendError("unexpected signup response", http.StatusBadGateway)
	}
	if gs.AccessToken != "" {
		session, err := b.sessionFrom(gs)
		if err != nil {
			return nil, err
		}
		b.setSession(ctx, session)
		b.listeners.emit(domain.AuthEventSignedIn, session)
		return &SignUpResult{User: session.User, Session: session}, nil
	}

	// Email confirmation pending: the body is the bare user.
	var gu gotrueUser
	if err := json.Unmarshal(resp, &gu); err != nil {
		return nil, apperrors.NewBackendError("unexpected signup response", http.StatusBadGateway)
	}
	return &SignUpResult{User: userFrom(gu)}, nil
}

// SignOut revokes the session remotely and forgets it locally.
func (b *SupabaseBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session != nil {
		if _, err := b.request(ctx, fiber.MethodPost, "/auth/v1/logout", nil, session.AccessToken, nil); err != nil {
			return err
		}
	}
	b.clearSession(ctx)
	b.listeners.emit(domain.AuthEventSignedOut, nil)
	return nil
}

// OAuthURL builds the authorize URL for provider.
func (b *SupabaseBackend) OAuthURL(_ context.Context, provider, redirectTo string) (string, error) {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return b.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// Insert adds one row to table.
func (b *SupabaseBackend) Insert(ctx context.Context, table string, record any) error {
	return b.write(ctx, table, record, "return=minimal")
}

// Upsert adds or merges one row into table.
func (b *SupabaseBackend) Upsert(ctx context.Context, table string, record any) error {
	return b.write(ctx, table, record, "resolution=merge-duplicates,return=minimal")
}

func (b *SupabaseBackend) write(ctx context.Context, table string, record any, prefer string) error {
	var row json.RawMessage
	if err := decodeRecord(record, &row); err != nil {
		return err
	}
	bearer := b.anonKey
	b.mu.Lock()
	if b.session != nil {
		bearer = b.session.AccessToken
	}
	b.mu.Unlock()

	_, err := b.request(ctx, fiber.MethodPost, "/rest/v1/"+url.PathEscape(table), []json.RawMessage{row}, bearer,
		map[string]string{"Prefer": prefer})
	return err
}

func (b *SupabaseBackend) tokenRequest(ctx context.Context, grant string, body map[string]string) (*domain.Session, error) {
	resp, err := b.request(ctx, fiber.MethodPost, "/auth/v1/token?grant_type="+grant, body, b.anonKey, nil)
	if err != nil {
		return nil, err
	}
	var gs gotrueSession
	if err := json.Unmarshal(resp, &gs); err != nil || gs.AccessToken == "" {
		return nil, apperrors.NewBackendError("unexpected token response", http.StatusBadGateway)
	}
	return b.sessionFrom(gs)
}

func (b *SupabaseBackend) sessionFrom(gs gotrueSession) (*domain.Session, error) {
	var claims *Claims
	var err error
	if b.tokens != nil {
		claims, err = b.tokens.ParseToken(gs.AccessToken)
		if err != nil {
			return nil, apperrors.NewBackendError("invalid session token", http.StatusBadGateway)
		}
	} else {
		claims, _ = DecodeUnverified(gs.AccessToken)
	}

	user := userFrom(gs.User)
	if user.ID == "" && claims != nil {
		user = claims.User()
	}

	var expiresAt time.Time
	switch {
	case gs.ExpiresAt > 0:
		expiresAt = time.Unix(gs.ExpiresAt, 0).UTC()
	case gs.ExpiresIn > 0:
		expiresAt = time.Now().Add(time.Duration(gs.ExpiresIn) * time.Second).UTC()
	case claims != nil && claims.ExpiresAt != nil:
		expiresAt = claims.ExpiresAt.Time.UTC()
	}

	return &domain.Session{
		AccessToken:  gs.AccessToken,
		RefreshToken: gs.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func userFrom(gu gotrueUser) domain.UserRecord {
	return domain.UserRecord{
		ID:        gu.ID,
		Email:     gu.Email,
		FirstName: gu.UserMetadata.FirstName,
		LastName:  gu.UserMetadata.LastName,
		StudentID: gu.UserMetadata.StudentID,
	}
}

func (b *SupabaseBackend) setSession(ctx context.Context, session *domain.Session) {
	b.mu.Lock()
	b.session = session
	b.mu.Unlock()
	if err := b.store.save(ctx, session); err != nil {
		b.logger.Warn("persist session failed", zap.Error(err))
	}
}

func (b *SupabaseBackend) clearSession(ctx context.Context) {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	if err := b.store.clear(ctx); err != nil {
		b.logger.Warn("clear session failed", zap.Error(err))
	}
}

// request performs one call. Transport failures become NetworkOffline and
// non-2xx answers become BackendError with the service's own message.
func (b *SupabaseBackend) request(ctx context.Context, method, path string, body any, bearer string, headers map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var agent *fiber.Agent
	if method == fiber.MethodGet {
		agent = fiber.Get(b.baseURL + path)
	} else {
		agent = fiber.Post(b.baseURL + path)
	}
	agent.Set("apikey", b.anonKey)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	for k, v := range headers {
		agent.Set(k, v)
	}
	if body != nil {
		agent.JSON(body)
	}
	agent.Timeout(b.timeoutFor(ctx))
	if err := agent.Parse(); err != nil {
		return nil, apperrors.NewNetworkOffline(err)
	}

	status, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, apperrors.NewNetworkOffline(errors.Join(errs...))
	}
	if status < 200 || status >= 300 {
		return nil, apperrors.NewBackendError(errorMessage(resp, status), status)
	}
	return resp, nil
}

func (b *SupabaseBackend) timeoutFor(ctx context.Context) time.Duration {
	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func errorMessage(body []byte, status int) string {
	var ge gotrueError
	if err := json.Unmarshal(body, &ge); err == nil {
		for _, msg := range []string{ge.Msg, ge.Message, ge.ErrorDescription, ge.Error} {
			if msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(status)
}
