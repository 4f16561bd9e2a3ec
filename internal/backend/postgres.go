package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
	"github.com/spec-kit/vitalwarrior/internal/repository"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// Messages mirror the hosted product so the UI reads the same either way.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgAlreadyRegistered  = "User already registered"
)

// PostgresDependencies bundles what the self-hosted backend needs.
type PostgresDependencies struct {
	Accounts      repository.AccountRepository
	Profiles      repository.ProfileRepository
	HealthRecords repository.HealthRecordRepository
	Tokens        *TokenManager
	BcryptCost    int
	Slots         persistence.SlotStore
	Logger        *zap.Logger
}

// PostgresBackend provides the backend contract on the kiosk's own
// database for deployments without the hosted product.
type PostgresBackend struct {
	accounts   repository.AccountRepository
	profiles   repository.ProfileRepository
	records    repository.HealthRecordRepository
	tokens     *TokenManager
	bcryptCost int
	store      sessionStore
	listeners  listeners
	logger     *zap.Logger

	mu      sync.Mutex
	session *domain.Session
}

// NewPostgresBackend builds the backend.
func NewPostgresBackend(deps PostgresDependencies) *PostgresBackend {
	if deps.Slots == nil {
		deps.Slots = persistence.NewMemorySlots()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PostgresBackend{
		accounts:   deps.Accounts,
		profiles:   deps.Profiles,
		records:    deps.HealthRecords,
		tokens:     deps.Tokens,
		bcryptCost: deps.BcryptCost,
		store:      sessionStore{slots: deps.Slots},
		logger:     deps.Logger.Named("postgres-backend"),
	}
}

// OnAuthStateChange registers listener for sign-in and sign-out.
func (b *PostgresBackend) OnAuthStateChange(listener AuthListener) {
	b.listeners.add(listener)
}

// GetSession returns the persisted session while its token is valid.
func (b *PostgresBackend) GetSession(ctx context.Context) (*domain.Session, error) {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session == nil {
		loaded, err := b.store.load(ctx)
		if err != nil || loaded == nil {
			return nil, err
		}
		session = loaded
	}

	claims, err := b.tokens.ParseToken(session.AccessToken)
	if err != nil {
		b.clearSession(ctx)
		return nil, nil
	}
	session.User = claims.User()
	b.mu.Lock()
	b.session = session
	b.mu.Unlock()
	return session, nil
}

// SignIn checks the password hash and issues a session token.
func (b *PostgresBackend) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	account, err := b.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewBackendError(msgInvalidCredentials, http.StatusBadRequest)
		}
		return nil, mapStoreError(err)
	}
	if err := ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewBackendError(msgInvalidCredentials, http.StatusBadRequest)
	}

	user := domain.UserRecord{ID: account.ID, Email: account.Email}
	if profile, err := b.profiles.GetByID(ctx, account.ID); err == nil {
		user.FirstName = profile.FirstName
		user.LastName = profile.LastName
		user.StudentID = profile.StudentID
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapStoreError(err)
	}

	session, err := b.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	b.listeners.emit(domain.AuthEventSignedIn, session)
	return session, nil
}

// SignUp creates the account and profile and signs the user in.
func (b *PostgresBackend) SignUp(ctx context.Context, p domain.RegistrationProfile) (*SignUpResult, error) {
	if _, err := b.accounts.GetByEmail(ctx, p.Email); err == nil {
		return nil, apperrors.NewBackendError(msgAlreadyRegistered, http.StatusUnprocessableEntity)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapStoreError(err)
	}

	hash, err := HashPassword(p.Password, b.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	account := &repository.Account{Email: strings.ToLower(p.Email), PasswordHash: hash}
	if err := b.accounts.Create(ctx, account); err != nil {
		return nil, mapStoreError(err)
	}

	user := p.User(account.ID)
	if err := b.profiles.Upsert(ctx, domain.ProfileFor(user)); err != nil {
		return nil, mapStoreError(err)
	}

	session, err := b.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	b.listeners.emit(domain.AuthEventSignedIn, session)
	return &SignUpResult{User: user, Session: session}, nil
}

// SignOut forgets the session. Tokens are stateless so nothing is revoked.
func (b *PostgresBackend) SignOut(ctx context.Context) error {
	b.clearSession(ctx)
	b.listeners.emit(domain.AuthEventSignedOut, nil)
	return nil
}

// OAuthURL is not available without the hosted product.
func (b *PostgresBackend) OAuthURL(context.Context, string, string) (string, error) {
	return "", apperrors.NewBackendError("OAuth sign-in requires the hosted backend", http.StatusNotImplemented)
}

// Insert writes one row. Only health_records accepts inserts.
func (b *PostgresBackend) Insert(ctx context.Context, table string, record any) error {
	if table != domain.TableHealthRecords {
		return apperrors.NewBackendError(fmt.Sprintf("insert into %s not supported", table), http.StatusBadRequest)
	}
	var rec domain.HealthRecord
	if err := decodeRecord(record, &rec); err != nil {
		return apperrors.NewValidationError("invalid health record", nil)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return mapStoreError(b.records.Insert(ctx, rec))
}

// Upsert writes one row. Only profiles accepts upserts.
func (b *PostgresBackend) Upsert(ctx context.Context, table string, record any) error {
	if table != domain.TableProfiles {
		return apperrors.NewBackendError(fmt.Sprintf("upsert into %s not supported", table), http.StatusBadRequest)
	}
	var profile domain.Profile
	if err := decodeRecord(record, &profile); err != nil {
		return apperrors.NewValidationError("invalid profile", nil)
	}
	return mapStoreError(b.profiles.Upsert(ctx, profile))
}

func (b *PostgresBackend) issue(ctx context.Context, user domain.UserRecord) (*domain.Session, error) {
	token, exp, err := b.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	session := &domain.Session{AccessToken: token, ExpiresAt: exp, User: user}

	b.mu.Lock()
	b.session = session
	b.mu.Unlock()
	if err := b.store.save(ctx, session); err != nil {
		b.logger.Warn("persist session failed", zap.Error(err))
	}
	return session, nil
}

func (b *PostgresBackend) clearSession(ctx context.Context) {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	if err := b.store.clear(ctx); err != nil {
		b.logger.Warn("clear session failed", zap.Error(err))
	}
}

// mapStoreError treats a lost database connection like a network gap so the
// write is queued instead of dropped.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewNetworkOffline(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return apperrors.NewBackendError(pgErr.Message, http.StatusBadRequest)
	}
	return apperrors.NewInternalError(err)
}
