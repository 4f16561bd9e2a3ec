package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/repository"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

type memAccounts struct {
	mu   sync.Mutex
	rows map[string]*repository.Account
}

func (m *memAccounts) Create(_ context.Context, a *repository.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = fmt.Sprintf("acc-%d", len(m.rows)+1)
	cp := *a
	m.rows[strings.ToLower(a.Email)] = &cp
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

type memProfiles struct {
	mu   sync.Mutex
	rows map[string]domain.Profile
}

func (m *memProfiles) Upsert(_ context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return nil
}

func (m *memProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

type memRecords struct {
	mu   sync.Mutex
	rows []domain.HealthRecord
	err  error
}

func (m *memRecords) Insert(_ context.Context, r domain.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, r)
	return nil
}

func newTestPostgresBackend() (*PostgresBackend, *memProfiles, *memRecords) {
	profiles := &memProfiles{rows: map[string]domain.Profile{}}
	records := &memRecords{}
	b := NewPostgresBackend(PostgresDependencies{
		Accounts:      &memAccounts{rows: map[string]*repository.Account{}},
		Profiles:      profiles,
		HealthRecords: records,
		Tokens:        NewTokenManager("secret", 30),
		BcryptCost:    4,
	})
	return b, profiles, records
}

var anaProfile = domain.RegistrationProfile{
	FirstName:       "Ana",
	LastName:        "Lee",
	StudentID:       "UE-00000001",
	Email:           "ana@uni.edu",
	Password:        "password1",
	ConfirmPassword: "password1",
}

func TestPostgresSignUpThenSignIn(t *testing.T) {
	b, profiles, _ := newTestPostgresBackend()
	ctx := context.Background()

	var events []domain.AuthEvent
	b.OnAuthStateChange(func(e domain.AuthEvent, _ *domain.Session) { events = append(events, e) })

	res, err := b.SignUp(ctx, anaProfile)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "Ana Lee", profiles.rows[res.User.ID].FullName)

	require.NoError(t, b.SignOut(ctx))
	session, err := b.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	session, err = b.SignIn(ctx, "ANA@uni.edu", "password1")
	require.NoError(t, err)
	assert.Equal(t, "UE-00000001", session.User.StudentID)
	assert.Equal(t, []domain.AuthEvent{domain.AuthEventSignedIn, domain.AuthEventSignedOut, domain.AuthEventSignedIn}, events)

	restored, err := b.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, session.User, restored.User)
}

func TestPostgresRejectsBadCredentials(t *testing.T) {
	b, _, _ := newTestPostgresBackend()
	ctx := context.Background()
	_, err := b.SignUp(ctx, anaProfile)
	require.NoError(t, err)

	for _, tc := range []struct{ email, password string }{
		{"ana@uni.edu", "wrong-password"},
		{"nobody@uni.edu", "password1"},
	} {
		_, err := b.SignIn(ctx, tc.email, tc.password)
		require.Error(t, err)
		assert.Equal(t, msgInvalidCredentials, apperrors.ToDomainError(err).Message)
	}

	_, err = b.SignUp(ctx, anaProfile)
	require.Error(t, err)
	assert.Equal(t, msgAlreadyRegistered, apperrors.ToDomainError(err).Message)
}

func TestPostgresWrites(t *testing.T) {
	b, profiles, records := newTestPostgresBackend()
	ctx := context.Background()

	rec := domain.HealthRecord{UserID: "acc-1", StudentID: "UE-00000001", Temperature: "37.9°C", Symptoms: "Fever", Status: domain.HealthStatusWarning}
	require.NoError(t, b.Insert(ctx, domain.TableHealthRecords, rec))
	require.Len(t, records.rows, 1)
	assert.False(t, records.rows[0].CreatedAt.IsZero())

	require.NoError(t, b.Upsert(ctx, domain.TableProfiles, []byte(`{"id":"acc-9","first_name":"Bo"}`)))
	assert.Equal(t, "Bo", profiles.rows["acc-9"].FirstName)

	assert.Error(t, b.Insert(ctx, domain.TableProfiles, rec))

	records.err = fmt.Errorf("insert: %w", context.DeadlineExceeded)
	err := b.Insert(ctx, domain.TableHealthRecords, rec)
	assert.True(t, apperrors.IsOffline(err))
}

func TestPostgresOAuthUnsupported(t *testing.T) {
	b, _, _ := newTestPostgresBackend()
	_, err := b.OAuthURL(context.Background(), "google", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBackendError))
}
