package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/vitalwarrior/internal/backend"
	"github.com/spec-kit/vitalwarrior/internal/config"
	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/notify/notifytest"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
	"github.com/spec-kit/vitalwarrior/internal/syncqueue"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

type recordingState struct {
	mu   sync.Mutex
	user *domain.UserRecord
}

func (r *recordingState) SignedIn(u domain.UserRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = &u
}

func (r *recordingState) SignedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = nil
}

func (r *recordingState) current() *domain.UserRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user
}

type stubBackend struct {
	listener  backend.AuthListener
	signInErr error
	signUp    *backend.SignUpResult
	signUpErr error
	signOut   error
	upsertErr error
	upserts   []any
	session   *domain.Session
}

func (b *stubBackend) Insert(context.Context, string, any) error { return nil }

func (b *stubBackend) Upsert(_ context.Context, _ string, record any) error {
	if b.upsertErr != nil {
		return b.upsertErr
	}
	b.upserts = append(b.upserts, record)
	return nil
}

func (b *stubBackend) GetSession(context.Context) (*domain.Session, error) { return b.session, nil }

func (b *stubBackend) OnAuthStateChange(l backend.AuthListener) { b.listener = l }

func (b *stubBackend) SignIn(_ context.Context, email, _ string) (*domain.Session, error) {
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	s := &domain.Session{AccessToken: "t", User: domain.UserRecord{ID: "u-1", Email: email, FirstName: "Ana"}}
	b.listener(domain.AuthEventSignedIn, s)
	return s, nil
}

func (b *stubBackend) SignUp(context.Context, domain.RegistrationProfile) (*backend.SignUpResult, error) {
	return b.signUp, b.signUpErr
}

func (b *stubBackend) SignOut(context.Context) error {
	if b.signOut != nil {
		return b.signOut
	}
	b.listener(domain.AuthEventSignedOut, nil)
	return nil
}

func (b *stubBackend) OAuthURL(_ context.Context, provider, redirectTo string) (string, error) {
	return "https://auth.example/authorize?provider=" + provider + "&redirect_to=" + redirectTo, nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Auth.DemoDelay = time.Millisecond
	cfg.Auth.OAuthRedirectURL = "http://127.0.0.1:8080/"
	return cfg
}

func newService(b backend.Backend, online bool) (*AuthService, *recordingState, *notifytest.Recorder, *syncqueue.Queue) {
	st := &recordingState{}
	rec := &notifytest.Recorder{}
	q := syncqueue.New(persistence.NewMemorySlots(), nil)
	s := NewAuthService(testConfig(), AuthDependencies{
		Backend:  b,
		Queue:    q,
		Notifier: rec,
		State:    st,
		Online:   func() bool { return online },
	})
	return s, st, rec, q
}

func lastMessage(t *testing.T, rec *notifytest.Recorder) notify.Toast {
	t.Helper()
	toast, ok := rec.Last()
	require.True(t, ok)
	return toast
}

func TestDemoLogin(t *testing.T) {
	s, st, rec, _ := newService(nil, true)
	require.True(t, s.DemoMode())

	user, err := s.Login(context.Background(), "ana@uni.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Demo", user.FirstName)
	assert.Equal(t, "User", user.LastName)
	assert.Equal(t, domain.PlaceholderStudentID, user.StudentID)
	assert.Equal(t, "ana@uni.edu", st.current().Email)
	assert.Equal(t, MsgDemoLoginSuccess, lastMessage(t, rec).Message)
}

func TestDemoLoginHonoursContext(t *testing.T) {
	s, st, rec, _ := newService(nil, true)
	s.demoDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Login(ctx, "ana@uni.edu", "secret1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, st.current())
	assert.Equal(t, MsgLoginFailed, lastMessage(t, rec).Message)
}

func TestDemoRegisterSignsInSubmittedProfile(t *testing.T) {
	s, st, rec, _ := newService(nil, true)
	user, err := s.Register(context.Background(), domain.RegistrationProfile{
		FirstName: "Bo", LastName: "Chen", StudentID: "UE-00000002", Email: "bo@uni.edu",
	})
	require.NoError(t, err)
	assert.Equal(t, "UE-00000002", user.StudentID)
	assert.Equal(t, "Bo", st.current().FirstName)
	assert.Equal(t, MsgDemoRegisterSuccess, lastMessage(t, rec).Message)
}

func TestDemoLogoutAndOAuth(t *testing.T) {
	s, st, rec, _ := newService(nil, true)
	st.SignedIn(domain.UserRecord{ID: "x"})

	require.NoError(t, s.Logout(context.Background()))
	assert.Nil(t, st.current())
	assert.Equal(t, notify.KindInfo, lastMessage(t, rec).Kind)
	assert.Equal(t, MsgLogoutSuccess, lastMessage(t, rec).Message)

	_, err := s.SignInWithOAuth(context.Background(), "google")
	require.Error(t, err)
	toast := lastMessage(t, rec)
	assert.Equal(t, MsgOAuthDemo, toast.Message)
	assert.Equal(t, notify.KindWarning, toast.Kind)
}

func TestLoginSurfacesBackendMessage(t *testing.T) {
	b := &stubBackend{signInErr: apperrors.NewBackendError("Invalid login credentials", http.StatusBadRequest)}
	s, st, rec, _ := newService(b, true)

	_, err := s.Login(context.Background(), "ana@uni.edu", "wrong-pw")
	require.Error(t, err)
	assert.Nil(t, st.current())
	toast := lastMessage(t, rec)
	assert.Equal(t, "Invalid login credentials", toast.Message)
	assert.Equal(t, notify.KindError, toast.Kind)
	assert.Len(t, rec.All(), 1)
}

func TestLoginTransportFailureUsesGenericMessage(t *testing.T) {
	b := &stubBackend{signInErr: apperrors.NewNetworkOffline(nil)}
	s, _, rec, _ := newService(b, true)

	_, err := s.Login(context.Background(), "ana@uni.edu", "secret1")
	require.Error(t, err)
	assert.Equal(t, MsgLoginFailed, lastMessage(t, rec).Message)
}

func TestLoginWithBackend(t *testing.T) {
	b := &stubBackend{}
	s, st, rec, _ := newService(b, true)

	user, err := s.Login(context.Background(), "ana@uni.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "u-1", st.current().ID)
	assert.Len(t, rec.All(), 1)
	assert.Equal(t, MsgLoginSuccess, lastMessage(t, rec).Message)

	require.NoError(t, s.Logout(context.Background()))
	assert.Nil(t, st.current())
}

func TestRegisterPendingConfirmationUpsertsProfile(t *testing.T) {
	b := &stubBackend{signUp: &backend.SignUpResult{User: domain.UserRecord{ID: "u-2", FirstName: "Bo", LastName: "Chen"}}}
	s, st, rec, _ := newService(b, true)

	_, err := s.Register(context.Background(), domain.RegistrationProfile{FirstName: "Bo", LastName: "Chen"})
	require.NoError(t, err)
	assert.Nil(t, st.current())
	assert.Equal(t, MsgRegisterSuccess, lastMessage(t, rec).Message)
	require.Len(t, b.upserts, 1)
	assert.Equal(t, "Bo Chen", b.upserts[0].(domain.Profile).FullName)
}

func TestRegisterQueuesProfileWhenOffline(t *testing.T) {
	session := &domain.Session{AccessToken: "t"}
	b := &stubBackend{signUp: &backend.SignUpResult{User: domain.UserRecord{ID: "u-2"}, Session: session}}
	s, st, _, q := newService(b, false)

	_, err := s.Register(context.Background(), domain.RegistrationProfile{})
	require.NoError(t, err)
	assert.Equal(t, "u-2", st.current().ID)
	assert.Empty(t, b.upserts)

	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.SyncUserProfile, pending[0].Type)
}

func TestRegisterQueuesProfileOnNetworkFailure(t *testing.T) {
	b := &stubBackend{
		signUp:    &backend.SignUpResult{User: domain.UserRecord{ID: "u-2"}},
		upsertErr: apperrors.NewNetworkOffline(nil),
	}
	s, _, _, q := newService(b, true)

	_, err := s.Register(context.Background(), domain.RegistrationProfile{})
	require.NoError(t, err)
	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLogoutFailure(t *testing.T) {
	b := &stubBackend{signOut: apperrors.NewNetworkOffline(nil)}
	s, st, rec, _ := newService(b, true)
	st.SignedIn(domain.UserRecord{ID: "u-1"})

	require.Error(t, s.Logout(context.Background()))
	assert.NotNil(t, st.current())
	assert.Equal(t, MsgLogoutFailed, lastMessage(t, rec).Message)
}

func TestRestoreSessionAndOAuth(t *testing.T) {
	b := &stubBackend{session: &domain.Session{User: domain.UserRecord{ID: "u-7"}}}
	s, st, rec, _ := newService(b, true)

	user, err := s.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-7", user.ID)
	assert.Equal(t, "u-7", st.current().ID)

	url, err := s.SignInWithOAuth(context.Background(), "google")
	require.NoError(t, err)
	assert.Contains(t, url, "provider=google")
	assert.Contains(t, url, "redirect_to=http://127.0.0.1:8080/")
	assert.Empty(t, rec.All())
}
