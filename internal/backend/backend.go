// Package backend talks to the auth/storage product the kiosk delegates to.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
)

// AuthListener is told about sign-in and sign-out transitions.
type AuthListener func(event domain.AuthEvent, session *domain.Session)

// RecordStore writes rows to the logical tables.
type RecordStore interface {
	Insert(ctx context.Context, table string, record any) error
	Upsert(ctx context.Context, table string, record any) error
}

// SignUpResult carries the created user and, when the backend signs the
// user in straight away, the session.
type SignUpResult struct {
	User    domain.UserRecord
	Session *domain.Session
}

// Backend is the hosted auth product plus its record store.
type Backend interface {
	RecordStore
	// GetSession returns the persisted session, or nil when signed out.
	GetSession(ctx context.Context) (*domain.Session, error)
	OnAuthStateChange(listener AuthListener)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, profile domain.RegistrationProfile) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	// OAuthURL returns the URL that starts the provider's sign-in flow.
	OAuthURL(ctx context.Context, provider, redirectTo string) (string, error)
}

type listeners struct {
	mu  sync.RWMutex
	fns []AuthListener
}

func (l *listeners) add(fn AuthListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *listeners) emit(event domain.AuthEvent, session *domain.Session) {
	l.mu.RLock()
	fns := append([]AuthListener(nil), l.fns...)
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(event, session)
	}
}

// SessionKey is the slot the active session is persisted under.
const SessionKey = "vitalwarrior.session"

// sessionStore persists the session so a restart keeps the user signed in.
type sessionStore struct {
	slots persistence.SlotStore
}

func (s sessionStore) load(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := s.slots.Get(ctx, SessionKey)
	if err != nil || !ok {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s sessionStore) save(ctx context.Context, session *domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.slots.Set(ctx, SessionKey, string(raw))
}

func (s sessionStore) clear(ctx context.Context) error {
	return s.slots.Delete(ctx, SessionKey)
}

// decodeRecord converts a record given as a struct, map or raw JSON into dst.
func decodeRecord(record any, dst any) error {
	var raw []byte
	switch r := record.(type) {
	case json.RawMessage:
		raw = r
	case []byte:
		raw = r
	default:
		var err error
		if raw, err = json.Marshal(record); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dst)
}
