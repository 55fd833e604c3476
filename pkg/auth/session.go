package auth

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoSession is returned by Store.Load when no tokens are stored.
	ErrNoSession = errors.New("auth: no session")
	// ErrNotLoggedIn is returned by Authenticator.Do when a protected request
	// is attempted without a session. The request is not sent.
	ErrNotLoggedIn = errors.New("auth: not logged in")
	// ErrRefreshFailed reports a rejected or failed token refresh. The session
	// has been cleared by the time it is returned.
	ErrRefreshFailed = errors.New("auth: token refresh failed")
)

// Role values issued by the login endpoint.
const (
	RoleAdmin       = "admin"
	RoleConsultancy = "consultancy"
	RoleUniversity  = "university"
)

// Session is the persisted login state.
type Session struct {
	AccessToken  string
	RefreshToken string
	Role         string
	// EntityID is the consultancy or university id attached to a dashboard
	// account, depending on Role.
	EntityID string
}

// Valid reports whether the session carries an access token.
func (s Session) Valid() bool {
	return s.AccessToken != ""
}

// Store persists a Session across process runs.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
}

// NewMemoryStore returns a store seeded with session. Pass the zero Session
// for a logged-out store.
func NewMemoryStore(session Session) *MemoryStore {
	return &MemoryStore{session: session}
}

func (m *MemoryStore) Load(context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.Valid() {
		return Session{}, ErrNoSession
	}
	return m.session, nil
}

func (m *MemoryStore) Save(_ context.Context, session Session) error {
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.session = Session{}
	m.mu.Unlock()
	return nil
}
