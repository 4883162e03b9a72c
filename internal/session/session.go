// Package session holds the client's view of who is logged in and
// which group is selected. State is an explicit object with a defined
// lifecycle, persisted through a Store so it survives process restarts,
// never ambient globals.
package session

import (
	"context"
	"errors"
	"sync"

	"goalboard.org/internal/goals"
)

// State is the client's authentication state.
type State int

const (
	// Anonymous means no user is logged in.
	Anonymous State = iota
	// AuthenticatedNoGroup means a user is logged in but no group is selected.
	AuthenticatedNoGroup
	// AuthenticatedInGroup means both a user and a group are active.
	AuthenticatedInGroup
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case AuthenticatedNoGroup:
		return "authenticated"
	case AuthenticatedInGroup:
		return "in-group"
	default:
		return "unknown"
	}
}

// ErrNotAuthenticated signals that a login is required. Callers treat
// it as a redirect to the login flow rather than a hard failure.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// ErrNoGroup signals that a group must be selected or created first.
var ErrNoGroup = errors.New("session: no group selected")

// Snapshot is the persisted session state.
type Snapshot struct {
	User  *goals.User  `json:"user,omitempty"`
	Group *goals.Group `json:"group,omitempty"`
	Token string       `json:"token,omitempty"`
}

// Store persists a snapshot between runs. Save and Clear must be
// atomic: a reader never observes a half-written session.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

// Manager owns the current session for a single client process.
type Manager struct {
	mu    sync.Mutex
	store Store
	cur   Snapshot
}

// NewManager loads the persisted session, if any.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, cur: snap}, nil
}

// State reports the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.cur.User == nil:
		return Anonymous
	case m.cur.Group == nil:
		return AuthenticatedNoGroup
	default:
		return AuthenticatedInGroup
	}
}

// Login records the authenticated user and token and drops any group
// selection left over from a previous identity.
func (m *Manager) Login(ctx context.Context, user *goals.User, token string) error {
	if user == nil || user.ID == "" {
		return ErrNotAuthenticated
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := Snapshot{User: user, Token: token}
	if err := m.store.Save(ctx, next); err != nil {
		return err
	}
	m.cur = next
	return nil
}

// SelectGroup sets the active group. It requires a logged-in user.
func (m *Manager) SelectGroup(ctx context.Context, group *goals.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.User == nil {
		return ErrNotAuthenticated
	}
	next := m.cur
	next.Group = group
	if err := m.store.Save(ctx, next); err != nil {
		return err
	}
	m.cur = next
	return nil
}

// Logout clears user, group and token together. There is no partial
// clear: the store wipes everything in one operation before the
// in-memory state is reset.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.cur = Snapshot{}
	return nil
}

// CurrentUser returns the logged-in user, or nil.
func (m *Manager) CurrentUser() *goals.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.User
}

// CurrentGroup returns the selected group, or nil.
func (m *Manager) CurrentGroup() *goals.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.Group
}

// Token returns the auth token, or the empty string.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.Token
}

// RequireUser returns ErrNotAuthenticated unless a user is logged in.
func (m *Manager) RequireUser() (*goals.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.User == nil {
		return nil, ErrNotAuthenticated
	}
	return m.cur.User, nil
}

// RequireGroup returns the selected group, or the error describing
// which screen the caller should be redirected to.
func (m *Manager) RequireGroup() (*goals.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.User == nil {
		return nil, ErrNotAuthenticated
	}
	if m.cur.Group == nil {
		return nil, ErrNoGroup
	}
	return m.cur.Group, nil
}

// InMemoryStore keeps the snapshot in process memory. Used by tests and
// by callers that do not want durable sessions.
type InMemoryStore struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewInMemoryStore returns an empty volatile session store.
func NewInMemoryStore() *InMemoryStore { return &InMemoryStore{} }

func (s *InMemoryStore) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *InMemoryStore) Save(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
	return nil
}
