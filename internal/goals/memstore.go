package goals

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"goalboard.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. The
// server uses it when no database is configured; tests use it everywhere.
type InMemory struct {
	mu     sync.RWMutex
	users  map[string]*User
	groups map[string]*Group
	goals  map[string]*BigGoal
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:  make(map[string]*User),
		groups: make(map[string]*Group),
		goals:  make(map[string]*BigGoal),
	}
}

func (s *InMemory) Users(ctx context.Context) UserStore   { return (*memUsers)(s) }
func (s *InMemory) Groups(ctx context.Context) GroupStore { return (*memGroups)(s) }
func (s *InMemory) Goals(ctx context.Context) GoalStore   { return (*memGoals)(s) }

// Users --------------------------------------------------------------------

type memUsers InMemory

func (s *memUsers) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, email) {
			return ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = email
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Groups -------------------------------------------------------------------

type memGroups InMemory

func (s *memGroups) Create(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = ids.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.groups[g.ID] = g.Clone()
	return nil
}

func (s *memGroups) Find(ctx context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *memGroups) FindByInviteCode(ctx context.Context, code string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.InviteCode == code {
			return g.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memGroups) ListByMember(ctx context.Context, userID string) ([]*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Group
	for _, g := range s.groups {
		for _, m := range g.MemberIDs {
			if m == userID {
				res = append(res, g.Clone())
				break
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *memGroups) AddMember(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	for _, m := range g.MemberIDs {
		if m == userID {
			return ErrAlreadyMember
		}
	}
	g.MemberIDs = append(g.MemberIDs, userID)
	return nil
}

// Goals --------------------------------------------------------------------

type memGoals InMemory

func (s *memGoals) Create(ctx context.Context, g *BigGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = ids.New()
	}
	for i := range g.SmallGoals {
		if g.SmallGoals[i].ID == "" {
			g.SmallGoals[i].ID = ids.New()
		}
	}
	s.goals[g.ID] = g.Clone()
	return nil
}

func (s *memGoals) Find(ctx context.Context, id string) (*BigGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *memGoals) Update(ctx context.Context, g *BigGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; !ok {
		return ErrNotFound
	}
	for i := range g.SmallGoals {
		if g.SmallGoals[i].ID == "" {
			g.SmallGoals[i].ID = ids.New()
		}
	}
	s.goals[g.ID] = g.Clone()
	return nil
}

func (s *memGoals) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

func (s *memGoals) ListByOwners(ctx context.Context, userIDs []string) ([]*BigGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		owners[id] = struct{}{}
	}
	var res []*BigGoal
	for _, g := range s.goals {
		if _, ok := owners[g.UserID]; ok {
			res = append(res, g.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
