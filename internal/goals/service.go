package goals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"goalboard.org/internal/auth"
	"goalboard.org/internal/ids"
)

// Service defines every operation the application performs, independent
// of where the data lives. The local implementation below runs against
// a Store; the remote package implements the same interface over HTTP.
// The two are selected once at startup and are interchangeable.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*User, string, error)
	Login(ctx context.Context, email, password string) (*User, string, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*User, error)

	CreateGroup(ctx context.Context, name, description string) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	GetGroup(ctx context.Context, id string) (*Group, error)
	JoinGroup(ctx context.Context, inviteCode string) (*Group, error)

	CreateGoal(ctx context.Context, in GoalInput) (*BigGoal, error)
	GetGoal(ctx context.Context, id string) (*BigGoal, error)
	UpdateGoal(ctx context.Context, id string, in GoalInput) (*BigGoal, error)
	DeleteGoal(ctx context.Context, id string) error
	ListGroupGoals(ctx context.Context, groupID string) ([]*BigGoal, error)

	AddSmallGoal(ctx context.Context, goalID, title string) (*SmallGoal, error)
	UpdateSmallGoal(ctx context.Context, goalID, smallID string, patch SmallGoalPatch) (*SmallGoal, error)
	DeleteSmallGoal(ctx context.Context, goalID, smallID string) error
}

// GoalInput carries a big goal create or wholesale update. On update
// the small-goal collection replaces the stored one; items keeping
// their identifier keep their identity.
type GoalInput struct {
	Category    Category         `json:"tipo"`
	Title       string           `json:"titulo"`
	Description string           `json:"descricao,omitempty"`
	Status      GoalStatus       `json:"status,omitempty"`
	StartDate   string           `json:"dataInicio"`
	DueDate     string           `json:"dataPrazo,omitempty"`
	SmallGoals  []SmallGoalInput `json:"metasPequenas,omitempty"`
}

// SmallGoalInput is one checklist item within a GoalInput.
type SmallGoalInput struct {
	ID     string          `json:"id,omitempty"`
	Title  string          `json:"titulo"`
	Status SmallGoalStatus `json:"status,omitempty"`
}

// SmallGoalPatch updates title and/or status of a single small goal.
type SmallGoalPatch struct {
	Title  *string          `json:"titulo,omitempty"`
	Status *SmallGoalStatus `json:"status,omitempty"`
}

// TokenIssuer mints the opaque credential returned by Register and
// Login. The server wires JWT issuance here; the local backend uses
// random identifiers since nothing validates them on the same machine.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type randomTokenIssuer struct{}

func (randomTokenIssuer) Issue(string) (string, error) { return uuid.NewString(), nil }

const defaultInviteAttempts = 5

// LocalService implements Service against a Store.
type LocalService struct {
	store          Store
	now            func() time.Time
	tokens         TokenIssuer
	inviteAttempts int
}

var _ Service = (*LocalService)(nil)

// ServiceOption configures LocalService behavior.
type ServiceOption func(*LocalService)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *LocalService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTokenIssuer replaces the default random token issuer.
func WithTokenIssuer(issuer TokenIssuer) ServiceOption {
	return func(s *LocalService) {
		if issuer != nil {
			s.tokens = issuer
		}
	}
}

// NewService constructs a LocalService over store.
func NewService(store Store, opts ...ServiceOption) *LocalService {
	svc := &LocalService{
		store:          store,
		now:            time.Now,
		tokens:         randomTokenIssuer{},
		inviteAttempts: defaultInviteAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Auth ---------------------------------------------------------------------

func (s *LocalService) Register(ctx context.Context, name, email, password string) (*User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return nil, "", fmt.Errorf("%w: nome is required", ErrValidation)
	case email == "" || !strings.Contains(email, "@"):
		return nil, "", fmt.Errorf("%w: a valid email is required", ErrValidation)
	case password == "":
		return nil, "", fmt.Errorf("%w: password is required", ErrValidation)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	user := &User{Name: name, Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *LocalService) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", auth.ErrUnauthorized
		}
		return nil, "", err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, "", auth.ErrUnauthorized
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout is stateless on the service side; session teardown belongs to
// the session manager.
func (s *LocalService) Logout(ctx context.Context) error { return nil }

func (s *LocalService) Me(ctx context.Context) (*User, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Users(ctx).Find(ctx, actor)
}

// Groups -------------------------------------------------------------------

func (s *LocalService) CreateGroup(ctx context.Context, name, description string) (*Group, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: nome is required", ErrValidation)
	}
	code, err := s.uniqueInviteCode(ctx)
	if err != nil {
		return nil, err
	}
	group := &Group{
		Name:        name,
		Description: strings.TrimSpace(description),
		InviteCode:  code,
		CreatorID:   actor,
		MemberIDs:   []string{actor},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Groups(ctx).Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// uniqueInviteCode regenerates on collision instead of letting two
// groups share a code, which would make join ambiguous.
func (s *LocalService) uniqueInviteCode(ctx context.Context) (string, error) {
	groups := s.store.Groups(ctx)
	for i := 0; i < s.inviteAttempts; i++ {
		code := NewInviteCode()
		_, err := groups.FindByInviteCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrInviteExhausted
}

func (s *LocalService) ListGroups(ctx context.Context) ([]*Group, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Groups(ctx).ListByMember(ctx, actor)
}

func (s *LocalService) GetGroup(ctx context.Context, id string) (*Group, error) {
	if _, err := s.actor(ctx); err != nil {
		return nil, err
	}
	return s.store.Groups(ctx).Find(ctx, id)
}

func (s *LocalService) JoinGroup(ctx context.Context, inviteCode string) (*Group, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	if inviteCode == "" {
		return nil, fmt.Errorf("%w: codigoConvite is required", ErrValidation)
	}
	groups := s.store.Groups(ctx)
	group, err := groups.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if !CanRedeemInvite(group, actor) {
		return nil, ErrAlreadyMember
	}
	// AddMember is atomic in every store, so a concurrent redemption
	// cannot drop a member or duplicate one.
	if err := groups.AddMember(ctx, group.ID, actor); err != nil {
		return nil, err
	}
	return groups.Find(ctx, group.ID)
}

// Goals --------------------------------------------------------------------

func (s *LocalService) CreateGoal(ctx context.Context, in GoalInput) (*BigGoal, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateGoalInput(&in); err != nil {
		return nil, err
	}
	goal := &BigGoal{
		UserID:      actor,
		Category:    in.Category,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
		SmallGoals:  buildSmallGoals(in.SmallGoals),
	}
	if err := s.store.Goals(ctx).Create(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *LocalService) GetGoal(ctx context.Context, id string) (*BigGoal, error) {
	if _, err := s.actor(ctx); err != nil {
		return nil, err
	}
	goal, err := s.store.Goals(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.embedOwner(ctx, goal)
	return goal, nil
}

func (s *LocalService) UpdateGoal(ctx context.Context, id string, in GoalInput) (*BigGoal, error) {
	goal, err := s.ownedGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateGoalInput(&in); err != nil {
		return nil, err
	}
	if len(goal.SmallGoals) > 0 && len(in.SmallGoals) == 0 {
		return nil, ErrLastSmallGoal
	}
	goal.Category = in.Category
	goal.Title = strings.TrimSpace(in.Title)
	goal.Description = strings.TrimSpace(in.Description)
	goal.Status = in.Status
	goal.StartDate = in.StartDate
	goal.DueDate = in.DueDate
	goal.SmallGoals = buildSmallGoals(in.SmallGoals)
	goal.Owner = nil
	if err := s.store.Goals(ctx).Update(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *LocalService) DeleteGoal(ctx context.Context, id string) error {
	_, err := s.ownedGoal(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Delete is idempotent.
			return nil
		}
		return err
	}
	return s.store.Goals(ctx).Delete(ctx, id)
}

func (s *LocalService) ListGroupGoals(ctx context.Context, groupID string) ([]*BigGoal, error) {
	if _, err := s.actor(ctx); err != nil {
		return nil, err
	}
	group, err := s.store.Groups(ctx).Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.Goals(ctx).ListByOwners(ctx, MembersOf(group))
	if err != nil {
		return nil, err
	}
	refs := make(map[string]*UserRef)
	for _, goal := range list {
		ref, ok := refs[goal.UserID]
		if !ok {
			if u, err := s.store.Users(ctx).Find(ctx, goal.UserID); err == nil {
				ref = u.Ref()
			}
			refs[goal.UserID] = ref
		}
		goal.Owner = ref
	}
	return list, nil
}

// Small goals --------------------------------------------------------------

func (s *LocalService) AddSmallGoal(ctx context.Context, goalID, title string) (*SmallGoal, error) {
	goal, err := s.ownedGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: titulo is required", ErrValidation)
	}
	sg := SmallGoal{ID: ids.New(), Title: title, Status: SmallGoalPending}
	goal.SmallGoals = append(goal.SmallGoals, sg)
	if err := s.store.Goals(ctx).Update(ctx, goal); err != nil {
		return nil, err
	}
	return &sg, nil
}

func (s *LocalService) UpdateSmallGoal(ctx context.Context, goalID, smallID string, patch SmallGoalPatch) (*SmallGoal, error) {
	goal, err := s.ownedGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	for i := range goal.SmallGoals {
		if goal.SmallGoals[i].ID != smallID {
			continue
		}
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return nil, fmt.Errorf("%w: titulo is required", ErrValidation)
			}
			goal.SmallGoals[i].Title = title
		}
		if patch.Status != nil {
			if !patch.Status.Valid() {
				return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *patch.Status)
			}
			goal.SmallGoals[i].Status = *patch.Status
		}
		if err := s.store.Goals(ctx).Update(ctx, goal); err != nil {
			return nil, err
		}
		sg := goal.SmallGoals[i]
		return &sg, nil
	}
	return nil, ErrNotFound
}

func (s *LocalService) DeleteSmallGoal(ctx context.Context, goalID, smallID string) error {
	goal, err := s.ownedGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if len(goal.SmallGoals) <= 1 {
		return ErrLastSmallGoal
	}
	kept := goal.SmallGoals[:0]
	found := false
	for _, sg := range goal.SmallGoals {
		if sg.ID == smallID {
			found = true
			continue
		}
		kept = append(kept, sg)
	}
	if !found {
		// Idempotent like every delete.
		return nil
	}
	goal.SmallGoals = kept
	return s.store.Goals(ctx).Update(ctx, goal)
}

// Helpers ------------------------------------------------------------------

func (s *LocalService) actor(ctx context.Context) (string, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", auth.ErrUnauthorized
	}
	return userID, nil
}

// embedOwner attaches a display reference of the goal owner; lookup
// failures leave the goal unchanged rather than failing the read.
func (s *LocalService) embedOwner(ctx context.Context, goal *BigGoal) {
	if goal == nil {
		return
	}
	if u, err := s.store.Users(ctx).Find(ctx, goal.UserID); err == nil {
		goal.Owner = u.Ref()
	}
}

// ownedGoal loads the goal and enforces that the context actor owns it.
// Non-owners may view goals but never mutate them, completion toggles
// included.
func (s *LocalService) ownedGoal(ctx context.Context, id string) (*BigGoal, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	goal, err := s.store.Goals(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsOwner(goal, actor) {
		return nil, ErrNotOwner
	}
	goal.Owner = nil
	return goal, nil
}

func validateGoalInput(in *GoalInput) error {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return fmt.Errorf("%w: titulo is required", ErrValidation)
	case !in.Category.Valid():
		return fmt.Errorf("%w: unknown tipo %q", ErrValidation, in.Category)
	case strings.TrimSpace(in.StartDate) == "":
		return fmt.Errorf("%w: dataInicio is required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = GoalActive
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}
	for _, sg := range in.SmallGoals {
		if strings.TrimSpace(sg.Title) == "" {
			return fmt.Errorf("%w: small goal titulo is required", ErrValidation)
		}
		if sg.Status != "" && !sg.Status.Valid() {
			return fmt.Errorf("%w: unknown small goal status %q", ErrValidation, sg.Status)
		}
	}
	return nil
}

func buildSmallGoals(in []SmallGoalInput) []SmallGoal {
	out := make([]SmallGoal, 0, len(in))
	for _, item := range in {
		sg := SmallGoal{
			ID:     item.ID,
			Title:  strings.TrimSpace(item.Title),
			Status: item.Status,
		}
		if sg.ID == "" {
			sg.ID = ids.New()
		}
		if sg.Status == "" {
			sg.Status = SmallGoalPending
		}
		out = append(out, sg)
	}
	return out
}
