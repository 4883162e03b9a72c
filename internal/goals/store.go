package goals

import "context"

// Store describes persistence operations required by the goals service.
// Implementations must be interchangeable: the in-memory store, the
// SQLite client store, and the PostgreSQL server store all conform.
type Store interface {
	Users(ctx context.Context) UserStore
	Groups(ctx context.Context) GroupStore
	Goals(ctx context.Context) GoalStore
}

// UserStore manages registered accounts.
type UserStore interface {
	// Create assigns an identifier when empty and fails with
	// ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// GroupStore manages groups and their membership.
type GroupStore interface {
	Create(ctx context.Context, g *Group) error
	Find(ctx context.Context, id string) (*Group, error)
	// FindByInviteCode returns ErrNotFound when no group carries the code.
	FindByInviteCode(ctx context.Context, code string) (*Group, error)
	// ListByMember returns groups containing userID, ordered by creation.
	ListByMember(ctx context.Context, userID string) ([]*Group, error)
	// AddMember appends atomically, preserving join order. It returns
	// ErrAlreadyMember when userID is present and ErrNotFound when the
	// group does not exist.
	AddMember(ctx context.Context, groupID, userID string) error
}

// GoalStore manages big goals together with their small goals.
type GoalStore interface {
	Create(ctx context.Context, g *BigGoal) error
	Find(ctx context.Context, id string) (*BigGoal, error)
	// Update replaces the stored goal, including the whole small-goal
	// collection. ErrNotFound when the identifier is absent.
	Update(ctx context.Context, g *BigGoal) error
	// Delete is idempotent: removing an absent identifier is not an error.
	Delete(ctx context.Context, id string) error
	// ListByOwners returns goals owned by any of userIDs in ascending
	// identifier order (creation order).
	ListByOwners(ctx context.Context, userIDs []string) ([]*BigGoal, error)
}
