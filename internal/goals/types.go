package goals

import "time"

// Category classifies a big goal. Values match the wire contract.
type Category string

const (
	CategoryProfessional Category = "Profissional"
	CategoryPersonal     Category = "Pessoal"
	CategoryStudies      Category = "Estudos"
	CategoryHealth       Category = "Saúde"
	CategoryOther        Category = "Outro"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryProfessional,
	CategoryPersonal,
	CategoryStudies,
	CategoryHealth,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// GoalStatus is the lifecycle state of a big goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "ativa"
	GoalPaused    GoalStatus = "pausada"
	GoalCompleted GoalStatus = "concluída"
)

// Valid reports whether s is a known big-goal status.
func (s GoalStatus) Valid() bool {
	return s == GoalActive || s == GoalPaused || s == GoalCompleted
}

// SmallGoalStatus is the state of a checklist item.
type SmallGoalStatus string

const (
	SmallGoalPending   SmallGoalStatus = "pendente"
	SmallGoalCompleted SmallGoalStatus = "concluída"
)

// Valid reports whether s is a known small-goal status.
func (s SmallGoalStatus) Valid() bool {
	return s == SmallGoalPending || s == SmallGoalCompleted
}

// User is a registered account. The password hash never leaves the
// persistence layer in API responses.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"nome"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Ref returns the embeddable public view of the user.
func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserRef is the public projection of a user embedded in goal listings.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
}

// Group is a shared space whose members' goals appear on one board.
// MemberIDs preserves join order and contains no duplicates; the
// creator is always the first member.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"nome"`
	Description string    `json:"descricao"`
	InviteCode  string    `json:"codigoConvite"`
	CreatorID   string    `json:"criadorId"`
	MemberIDs   []string  `json:"membrosIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SmallGoal is a checklist item belonging to exactly one big goal.
type SmallGoal struct {
	ID     string          `json:"id"`
	Title  string          `json:"titulo"`
	Status SmallGoalStatus `json:"status"`
}

// BigGoal is a top-level user goal. It does not store a group: board
// visibility is derived from group membership of the owner.
// Dates are ISO strings (YYYY-MM-DD) as on the wire.
type BigGoal struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Category    Category    `json:"tipo"`
	Title       string      `json:"titulo"`
	Description string      `json:"descricao,omitempty"`
	Status      GoalStatus  `json:"status"`
	SmallGoals  []SmallGoal `json:"metasPequenas"`
	StartDate   string      `json:"dataInicio"`
	DueDate     string      `json:"dataPrazo,omitempty"`
	Owner       *UserRef    `json:"user,omitempty"`
}

// Clone returns a deep copy so store internals never leak to callers.
func (g *BigGoal) Clone() *BigGoal {
	if g == nil {
		return nil
	}
	out := *g
	out.SmallGoals = make([]SmallGoal, len(g.SmallGoals))
	copy(out.SmallGoals, g.SmallGoals)
	if g.Owner != nil {
		owner := *g.Owner
		out.Owner = &owner
	}
	return &out
}

// Clone returns a copy with its own member slice.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	out := *g
	out.MemberIDs = make([]string, len(g.MemberIDs))
	copy(out.MemberIDs, g.MemberIDs)
	return &out
}
