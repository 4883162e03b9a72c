package goals

import "errors"

var (
	// ErrNotFound means no entity matched the identifier.
	ErrNotFound = errors.New("goals: not found")
	// ErrValidation rejects input before any persistence call.
	ErrValidation = errors.New("goals: invalid input")
	// ErrInvalidCode means an invite code matched no group.
	ErrInvalidCode = errors.New("goals: invalid invite code")
	// ErrAlreadyMember rejects a join by an existing member.
	ErrAlreadyMember = errors.New("goals: already a member")
	// ErrEmailTaken rejects registration with a duplicate email.
	ErrEmailTaken = errors.New("goals: email already registered")
	// ErrNotOwner rejects mutation of a goal by anyone but its owner.
	ErrNotOwner = errors.New("goals: not the goal owner")
	// ErrLastSmallGoal guards the final checklist item of a goal.
	ErrLastSmallGoal = errors.New("goals: a goal must keep at least one small goal")
	// ErrInviteExhausted means invite code generation kept colliding.
	ErrInviteExhausted = errors.New("goals: could not generate a unique invite code")
)
