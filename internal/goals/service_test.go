package goals

import (
	"context"
	"errors"
	"testing"

	"goalboard.org/internal/auth"
)

func newTestService(t *testing.T) (*LocalService, Store) {
	t.Helper()
	store := NewInMemory()
	return NewService(store), store
}

func registerUser(t *testing.T, svc *LocalService, name, email string) (*User, context.Context) {
	t.Helper()
	user, token, err := svc.Register(context.Background(), name, email, "senha123")
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	if token == "" {
		t.Fatal("expected a token at registration")
	}
	return user, auth.ContextWithUser(context.Background(), user.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct{ name, email, password string }{
		{"", "a@b.c", "pw"},
		{"Ana", "", "pw"},
		{"Ana", "not-an-email", "pw"},
		{"Ana", "a@b.c", ""},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(ctx, tc.name, tc.email, tc.password); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", tc, err)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	registerUser(t, svc, "Ana", "ana@example.com")
	if _, _, err := svc.Register(context.Background(), "Outra", "Ana@Example.com", "pw"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	svc, _ := newTestService(t)
	registerUser(t, svc, "Ana", "ana@example.com")

	user, token, err := svc.Login(context.Background(), "ana@example.com", "senha123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Email != "ana@example.com" || token == "" {
		t.Fatalf("unexpected login result: %+v, token=%q", user, token)
	}
	if _, _, err := svc.Login(context.Background(), "ana@example.com", "errada"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "ninguem@example.com", "pw"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}
}

func TestCreateGroupMakesCreatorFirstMember(t *testing.T) {
	svc, _ := newTestService(t)
	ana, ctx := registerUser(t, svc, "Ana", "ana@example.com")

	group, err := svc.CreateGroup(ctx, "Leitura", "clube do livro")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if group.CreatorID != ana.ID {
		t.Fatalf("creator mismatch: %s", group.CreatorID)
	}
	if len(group.MemberIDs) != 1 || group.MemberIDs[0] != ana.ID {
		t.Fatalf("expected creator as sole member, got %v", group.MemberIDs)
	}
	if len(group.InviteCode) != 6 {
		t.Fatalf("unexpected invite code %q", group.InviteCode)
	}
}

func TestJoinGroupByInviteCode(t *testing.T) {
	svc, _ := newTestService(t)
	ana, ctxAna := registerUser(t, svc, "Ana", "ana@example.com")
	bia, ctxBia := registerUser(t, svc, "Bia", "bia@example.com")

	group, err := svc.CreateGroup(ctxAna, "Leitura", "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	joined, err := svc.JoinGroup(ctxBia, group.InviteCode)
	if err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}
	want := []string{ana.ID, bia.ID}
	if len(joined.MemberIDs) != 2 || joined.MemberIDs[0] != want[0] || joined.MemberIDs[1] != want[1] {
		t.Fatalf("unexpected member order: %v", joined.MemberIDs)
	}

	// Creator stays a member after every join.
	if !CanRedeemInvite(joined, "someone-else") || CanRedeemInvite(joined, ana.ID) {
		t.Fatal("membership invariant broken")
	}
}

func TestJoinGroupRejectsExistingMember(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctxAna := registerUser(t, svc, "Ana", "ana@example.com")

	group, err := svc.CreateGroup(ctxAna, "Leitura", "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := svc.JoinGroup(ctxAna, group.InviteCode); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	again, err := svc.GetGroup(ctxAna, group.ID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if len(again.MemberIDs) != 1 {
		t.Fatalf("member duplicated: %v", again.MemberIDs)
	}
}

func TestJoinGroupRejectsUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctx := registerUser(t, svc, "Ana", "ana@example.com")

	if _, err := svc.JoinGroup(ctx, "XXXXXX"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	groups, err := svc.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("group state changed by failed join: %v", groups)
	}
}

func TestGoalRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctx := registerUser(t, svc, "Ana", "ana@example.com")

	in := GoalInput{
		Category:  CategoryStudies,
		Title:     "Ler 12 livros",
		StartDate: "2026-01-01",
		SmallGoals: []SmallGoalInput{
			{Title: "Livro 1"},
			{Title: "Livro 2"},
			{Title: "Livro 3"},
		},
	}
	created, err := svc.CreateGoal(ctx, in)
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if created.Status != GoalActive {
		t.Fatalf("expected default status ativa, got %s", created.Status)
	}

	got, err := svc.GetGoal(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if len(got.SmallGoals) != 3 {
		t.Fatalf("expected 3 small goals, got %d", len(got.SmallGoals))
	}
	for i, sg := range got.SmallGoals {
		if sg.Title != in.SmallGoals[i].Title {
			t.Fatalf("title mismatch at %d: %q", i, sg.Title)
		}
		if sg.Status != SmallGoalPending {
			t.Fatalf("expected pending at %d, got %s", i, sg.Status)
		}
		if sg.ID == "" {
			t.Fatalf("missing id at %d", i)
		}
	}
}

func TestCreateGoalValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctx := registerUser(t, svc, "Ana", "ana@example.com")

	cases := []GoalInput{
		{Category: CategoryStudies, StartDate: "2026-01-01"},                          // no title
		{Category: "Inexistente", Title: "x", StartDate: "2026-01-01"},                // bad category
		{Category: CategoryHealth, Title: "x"},                                       // no start date
		{Category: CategoryHealth, Title: "x", StartDate: "2026-01-01", Status: "??"}, // bad status
		{Category: CategoryHealth, Title: "x", StartDate: "2026-01-01",
			SmallGoals: []SmallGoalInput{{Title: "  "}}}, // blank small goal
	}
	for i, in := range cases {
		if _, err := svc.CreateGoal(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestOnlyOwnerMutatesGoal(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctxAna := registerUser(t, svc, "Ana", "ana@example.com")
	_, ctxBia := registerUser(t, svc, "Bia", "bia@example.com")

	goal, err := svc.CreateGoal(ctxAna, GoalInput{
		Category: CategoryPersonal, Title: "Correr", StartDate: "2026-01-01",
		SmallGoals: []SmallGoalInput{{Title: "5km"}},
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	// Non-owners may view.
	if _, err := svc.GetGoal(ctxBia, goal.ID); err != nil {
		t.Fatalf("non-owner view failed: %v", err)
	}

	// But never mutate, completion toggles included.
	status := SmallGoalCompleted
	if _, err := svc.UpdateSmallGoal(ctxBia, goal.ID, goal.SmallGoals[0].ID, SmallGoalPatch{Status: &status}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on toggle, got %v", err)
	}
	if err := svc.DeleteGoal(ctxBia, goal.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on delete, got %v", err)
	}
	if _, err := svc.GetGoal(ctxAna, goal.ID); err != nil {
		t.Fatalf("goal should still exist: %v", err)
	}

	// The owner can do all of it.
	if _, err := svc.UpdateSmallGoal(ctxAna, goal.ID, goal.SmallGoals[0].ID, SmallGoalPatch{Status: &status}); err != nil {
		t.Fatalf("owner toggle failed: %v", err)
	}
	if err := svc.DeleteGoal(ctxAna, goal.ID); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if _, err := svc.GetGoal(ctxAna, goal.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteGoalIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctx := registerUser(t, svc, "Ana", "ana@example.com")
	if err := svc.DeleteGoal(ctx, "does-not-exist"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestLastSmallGoalGuard(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctx := registerUser(t, svc, "Ana", "ana@example.com")

	goal, err := svc.CreateGoal(ctx, GoalInput{
		Category: CategoryHealth, Title: "Treinar", StartDate: "2026-01-01",
		SmallGoals: []SmallGoalInput{{Title: "Única"}},
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if err := svc.DeleteSmallGoal(ctx, goal.ID, goal.SmallGoals[0].ID); !errors.Is(err, ErrLastSmallGoal) {
		t.Fatalf("expected ErrLastSmallGoal, got %v", err)
	}

	// A wholesale update cannot drop the collection to zero either.
	if _, err := svc.UpdateGoal(ctx, goal.ID, GoalInput{
		Category: CategoryHealth, Title: "Treinar", StartDate: "2026-01-01",
	}); !errors.Is(err, ErrLastSmallGoal) {
		t.Fatalf("expected ErrLastSmallGoal on empty replacement, got %v", err)
	}

	sg, err := svc.AddSmallGoal(ctx, goal.ID, "Segunda")
	if err != nil {
		t.Fatalf("AddSmallGoal: %v", err)
	}
	if err := svc.DeleteSmallGoal(ctx, goal.ID, sg.ID); err != nil {
		t.Fatalf("delete with one remaining should pass: %v", err)
	}
}

func TestUpdateGoalReplacesSmallGoalsWholesale(t *testing.T) {
	svc, _ := newTestService(t)
	_, ctx := registerUser(t, svc, "Ana", "ana@example.com")

	goal, err := svc.CreateGoal(ctx, GoalInput{
		Category: CategoryStudies, Title: "TCC", StartDate: "2026-01-01",
		SmallGoals: []SmallGoalInput{{Title: "Capítulo 1"}, {Title: "Capítulo 2"}},
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	keep := goal.SmallGoals[0]

	updated, err := svc.UpdateGoal(ctx, goal.ID, GoalInput{
		Category: CategoryStudies, Title: "TCC final", StartDate: "2026-01-01", Status: GoalPaused,
		SmallGoals: []SmallGoalInput{
			{ID: keep.ID, Title: "Capítulo 1 revisado", Status: SmallGoalCompleted},
			{Title: "Defesa"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	if updated.Title != "TCC final" || updated.Status != GoalPaused {
		t.Fatalf("fields not replaced: %+v", updated)
	}
	if len(updated.SmallGoals) != 2 {
		t.Fatalf("expected 2 small goals, got %d", len(updated.SmallGoals))
	}
	if updated.SmallGoals[0].ID != keep.ID || updated.SmallGoals[0].Status != SmallGoalCompleted {
		t.Fatalf("existing item lost identity: %+v", updated.SmallGoals[0])
	}
	if updated.SmallGoals[1].ID == "" || updated.SmallGoals[1].Status != SmallGoalPending {
		t.Fatalf("new item not initialized: %+v", updated.SmallGoals[1])
	}
	if Progress(updated) != 50 {
		t.Fatalf("expected progress 50, got %d", Progress(updated))
	}
}

func TestListGroupGoalsEmbedsOwnersInCreationOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ana, ctxAna := registerUser(t, svc, "Ana", "ana@example.com")
	bia, ctxBia := registerUser(t, svc, "Bia", "bia@example.com")

	group, err := svc.CreateGroup(ctxAna, "Time", "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := svc.JoinGroup(ctxBia, group.InviteCode); err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}

	mk := func(ctx context.Context, title string) *BigGoal {
		g, err := svc.CreateGoal(ctx, GoalInput{Category: CategoryOther, Title: title, StartDate: "2026-01-01"})
		if err != nil {
			t.Fatalf("CreateGoal(%s): %v", title, err)
		}
		return g
	}
	mk(ctxBia, "bia-1")
	mk(ctxAna, "ana-1")
	mk(ctxBia, "bia-2")

	list, err := svc.ListGroupGoals(ctxAna, group.ID)
	if err != nil {
		t.Fatalf("ListGroupGoals: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 goals, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID > list[i].ID {
			t.Fatal("goals not in creation order")
		}
	}
	cols := Board(list)
	if len(cols) != 2 || cols[0].Owner.ID != bia.ID || cols[1].Owner.ID != ana.ID {
		t.Fatalf("unexpected board columns: %+v", cols)
	}
	if cols[0].Owner.Name != "Bia" || cols[1].Owner.Name != "Ana" {
		t.Fatal("owner refs not embedded")
	}
}

func TestAnonymousContextIsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateGroup(ctx, "Time", ""); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.ListGroups(ctx); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.CreateGoal(ctx, GoalInput{}); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
