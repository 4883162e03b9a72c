// Package pg implements the goals store on PostgreSQL for server
// deployments. Member lists and small-goal collections are stored as
// jsonb documents.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"goalboard.org/internal/goals"
	"goalboard.org/internal/ids"
)

type Store struct {
	db *sql.DB
}

var _ goals.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle (tests use sqlmock here).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users(ctx context.Context) goals.UserStore   { return (*userStore)(s) }
func (s *Store) Groups(ctx context.Context) goals.GroupStore { return (*groupStore)(s) }
func (s *Store) Goals(ctx context.Context) goals.GoalStore   { return (*goalStore)(s) }

// Users ---------------------------------------------------------------------

type userStore Store

func (s *userStore) Create(ctx context.Context, u *goals.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, nome, email, password_hash, created_at) values($1,$2,$3,$4,$5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return goals.ErrEmailTaken
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*goals.User, error) {
	return s.findBy(ctx, `id=$1`, id)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*goals.User, error) {
	return s.findBy(ctx, `email=$1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *userStore) findBy(ctx context.Context, where, value string) (*goals.User, error) {
	var u goals.User
	err := s.db.QueryRowContext(ctx,
		`select id, nome, email, password_hash, created_at from users where `+where, value).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goals.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Groups --------------------------------------------------------------------

type groupStore Store

func (s *groupStore) Create(ctx context.Context, g *goals.Group) error {
	if g.ID == "" {
		g.ID = ids.New()
	}
	members, err := json.Marshal(g.MemberIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into groups(id, nome, descricao, codigo_convite, criador_id, membros_ids, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		g.ID, g.Name, g.Description, g.InviteCode, g.CreatorID, members, g.CreatedAt.UTC())
	return err
}

func (s *groupStore) Find(ctx context.Context, id string) (*goals.Group, error) {
	return s.findBy(ctx, `id=$1`, id)
}

func (s *groupStore) FindByInviteCode(ctx context.Context, code string) (*goals.Group, error) {
	return s.findBy(ctx, `codigo_convite=$1`, code)
}

func (s *groupStore) findBy(ctx context.Context, where, value string) (*goals.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, nome, descricao, codigo_convite, criador_id, membros_ids, created_at
		 from groups where `+where, value)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goals.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *groupStore) ListByMember(ctx context.Context, userID string) ([]*goals.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, nome, descricao, codigo_convite, criador_id, membros_ids, created_at
		 from groups where membros_ids @> to_jsonb(array[$1::text]) order by id asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*goals.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *groupStore) AddMember(ctx context.Context, groupID, userID string) error {
	// Single conditional update: concurrent redemptions cannot drop or
	// duplicate a member.
	res, err := s.db.ExecContext(ctx,
		`update groups set membros_ids = membros_ids || to_jsonb($2::text)
		 where id = $1 and not membros_ids @> to_jsonb(array[$2::text])`, groupID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from groups where id=$1)`, groupID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return goals.ErrNotFound
	}
	return goals.ErrAlreadyMember
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*goals.Group, error) {
	var (
		g       goals.Group
		members []byte
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.InviteCode, &g.CreatorID,
		&members, &g.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &g.MemberIDs); err != nil {
		return nil, err
	}
	return &g, nil
}

// Goals ---------------------------------------------------------------------

type goalStore Store

func (s *goalStore) Create(ctx context.Context, g *goals.BigGoal) error {
	if g.ID == "" {
		g.ID = ids.New()
	}
	small, err := json.Marshal(g.SmallGoals)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into metas(id, user_id, tipo, titulo, descricao, status, data_inicio, data_prazo, metas_pequenas)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		g.ID, g.UserID, string(g.Category), g.Title, g.Description, string(g.Status),
		g.StartDate, g.DueDate, small)
	return err
}

func (s *goalStore) Find(ctx context.Context, id string) (*goals.BigGoal, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, tipo, titulo, descricao, status, data_inicio, data_prazo, metas_pequenas
		 from metas where id=$1`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goals.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *goalStore) Update(ctx context.Context, g *goals.BigGoal) error {
	small, err := json.Marshal(g.SmallGoals)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`update metas set tipo=$2, titulo=$3, descricao=$4, status=$5, data_inicio=$6, data_prazo=$7, metas_pequenas=$8
		 where id=$1`,
		g.ID, string(g.Category), g.Title, g.Description, string(g.Status),
		g.StartDate, g.DueDate, small)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goals.ErrNotFound
	}
	return nil
}

func (s *goalStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from metas where id=$1`, id)
	return err
}

func (s *goalStore) ListByOwners(ctx context.Context, userIDs []string) ([]*goals.BigGoal, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, tipo, titulo, descricao, status, data_inicio, data_prazo, metas_pequenas
		 from metas where user_id in (`+strings.Join(placeholders, ",")+`) order by id asc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*goals.BigGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGoal(row rowScanner) (*goals.BigGoal, error) {
	var (
		g     goals.BigGoal
		small []byte
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Category, &g.Title, &g.Description, &g.Status,
		&g.StartDate, &g.DueDate, &small); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(small, &g.SmallGoals); err != nil {
		return nil, err
	}
	return &g, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
