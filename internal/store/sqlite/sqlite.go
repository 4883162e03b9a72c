// Package sqlite persists goals and session state in a single local
// database file, giving the client durable storage between runs.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"goalboard.org/internal/goals"
	"goalboard.org/internal/ids"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed goals.Store. SQLite runs in WAL mode with a
// single writer connection, so every store call is atomic.
type Store struct {
	db *sql.DB
}

var _ goals.Store = (*Store)(nil)

// Open creates or opens the database at path, applying pragmas and the
// schema. Safe to call repeatedly on the same file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for readiness probes.
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
		`INSERT INTO users (id, nome, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isUniqueViolation(err) {
		return goals.ErrEmailTaken
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*goals.User, error) {
	return s.findBy(ctx, "id", id)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*goals.User, error) {
	return s.findBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *userStore) findBy(ctx context.Context, column, value string) (*goals.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nome, email, password_hash, created_at FROM users WHERE `+column+` = ?`, value)
	var (
		u       goals.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goals.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
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
		`INSERT INTO groups (id, nome, descricao, codigo_convite, criador_id, membros_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.InviteCode, g.CreatorID, string(members),
		g.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *groupStore) Find(ctx context.Context, id string) (*goals.Group, error) {
	return s.findBy(ctx, "id", id)
}

func (s *groupStore) FindByInviteCode(ctx context.Context, code string) (*goals.Group, error) {
	return s.findBy(ctx, "codigo_convite", code)
}

func (s *groupStore) findBy(ctx context.Context, column, value string) (*goals.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nome, descricao, codigo_convite, criador_id, membros_ids, created_at
		 FROM groups WHERE `+column+` = ?`, value)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goals.ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func (s *groupStore) ListByMember(ctx context.Context, userID string) ([]*goals.Group, error) {
	// Membership lives in a JSON array; the id index keeps creation order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, nome, descricao, codigo_convite, criador_id, membros_ids, created_at
		 FROM groups ORDER BY id ASC`)
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
		for _, member := range g.MemberIDs {
			if member == userID {
				out = append(out, g)
				break
			}
		}
	}
	return out, rows.Err()
}

func (s *groupStore) AddMember(ctx context.Context, groupID, userID string) error {
	// Read-check-append inside one transaction; the single-writer
	// connection serializes concurrent redemptions.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT membros_ids FROM groups WHERE id = ?`, groupID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return goals.ErrNotFound
	}
	if err != nil {
		return err
	}

	var members []string
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return err
	}
	for _, member := range members {
		if member == userID {
			return goals.ErrAlreadyMember
		}
	}
	members = append(members, userID)
	updated, err := json.Marshal(members)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE groups SET membros_ids = ? WHERE id = ?`, string(updated), groupID); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*goals.Group, error) {
	var (
		g       goals.Group
		members string
		created string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.InviteCode, &g.CreatorID, &members, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(members), &g.MemberIDs); err != nil {
		return nil, err
	}
	g.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
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
		`INSERT INTO metas (id, user_id, tipo, titulo, descricao, status, data_inicio, data_prazo, metas_pequenas)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, string(g.Category), g.Title, g.Description, string(g.Status),
		g.StartDate, g.DueDate, string(small))
	return err
}

func (s *goalStore) Find(ctx context.Context, id string) (*goals.BigGoal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, tipo, titulo, descricao, status, data_inicio, data_prazo, metas_pequenas
		 FROM metas WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goals.ErrNotFound
		}
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
		`UPDATE metas SET tipo = ?, titulo = ?, descricao = ?, status = ?, data_inicio = ?, data_prazo = ?, metas_pequenas = ?
		 WHERE id = ?`,
		string(g.Category), g.Title, g.Description, string(g.Status),
		g.StartDate, g.DueDate, string(small), g.ID)
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
	_, err := s.db.ExecContext(ctx, `DELETE FROM metas WHERE id = ?`, id)
	return err
}

func (s *goalStore) ListByOwners(ctx context.Context, userIDs []string) ([]*goals.BigGoal, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, tipo, titulo, descricao, status, data_inicio, data_prazo, metas_pequenas
		 FROM metas WHERE user_id IN (`+placeholders+`) ORDER BY id ASC`, args...)
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
		small string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Category, &g.Title, &g.Description, &g.Status,
		&g.StartDate, &g.DueDate, &small); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(small), &g.SmallGoals); err != nil {
		return nil, err
	}
	return &g, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
