package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"goalboard.org/internal/session"
)

const sessionKey = "current"

// SessionStore persists the client session in the same database file
// as the goal data, under a fixed key.
type SessionStore struct {
	db *sql.DB
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore wraps an open Store for session persistence.
func NewSessionStore(s *Store) *SessionStore {
	return &SessionStore{db: s.db}
}

func (s *SessionStore) Load(ctx context.Context) (session.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, sessionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, nil
	}
	if err != nil {
		return session.Snapshot{}, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// A corrupt row behaves like a missing session instead of
		// locking the user out.
		return session.Snapshot{}, nil
	}
	return snap, nil
}

func (s *SessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		sessionKey, string(raw))
	return err
}

func (s *SessionStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, sessionKey)
	return err
}
