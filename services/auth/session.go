package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rollcall/pkg/db"
)

// Session is a server-side login record. A token is only honoured while its
// session row exists and has not expired.
type Session struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionStore keeps sessions in Postgres.
type SessionStore struct {
	q   sessionQuerier
	now func() time.Time
}

// NewSessionStore returns a SessionStore using q, usually a *pgxpool.Pool.
func NewSessionStore(q sessionQuerier) (*SessionStore, error) {
	if q == nil {
		return nil, errors.New("querier is required")
	}
	return &SessionStore{q: q, now: time.Now}, nil
}

// Create opens a session for accountID that expires after ttl.
func (s *SessionStore) Create(ctx context.Context, accountID int64, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		return Session{}, errors.New("session ttl must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	const q = `INSERT INTO sessions (id, teacher_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.q.Exec(ctx, q, sess.ID, sess.AccountID, sess.ExpiresAt, sess.CreatedAt); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// IsLive reports whether sessionID exists, belongs to accountID and has not expired.
func (s *SessionStore) IsLive(ctx context.Context, sessionID string, accountID int64) (bool, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	const q = `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1 AND teacher_id = $2 AND expires_at > $3)`
	var live bool
	if err := s.q.QueryRow(ctx, q, id.String(), accountID, s.now().UTC()).Scan(&live); err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return live, nil
}

// Revoke deletes the session. Unknown ids are not an error.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}

	if _, err := db.Exec(ctx, s.q, `DELETE FROM sessions WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune removes every session that expired at or before the given instant and
// returns how many rows were deleted.
func (s *SessionStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Exec(ctx, s.q, `DELETE FROM sessions WHERE expires_at <= $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
