package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

var (
	// ErrUserNotFound is returned when no user matches the id.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrSessionNotFound is returned when a refresh token hash is unknown.
	ErrSessionNotFound = errors.New("auth: session not found")
)

// Session is a persisted refresh session. Only the token's sha256 is stored.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Store persists users and refresh sessions.
type Store interface {
	UpsertUserByPhone(ctx context.Context, phone string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id, name, email string) (User, error)
	CreateSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetSession(ctx context.Context, tokenHash string) (Session, error)
	// RotateSession swaps oldHash for newHash if the session is still live. It
	// reports false when another request already rotated or revoked it.
	RotateSession(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

// PGStore implements Store on the users and refresh_sessions tables.
type PGStore struct {
	DB db.DBTX
}

const userColumns = `id::text, phone, name, email, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNoRows(err) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (s PGStore) UpsertUserByPhone(ctx context.Context, phone string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `INSERT INTO users (phone) VALUES ($1)
ON CONFLICT (phone) DO UPDATE SET updated_at = now()
RETURNING `+userColumns, phone))
}

func (s PGStore) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s PGStore) UpdateProfile(ctx context.Context, id, name, email string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `UPDATE users SET name = $2, email = $3, updated_at = now()
WHERE id = $1 RETURNING `+userColumns, id, name, email))
}

func (s PGStore) CreateSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO refresh_sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	return err
}

func (s PGStore) GetSession(ctx context.Context, tokenHash string) (Session, error) {
	var sess Session
	err := s.DB.QueryRow(ctx, `SELECT id::text, user_id::text, expires_at, revoked_at
FROM refresh_sessions WHERE token_hash = $1`, tokenHash).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.RevokedAt)
	if db.IsNoRows(err) {
		return Session{}, ErrSessionNotFound
	}
	return sess, err
}

func (s PGStore) RotateSession(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE refresh_sessions SET token_hash = $3, expires_at = $4
WHERE id = $1 AND token_hash = $2 AND revoked_at IS NULL`, id, oldHash, newHash, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s PGStore) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := s.DB.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = now() WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	return err
}
