// Package session persists Spotify OAuth tokens between restarts.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotFound indicates no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// Session pairs a browser session id with its Spotify token.
type Session struct {
	ID        string
	Token     *oauth2.Token
	CreatedAt time.Time
}

// Store persists sessions in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a session store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts or replaces the session for the given id.
func (s *Store) Save(ctx context.Context, id string, token *oauth2.Token) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, access_token, refresh_token, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     access_token = excluded.access_token,
		     refresh_token = excluded.refresh_token,
		     expires_at = excluded.expires_at`,
		id, token.AccessToken, token.RefreshToken, token.Expiry.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Get returns the session for the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, created_at FROM sessions WHERE id = ?`, id)

	var sess Session
	var access, refresh string
	var expiry time.Time
	if err := row.Scan(&access, &refresh, &expiry, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	sess.ID = id
	sess.Token = &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       expiry,
		TokenType:    "Bearer",
	}
	return &sess, nil
}

// Delete removes the session for the given id. Missing sessions are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Prune removes sessions whose tokens expired before the cutoff and that
// carry no refresh token to renew them with.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ? AND refresh_token = ''`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
