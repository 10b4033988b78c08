// Package store is the persistence boundary for sessions, events and users.
package store

import (
	"context"
	"errors"

	"AI_PROCTOR/go-backend/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	// ErrVersionConflict means SaveSession lost a race with a concurrent
	// writer; the caller must re-read the session and retry.
	ErrVersionConflict = errors.New("session version conflict")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrDuplicateName   = errors.New("username already taken")
)

type Store interface {
	CreateSession(ctx context.Context, candidateName string) (models.Session, error)
	GetSession(ctx context.Context, id int) (models.Session, error)
	// SaveSession persists the session if its version still matches the
	// stored one, then bumps the version. Returns ErrVersionConflict on a
	// stale write.
	SaveSession(ctx context.Context, s models.Session) (models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)

	// CreateEvent appends an event. Events are facts: never updated,
	// never deleted.
	CreateEvent(ctx context.Context, ev models.IntegrityEvent) error
	// ListEvents returns a session's events in chronological order.
	ListEvents(ctx context.Context, sessionID int) ([]models.IntegrityEvent, error)

	CreateUser(ctx context.Context, email, username, passwordHash string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int) (models.User, error)
}
