package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"AI_PROCTOR/go-backend/internal/models"
)

// Memory is an in-process Store with the same versioning semantics as
// Postgres. Used by tests and by dev mode when no database is configured.
type Memory struct {
	mu         sync.Mutex
	nextID     int
	nextUserID int
	sessions   map[int]models.Session
	events     map[int][]models.IntegrityEvent
	users      map[int]models.User
}

func NewMemory() *Memory {
	return &Memory{
		nextID:     1,
		nextUserID: 1,
		sessions:   make(map[int]models.Session),
		events:     make(map[int][]models.IntegrityEvent),
		users:      make(map[int]models.User),
	}
}

func (m *Memory) CreateSession(ctx context.Context, candidateName string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := models.Session{
		ID:             m.nextID,
		CandidateName:  candidateName,
		StartTime:      time.Now(),
		IntegrityScore: 100,
		Version:        1,
	}
	m.nextID++
	m.sessions[s.ID] = s
	return s, nil
}

func (m *Memory) GetSession(ctx context.Context, id int) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *Memory) SaveSession(ctx context.Context, s models.Session) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	if stored.Version != s.Version {
		return models.Session{}, ErrVersionConflict
	}
	s.Version++
	m.sessions[s.ID] = s
	return s, nil
}

func (m *Memory) ListSessions(ctx context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

func (m *Memory) CreateEvent(ctx context.Context, ev models.IntegrityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[ev.SessionID]; !ok {
		return ErrSessionNotFound
	}
	m.events[ev.SessionID] = append(m.events[ev.SessionID], ev)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, sessionID int) ([]models.IntegrityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]models.IntegrityEvent, len(m.events[sessionID]))
	copy(events, m.events[sessionID])
	return events, nil
}

func (m *Memory) CreateUser(ctx context.Context, email, username, passwordHash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return models.User{}, ErrDuplicateEmail
		}
		if u.Username == username {
			return models.User{}, ErrDuplicateName
		}
	}

	u := models.User{
		ID:           m.nextUserID,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.nextUserID++
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (m *Memory) GetUserByID(ctx context.Context, id int) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

var _ Store = (*Memory)(nil)
