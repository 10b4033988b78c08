package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"AI_PROCTOR/go-backend/internal/models"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateSession(ctx context.Context, candidateName string) (models.Session, error) {
	var s models.Session
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO sessions (candidate_name, integrity_score)
		 VALUES ($1, 100)
		 RETURNING id, candidate_name, start_time, integrity_score, version`,
		candidateName,
	).Scan(&s.ID, &s.CandidateName, &s.StartTime, &s.IntegrityScore, &s.Version)
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (p *Postgres) GetSession(ctx context.Context, id int) (models.Session, error) {
	var s models.Session
	var endTime sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT id, candidate_name, start_time, end_time, duration_seconds,
		        focus_lost_count, suspicious_event_count, integrity_score, video_url, version
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.CandidateName, &s.StartTime, &endTime, &s.DurationSeconds,
		&s.FocusLostCount, &s.SuspiciousEventCount, &s.IntegrityScore, &s.VideoURL, &s.Version)
	if err == sql.ErrNoRows {
		return models.Session{}, ErrSessionNotFound
	} else if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}
	return s, nil
}

func (p *Postgres) SaveSession(ctx context.Context, s models.Session) (models.Session, error) {
	var endTime sql.NullTime
	if s.EndTime != nil {
		endTime = sql.NullTime{Time: *s.EndTime, Valid: true}
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE sessions
		 SET end_time = $1, duration_seconds = $2, focus_lost_count = $3,
		     suspicious_event_count = $4, integrity_score = $5, video_url = $6,
		     version = version + 1
		 WHERE id = $7 AND version = $8`,
		endTime, s.DurationSeconds, s.FocusLostCount,
		s.SuspiciousEventCount, s.IntegrityScore, s.VideoURL, s.ID, s.Version,
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or a concurrent writer bumped the version.
		if _, err := p.GetSession(ctx, s.ID); err != nil {
			return models.Session{}, err
		}
		return models.Session{}, ErrVersionConflict
	}

	s.Version++
	return s, nil
}

func (p *Postgres) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, candidate_name, start_time, end_time, duration_seconds,
		        focus_lost_count, suspicious_event_count, integrity_score, video_url, version
		 FROM sessions ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var endTime sql.NullTime
		err := rows.Scan(&s.ID, &s.CandidateName, &s.StartTime, &endTime, &s.DurationSeconds,
			&s.FocusLostCount, &s.SuspiciousEventCount, &s.IntegrityScore, &s.VideoURL, &s.Version)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if endTime.Valid {
			s.EndTime = &endTime.Time
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (p *Postgres) CreateEvent(ctx context.Context, ev models.IntegrityEvent) error {
	var duration sql.NullInt64
	if ev.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*ev.DurationSeconds), Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, event_type, timestamp, duration_seconds, details, severity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.SessionID, string(ev.EventType), ev.Timestamp, duration, ev.Details, string(ev.Severity),
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (p *Postgres) ListEvents(ctx context.Context, sessionID int) ([]models.IntegrityEvent, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, timestamp, duration_seconds, details, severity
		 FROM events WHERE session_id = $1 ORDER BY timestamp ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.IntegrityEvent
	for rows.Next() {
		var ev models.IntegrityEvent
		var duration sql.NullInt64
		err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Timestamp, &duration, &ev.Details, &ev.Severity)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if duration.Valid {
			d := int(duration.Int64)
			ev.DurationSeconds = &d
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *Postgres) CreateUser(ctx context.Context, email, username, passwordHash string) (models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (email, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, username, created_at`,
		email, username, passwordHash,
	).Scan(&u.ID, &u.Email, &u.Username, &u.CreatedAt)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "users_email_key") {
			return models.User{}, ErrDuplicateEmail
		}
		if strings.Contains(errMsg, "users_username_key") {
			return models.User{}, ErrDuplicateName
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	u.PasswordHash = passwordHash
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrUserNotFound
	} else if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id int) (models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrUserNotFound
	} else if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

var _ Store = (*Postgres)(nil)
