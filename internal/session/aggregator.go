// Package session aggregates integrity events into per-session counters
// and the 0-100 integrity score.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/store"
)

// ErrSessionClosed means an event arrived after the session ended.
// Late events are rejected, never silently applied.
var ErrSessionClosed = errors.New("session already closed")

const (
	focusLostPenalty  = 5
	suspiciousPenalty = 10
)

// Score is the integrity score as a pure function of the two counters:
// max(0, 100 - 5*focusLost - 10*suspicious). It is the only place the
// formula lives; callers never set the score directly.
func Score(focusLost, suspicious int) int {
	score := 100 - focusLostPenalty*focusLost - suspiciousPenalty*suspicious
	if score < 0 {
		return 0
	}
	return score
}

// Aggregator is the single source of truth for a session's standing.
// Mutations for the same session serialize behind a per-session mutex;
// the store's optimistic version check backs that up across processes,
// with conflicting writes retried on a fresh read.
type Aggregator struct {
	store store.Store

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{
		store: st,
		locks: make(map[int]*sync.Mutex),
	}
}

func (a *Aggregator) lockFor(sessionID int) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[sessionID] = l
	}
	return l
}

func (a *Aggregator) backoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewConstant(20*time.Millisecond))
}

// ApplyEvent records the event and applies its deduction to the session:
// focus_lost and looking_away increment focusLostCount, everything else
// increments suspiciousEventCount, and the score is recomputed. The event
// is persisted exactly once even if the counter update is retried.
func (a *Aggregator) ApplyEvent(ctx context.Context, ev models.IntegrityEvent) (models.Session, error) {
	l := a.lockFor(ev.SessionID)
	l.Lock()
	defer l.Unlock()

	s, err := a.store.GetSession(ctx, ev.SessionID)
	if err != nil {
		return models.Session{}, err
	}
	if s.Closed() {
		return models.Session{}, fmt.Errorf("session %d: %w", ev.SessionID, ErrSessionClosed)
	}

	if err := a.store.CreateEvent(ctx, ev); err != nil {
		return models.Session{}, err
	}

	var updated models.Session
	err = retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		s, err := a.store.GetSession(ctx, ev.SessionID)
		if err != nil {
			return err
		}

		if models.IsFocusEvent(ev.EventType) {
			s.FocusLostCount++
		} else {
			s.SuspiciousEventCount++
		}
		s.IntegrityScore = Score(s.FocusLostCount, s.SuspiciousEventCount)

		updated, err = a.store.SaveSession(ctx, s)
		if errors.Is(err, store.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("apply event %s: %w", ev.EventType, err)
	}
	return updated, nil
}

// CloseSession ends the session: sets endTime, computes the duration and
// recomputes the score one final time. Closing a closed session errors.
func (a *Aggregator) CloseSession(ctx context.Context, sessionID int, now time.Time) (models.Session, error) {
	l := a.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	var updated models.Session
	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		s, err := a.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Closed() {
			return fmt.Errorf("session %d: %w", sessionID, ErrSessionClosed)
		}

		end := now
		s.EndTime = &end
		s.DurationSeconds = int(now.Sub(s.StartTime).Seconds())
		s.IntegrityScore = Score(s.FocusLostCount, s.SuspiciousEventCount)

		updated, err = a.store.SaveSession(ctx, s)
		if errors.Is(err, store.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return models.Session{}, err
	}
	return updated, nil
}

// AttachVideo records the URL of the session's uploaded recording. The
// recording typically lands after the session is closed, so a closed
// session is not an error here.
func (a *Aggregator) AttachVideo(ctx context.Context, sessionID int, videoURL string) (models.Session, error) {
	l := a.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	var updated models.Session
	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		s, err := a.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		s.VideoURL = videoURL

		updated, err = a.store.SaveSession(ctx, s)
		if errors.Is(err, store.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return models.Session{}, err
	}
	return updated, nil
}
