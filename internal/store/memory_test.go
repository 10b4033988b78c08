package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"AI_PROCTOR/go-backend/internal/models"
)

func TestMemorySessionLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.CreateSession(ctx, "Jane Candidate")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == 0 {
		t.Error("session ID not assigned")
	}
	if s.IntegrityScore != 100 || s.Version != 1 {
		t.Errorf("new session = score %d version %d, want 100/1", s.IntegrityScore, s.Version)
	}

	got, err := m.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CandidateName != "Jane Candidate" {
		t.Errorf("candidateName = %q", got.CandidateName)
	}

	if _, err := m.GetSession(ctx, 999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemorySaveSessionVersioning(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, _ := m.CreateSession(ctx, "Jane Candidate")

	s.FocusLostCount = 1
	saved, err := m.SaveSession(ctx, s)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if saved.Version != s.Version+1 {
		t.Errorf("version = %d, want %d", saved.Version, s.Version+1)
	}

	// A second save with the stale version must conflict.
	s.FocusLostCount = 2
	if _, err := m.SaveSession(ctx, s); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale save err = %v, want ErrVersionConflict", err)
	}

	// The conflicting write changed nothing.
	got, _ := m.GetSession(ctx, s.ID)
	if got.FocusLostCount != 1 {
		t.Errorf("focusLostCount = %d, want 1", got.FocusLostCount)
	}
}

func TestMemoryEventsAppendInOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, _ := m.CreateSession(ctx, "Jane Candidate")

	base := time.Now()
	for i, et := range []models.EventType{models.EventNoFace, models.EventLookingAway, models.EventPhoneDetected} {
		err := m.CreateEvent(ctx, models.IntegrityEvent{
			ID:        string(et),
			SessionID: s.ID,
			EventType: et,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Severity:  models.SeverityMedium,
		})
		if err != nil {
			t.Fatalf("CreateEvent(%s): %v", et, err)
		}
	}

	events, err := m.ListEvents(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].EventType != models.EventNoFace || events[2].EventType != models.EventPhoneDetected {
		t.Errorf("events out of insertion order: %+v", events)
	}

	if err := m.CreateEvent(ctx, models.IntegrityEvent{ID: "x", SessionID: 999}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("event for missing session err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u, err := m.CreateUser(ctx, "jane@example.com", "jane", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := m.CreateUser(ctx, "jane@example.com", "other", "hash"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate email err = %v", err)
	}
	if _, err := m.CreateUser(ctx, "other@example.com", "jane", "hash"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate username err = %v", err)
	}

	byEmail, err := m.GetUserByEmail(ctx, "jane@example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail = %+v, %v", byEmail, err)
	}
	if _, err := m.GetUserByID(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user err = %v", err)
	}
}
