package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/services"
	"AI_PROCTOR/go-backend/internal/session"
	"AI_PROCTOR/go-backend/internal/store"
)

type captureSink struct {
	ch chan models.IntegrityEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan models.IntegrityEvent, 16)}
}

func (s *captureSink) Publish(ev models.IntegrityEvent, integrityScore int) {
	s.ch <- ev
}

func TestEmitAssignsIdentityAndApplies(t *testing.T) {
	st := store.NewMemory()
	agg := session.NewAggregator(st)
	metrics := services.NewMetrics()
	sink := newCaptureSink()
	em := NewEmitter(agg, metrics, sink)

	s, err := st.CreateSession(context.Background(), "Jane Candidate")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	d := 11
	ev, score, err := em.Emit(context.Background(), s.ID, Finding{
		Type:            models.EventNoFace,
		Severity:        models.SeverityHigh,
		Details:         "No face detected for 11 seconds",
		DurationSeconds: &d,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if ev.ID == "" {
		t.Error("event ID not assigned")
	}
	if ev.Timestamp.IsZero() {
		t.Error("event timestamp not assigned")
	}
	if score != 90 {
		t.Errorf("score = %d, want 90", score)
	}

	// The aggregator update is synchronous: the event is already stored.
	events, err := st.ListEvents(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored events = %d, want 1", len(events))
	}
	if events[0].ID != ev.ID {
		t.Errorf("stored event ID = %q, want %q", events[0].ID, ev.ID)
	}

	// Fan-out is asynchronous but must arrive.
	select {
	case published := <-sink.ch:
		if published.ID != ev.ID {
			t.Errorf("published event ID = %q, want %q", published.ID, ev.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not receive the event")
	}

	if got := metrics.EventsEmitted.Load(); got != 1 {
		t.Errorf("EventsEmitted = %d, want 1", got)
	}
}

func TestEmitOrdersEventsBySyncApply(t *testing.T) {
	st := store.NewMemory()
	agg := session.NewAggregator(st)
	em := NewEmitter(agg, services.NewMetrics())

	s, _ := st.CreateSession(context.Background(), "Jane Candidate")

	types := []models.EventType{
		models.EventLookingAway,
		models.EventPhoneDetected,
		models.EventNoFace,
		models.EventFocusLost,
	}
	for _, et := range types {
		if _, _, err := em.Emit(context.Background(), s.ID, Finding{Type: et, Severity: models.SeverityMedium}); err != nil {
			t.Fatalf("Emit(%s): %v", et, err)
		}
	}

	events, err := st.ListEvents(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != len(types) {
		t.Fatalf("stored events = %d, want %d", len(events), len(types))
	}
	for i, et := range types {
		if events[i].EventType != et {
			t.Errorf("event %d type = %s, want %s", i, events[i].EventType, et)
		}
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("event %d timestamp precedes event %d", i, i-1)
		}
	}
}

func TestEmitRejectedForUnknownSession(t *testing.T) {
	st := store.NewMemory()
	agg := session.NewAggregator(st)
	metrics := services.NewMetrics()
	sink := newCaptureSink()
	em := NewEmitter(agg, metrics, sink)

	_, _, err := em.Emit(context.Background(), 42, Finding{Type: models.EventNoFace, Severity: models.SeverityHigh})
	if !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	select {
	case ev := <-sink.ch:
		t.Fatalf("rejected event was published: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	if got := metrics.EventsRejected.Load(); got != 1 {
		t.Errorf("EventsRejected = %d, want 1", got)
	}
}

// slowSaveStore delays SaveSession for one session only.
type slowSaveStore struct {
	store.Store
	slowID int
	delay  time.Duration
}

func (s *slowSaveStore) SaveSession(ctx context.Context, sess models.Session) (models.Session, error) {
	if sess.ID == s.slowID {
		time.Sleep(s.delay)
	}
	return s.Store.SaveSession(ctx, sess)
}

func TestEmitSessionsProceedIndependently(t *testing.T) {
	mem := store.NewMemory()
	a, err := mem.CreateSession(context.Background(), "Candidate A")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	b, err := mem.CreateSession(context.Background(), "Candidate B")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	slow := &slowSaveStore{Store: mem, slowID: a.ID, delay: 400 * time.Millisecond}
	em := NewEmitter(session.NewAggregator(slow), services.NewMetrics())

	done := make(chan struct{})
	go func() {
		defer close(done)
		em.Emit(context.Background(), a.ID, Finding{
			Type:     models.EventNoFace,
			Severity: models.SeverityHigh,
		})
	}()

	// Let session A's emit reach its slow store write.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if _, _, err := em.Emit(context.Background(), b.ID, Finding{
		Type:     models.EventPhoneDetected,
		Severity: models.SeverityHigh,
	}); err != nil {
		t.Fatalf("Emit for session B: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("emit for session B took %v while session A's store write was in flight", elapsed)
	}
	<-done
}
