package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/services"
	"AI_PROCTOR/go-backend/internal/session"
)

// Sink receives emitted events for distribution to live observers.
// Delivery is fire-and-forget; the aggregator update is the
// authoritative state change.
type Sink interface {
	Publish(ev models.IntegrityEvent, integrityScore int)
}

// Emitter is the sole producer of integrity events. It assigns each
// event its identifier and timestamp at the moment of emission, under a
// per-session mutex, so a session's stream is totally ordered even when
// the two detection loops interleave. Sessions never share a lock, so a
// slow store write for one session cannot stall emission for another.
type Emitter struct {
	agg     *session.Aggregator
	sinks   []Sink
	metrics *services.Metrics
	now     func() time.Time

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewEmitter(agg *session.Aggregator, metrics *services.Metrics, sinks ...Sink) *Emitter {
	return &Emitter{
		agg:     agg,
		sinks:   sinks,
		metrics: metrics,
		now:     time.Now,
		locks:   make(map[int]*sync.Mutex),
	}
}

func (e *Emitter) lockFor(sessionID int) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[sessionID] = l
	}
	return l
}

// Emit turns a finding into a persisted integrity event. The aggregator
// is updated synchronously; sinks are notified asynchronously afterwards.
// Returns the stored event and the session's updated integrity score.
func (e *Emitter) Emit(ctx context.Context, sessionID int, f Finding) (models.IntegrityEvent, int, error) {
	l := e.lockFor(sessionID)
	l.Lock()
	ev := models.IntegrityEvent{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		EventType:       f.Type,
		Timestamp:       e.now(),
		DurationSeconds: f.DurationSeconds,
		Details:         f.Details,
		Severity:        f.Severity,
	}
	updated, err := e.agg.ApplyEvent(ctx, ev)
	l.Unlock()

	if err != nil {
		e.metrics.EventsRejected.Add(1)
		return models.IntegrityEvent{}, 0, err
	}
	e.metrics.EventsEmitted.Add(1)

	for _, s := range e.sinks {
		go s.Publish(ev, updated.IntegrityScore)
	}
	return ev, updated.IntegrityScore, nil
}
