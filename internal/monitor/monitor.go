package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"AI_PROCTOR/go-backend/internal/detector"
	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/services"
)

// Monitor runs the two detection loops for one session: presence/gaze
// evaluation on the face interval and object classification on the object
// interval. The loops never overlap with themselves; a slow detector call
// delays only its own loop's next tick.
type Monitor struct {
	sessionID  int
	det        detector.Detector
	tracker    *PresenceGazeTracker
	classifier *ObjectClassifier
	emitter    *Emitter
	frames     *FrameBuffer
	metrics    *services.Metrics

	faceInterval   time.Duration
	objectInterval time.Duration

	// Optional flood control between classifier and emitter. Zero
	// disables it: every qualifying observation emits.
	objectCooldown time.Duration
	lastFlag       map[models.EventType]time.Time

	// Findings are queued here and emitted by a dedicated goroutine so
	// a slow aggregator write never delays the next detection tick.
	findings chan Finding

	stop     chan struct{}
	stopOnce sync.Once
	loopWG   sync.WaitGroup
	emitWG   sync.WaitGroup
}

func newMonitor(sessionID int, det detector.Detector, emitter *Emitter, metrics *services.Metrics, opts Options) *Monitor {
	return &Monitor{
		sessionID:      sessionID,
		det:            det,
		tracker:        NewPresenceGazeTracker(opts.NoFaceThreshold, opts.LookingAwayThreshold, opts.GazeOffsetPx),
		classifier:     NewObjectClassifier(opts.MinConfidence),
		emitter:        emitter,
		frames:         NewFrameBuffer(),
		metrics:        metrics,
		faceInterval:   opts.FaceInterval,
		objectInterval: opts.ObjectInterval,
		objectCooldown: opts.ObjectCooldown,
		lastFlag:       make(map[models.EventType]time.Time),
		findings:       make(chan Finding, 64),
		stop:           make(chan struct{}),
	}
}

func (m *Monitor) start() {
	m.loopWG.Add(2)
	go m.faceLoop()
	go m.objectLoop()

	m.emitWG.Add(1)
	go m.emitLoop()
}

// Stop synchronously halts both loops, then drains the finding queue.
// Any finding produced before the loops halted still reaches the
// aggregator before Stop returns.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.loopWG.Wait()
		close(m.findings)
	})
	m.emitWG.Wait()
}

func (m *Monitor) SubmitFrame(frame []byte) {
	m.frames.Submit(frame)
	m.metrics.FramesSubmitted.Add(1)
}

func (m *Monitor) faceLoop() {
	defer m.loopWG.Done()
	ticker := time.NewTicker(m.faceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.faceTick()
		}
	}
}

func (m *Monitor) objectLoop() {
	defer m.loopWG.Done()
	ticker := time.NewTicker(m.objectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.objectTick()
		}
	}
}

func (m *Monitor) faceTick() {
	frame, ok := m.frames.Latest()
	if !ok {
		return
	}

	faces, err := m.det.DetectFaces(context.Background(), frame)
	if err != nil {
		// Skip the tick; debounce timers stay untouched so a transient
		// outage neither clears nor triggers a condition.
		log.Printf("Session %d: face detection failed, skipping tick: %v", m.sessionID, err)
		m.metrics.DetectorErrors.Add(1)
		return
	}
	m.metrics.FramesProcessed.Add(1)

	for _, f := range m.tracker.Observe(faces) {
		m.emit(f)
	}
}

func (m *Monitor) objectTick() {
	frame, ok := m.frames.Latest()
	if !ok {
		return
	}

	objects, err := m.det.DetectObjects(context.Background(), frame)
	if err != nil {
		log.Printf("Session %d: object detection failed, skipping tick: %v", m.sessionID, err)
		m.metrics.DetectorErrors.Add(1)
		return
	}
	m.metrics.FramesProcessed.Add(1)

	now := time.Now()
	for _, f := range m.classifier.Classify(objects) {
		if m.objectCooldown > 0 {
			if last, ok := m.lastFlag[f.Type]; ok && now.Sub(last) < m.objectCooldown {
				continue
			}
			m.lastFlag[f.Type] = now
		}
		m.emit(f)
	}
}

// emit queues a finding for the emit goroutine. Queueing keeps the tick
// free of store latency; both loops feed the same queue, so the session's
// events stay in production order.
func (m *Monitor) emit(f Finding) {
	m.findings <- f
}

func (m *Monitor) emitLoop() {
	defer m.emitWG.Done()

	for f := range m.findings {
		if _, _, err := m.emitter.Emit(context.Background(), m.sessionID, f); err != nil {
			log.Printf("Session %d: %s event not applied: %v", m.sessionID, f.Type, err)
		}
	}
}
