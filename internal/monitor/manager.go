package monitor

import (
	"errors"
	"log"
	"sync"
	"time"

	"AI_PROCTOR/go-backend/internal/config"
	"AI_PROCTOR/go-backend/internal/detector"
	"AI_PROCTOR/go-backend/internal/services"
)

var ErrAlreadyMonitoring = errors.New("session is already being monitored")

type Options struct {
	FaceInterval         time.Duration
	ObjectInterval       time.Duration
	NoFaceThreshold      time.Duration
	LookingAwayThreshold time.Duration
	GazeOffsetPx         float64
	MinConfidence        float64
	ObjectCooldown       time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FaceInterval:         time.Duration(cfg.FaceIntervalSec) * time.Second,
		ObjectInterval:       time.Duration(cfg.ObjectIntervalSec) * time.Second,
		NoFaceThreshold:      time.Duration(cfg.NoFaceThresholdSec) * time.Second,
		LookingAwayThreshold: time.Duration(cfg.LookingAwayThresholdSec) * time.Second,
		GazeOffsetPx:         cfg.GazeOffsetPx,
		MinConfidence:        cfg.ObjectMinConfidence,
		ObjectCooldown:       time.Duration(cfg.ObjectCooldownSec) * time.Second,
	}
}

// Manager owns the monitors, one per actively proctored session.
// Sessions are fully independent of each other.
type Manager struct {
	det     detector.Detector
	emitter *Emitter
	opts    Options
	metrics *services.Metrics

	mu       sync.Mutex
	monitors map[int]*Monitor
}

func NewManager(det detector.Detector, emitter *Emitter, metrics *services.Metrics, opts Options) *Manager {
	return &Manager{
		det:      det,
		emitter:  emitter,
		opts:     opts,
		metrics:  metrics,
		monitors: make(map[int]*Monitor),
	}
}

func (mgr *Manager) StartMonitoring(sessionID int) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if _, ok := mgr.monitors[sessionID]; ok {
		return ErrAlreadyMonitoring
	}

	m := newMonitor(sessionID, mgr.det, mgr.emitter, mgr.metrics, mgr.opts)
	mgr.monitors[sessionID] = m
	m.start()
	mgr.metrics.ActiveMonitors.Add(1)

	log.Printf("Monitoring started for session %d", sessionID)
	return nil
}

// StopMonitoring halts the session's detection loops before returning.
// Safe to call for sessions that were never monitored.
func (mgr *Manager) StopMonitoring(sessionID int) {
	mgr.mu.Lock()
	m, ok := mgr.monitors[sessionID]
	if ok {
		delete(mgr.monitors, sessionID)
	}
	mgr.mu.Unlock()

	if !ok {
		return
	}
	m.Stop()
	mgr.metrics.ActiveMonitors.Add(-1)
	log.Printf("Monitoring stopped for session %d", sessionID)
}

// SubmitFrame routes a candidate frame to the session's frame buffer.
// Returns false when the session is not being monitored.
func (mgr *Manager) SubmitFrame(sessionID int, frame []byte) bool {
	mgr.mu.Lock()
	m, ok := mgr.monitors[sessionID]
	mgr.mu.Unlock()

	if !ok {
		return false
	}
	m.SubmitFrame(frame)
	return true
}

func (mgr *Manager) StopAll() {
	mgr.mu.Lock()
	monitors := make([]*Monitor, 0, len(mgr.monitors))
	for id, m := range mgr.monitors {
		monitors = append(monitors, m)
		delete(mgr.monitors, id)
	}
	mgr.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
		mgr.metrics.ActiveMonitors.Add(-1)
	}
}
