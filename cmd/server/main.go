package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AI_PROCTOR/go-backend/internal/config"
	"AI_PROCTOR/go-backend/internal/database"
	"AI_PROCTOR/go-backend/internal/detector"
	"AI_PROCTOR/go-backend/internal/handlers"
	"AI_PROCTOR/go-backend/internal/hub"
	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/monitor"
	"AI_PROCTOR/go-backend/internal/services"
	"AI_PROCTOR/go-backend/internal/session"
	"AI_PROCTOR/go-backend/internal/store"
)

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	detectorURL := flag.String("detector-url", "", "Detector service URL (overrides DETECTOR_URL)")
	memoryStore := flag.Bool("memory-store", false, "Use the in-memory store instead of Postgres (for testing)")
	flag.Parse()

	cfg := config.LoadConfig()
	if *httpPort != "" {
		cfg.HTTPPort = *httpPort
	}
	if *detectorURL != "" {
		cfg.DetectorURL = *detectorURL
	}

	log.Println("Starting...")
	log.Printf("HTTP port: %s", cfg.HTTPPort)
	log.Printf("Detector service: %s", cfg.DetectorURL)
	log.Printf("Environment: %s", cfg.Environment)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	var st store.Store
	var db *sql.DB
	if *memoryStore {
		log.Println("Using in-memory store (for testing)")
		st = store.NewMemory()
	} else {
		log.Printf("Connecting to Postgres: %s", cfg.DSNForLog())
		var err error
		db, err = database.InitDB(cfg.DSN())
		if err != nil {
			log.Fatalf("failed to init database: %v", err)
		}
		st = store.NewPostgres(db)
	}

	detClient, err := detector.NewClient(cfg.DetectorURL)
	if err != nil {
		log.Printf("Detector service unavailable: %v", err)
		log.Println("Continuing without detector (ticks will be skipped)")
	}
	if detClient != nil {
		defer detClient.Close()
	}

	metrics := services.NewMetrics()
	agg := session.NewAggregator(st)

	var det detector.Detector
	if detClient != nil {
		det = detClient
	} else {
		det = unavailableDetector{}
	}

	// The hub and the monitor manager depend on each other: events flow
	// manager -> emitter -> hub, frames flow hub -> manager.
	var mgr *monitor.Manager
	wsHub := hub.NewHub(frameSinkFunc(func(sessionID int, frame []byte) bool {
		return mgr.SubmitFrame(sessionID, frame)
	}), metrics)
	emitter := monitor.NewEmitter(agg, metrics, wsHub)
	mgr = monitor.NewManager(det, emitter, metrics, monitor.OptionsFromConfig(cfg))

	api := handlers.NewAPI()
	api.Store = st
	api.Agg = agg
	api.Manager = mgr
	api.Emitter = emitter
	api.Hub = wsHub
	api.Metrics = metrics
	api.Detector = detClient
	api.CORSOrigin = cfg.CORSOrigins
	api.VideoDir = cfg.VideoDir

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHub.HandleWS)

	mux.HandleFunc("/api/auth/register", api.Register)
	mux.HandleFunc("/api/auth/login", api.Login)
	mux.HandleFunc("/api/auth/logout", api.Logout)
	mux.HandleFunc("/api/auth/me", api.GetCurrentUser)

	mux.HandleFunc("/api/proctor/start-session", api.StartSession)
	mux.HandleFunc("/api/proctor/end-session", api.EndSession)
	mux.HandleFunc("/api/proctor/sessions", api.GetSessions)
	mux.HandleFunc("/api/proctor/log-event", api.LogEvent)
	mux.HandleFunc("/api/proctor/events", api.GetEvents)
	mux.HandleFunc("/api/proctor/upload-video", api.UploadVideo)
	mux.Handle("/videos/", http.StripPrefix("/videos/", http.FileServer(http.Dir(cfg.VideoDir))))

	mux.HandleFunc("/api/report/session", api.SessionReport)
	mux.HandleFunc("/api/report/csv", api.CSVReport)

	mux.HandleFunc("/api/health", api.Health)
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on port %s", cfg.HTTPPort)
		log.Printf("WebSocket:  ws://localhost:%s/ws", cfg.HTTPPort)
		log.Printf("REST API:   http://localhost:%s/api/*", cfg.HTTPPort)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	log.Println("Stopping session monitors...")
	mgr.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	} else {
		log.Println("HTTP server gracefully stopped")
	}

	log.Println("Closing WebSocket connections...")
	wsHub.CloseAll()
	log.Println("All WebSocket connections closed...")

	database.CloseDB(db)
	log.Println("Goodbye!")
}

// frameSinkFunc adapts a function to the hub.FrameSink interface.
type frameSinkFunc func(sessionID int, frame []byte) bool

func (f frameSinkFunc) SubmitFrame(sessionID int, frame []byte) bool {
	return f(sessionID, frame)
}

// unavailableDetector stands in when the detector service could not be
// dialed at startup; every tick fails and is skipped.
type unavailableDetector struct{}

var errDetectorUnavailable = errors.New("detector service unavailable")

func (unavailableDetector) DetectFaces(ctx context.Context, frame []byte) ([]models.FaceObservation, error) {
	return nil, errDetectorUnavailable
}

func (unavailableDetector) DetectObjects(ctx context.Context, frame []byte) ([]models.ObjectObservation, error) {
	return nil, errDetectorUnavailable
}
