package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"AI_PROCTOR/go-backend/internal/detector"
	"AI_PROCTOR/go-backend/internal/hub"
	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/monitor"
	"AI_PROCTOR/go-backend/internal/report"
	"AI_PROCTOR/go-backend/internal/services"
	"AI_PROCTOR/go-backend/internal/session"
	"AI_PROCTOR/go-backend/internal/store"
)

// API bundles the handler dependencies. The proctoring endpoints are open
// (the candidate app posts without a login); the auth endpoints manage
// proctor accounts for the dashboard.
type API struct {
	Store      store.Store
	Agg        *session.Aggregator
	Manager    *monitor.Manager
	Emitter    *monitor.Emitter
	Hub        *hub.Hub
	Metrics    *services.Metrics
	Detector   *detector.Client
	CORSOrigin string
	VideoDir   string

	mu           sync.Mutex
	userSessions map[string]int
}

func NewAPI() *API {
	return &API{
		userSessions: make(map[string]int),
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Recordings are chunky; MediaRecorder uploads of an hour-long session
// at webcam bitrates stay well under this.
const maxVideoBytes = 512 << 20

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) bool {
	return emailRegex.MatchString(email) && len(email) <= 255
}

func validatePassword(password string) bool {
	if len(password) < 8 || len(password) > 72 {
		return false
	}
	hasLetter := false
	hasNumber := false
	for _, char := range password {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') {
			hasLetter = true
		}
		if char >= '0' && char <= '9' {
			hasNumber = true
		}
	}
	return hasLetter && hasNumber
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	return usernameRegex.MatchString(username)
}

func (a *API) generateAuthSessionID(email string) string {
	return email + "-" + time.Now().Format("20060102150405") + "-" + time.Now().Format("000000000")
}

func (a *API) userIDFromCookie(r *http.Request) (int, bool) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		return 0, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	userID, exists := a.userSessions[cookie.Value]
	return userID, exists
}

func (a *API) enableCORS(w http.ResponseWriter) {
	origin := a.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cookie")
	w.Header().Set("Content-Type", "application/json")
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" || req.Username == "" {
		http.Error(w, "All fields are required", http.StatusBadRequest)
		return
	}

	if !validateEmail(req.Email) {
		http.Error(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	if !validatePassword(req.Password) {
		http.Error(w, "Password must be 8-72 characters with at least one letter and one number", http.StatusBadRequest)
		return
	}

	if !validateUsername(req.Username) {
		http.Error(w, "Username must be 3-30 characters, alphanumeric and underscore only", http.StatusBadRequest)
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("Password hashing error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	user, err := a.Store.CreateUser(ctx, req.Email, req.Username, passwordHash)
	if err != nil {
		log.Printf("Registration failed: %v", err)
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			http.Error(w, "Username already taken", http.StatusConflict)
		case errors.Is(err, store.ErrDuplicateEmail):
			http.Error(w, "Email already registered", http.StatusConflict)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
	log.Printf("User registered: %s", req.Email)
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	if !validateEmail(req.Email) {
		http.Error(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	user, err := a.Store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	} else if err != nil {
		log.Printf("Login error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	a.mu.Lock()
	for sessionKey, userID := range a.userSessions {
		if userID == user.ID {
			delete(a.userSessions, sessionKey)
		}
	}
	if oldCookie, err := r.Cookie("session_id"); err == nil {
		delete(a.userSessions, oldCookie.Value)
	}
	authSessionID := a.generateAuthSessionID(req.Email)
	a.userSessions[authSessionID] = user.ID
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    authSessionID,
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	json.NewEncoder(w).Encode(user)
	log.Printf("User logged in: %s", req.Email)
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if cookie, err := r.Cookie("session_id"); err == nil {
		a.mu.Lock()
		delete(a.userSessions, cookie.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Logged out"))
}

func (a *API) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, exists := a.userIDFromCookie(r)
	if !exists {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	user, err := a.Store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("GetCurrentUser error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(user)
}

// StartSession creates the session record (counters at zero, score 100)
// and starts its detection loops.
func (a *API) StartSession(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.CandidateName == "" {
		http.Error(w, "candidate_name is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	s, err := a.Store.CreateSession(ctx, req.CandidateName)
	if err != nil {
		log.Printf("StartSession error: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	if err := a.Manager.StartMonitoring(s.ID); err != nil {
		log.Printf("StartSession: monitoring not started for %d: %v", s.ID, err)
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s)
	log.Printf("Session created: ID=%d candidate=%s", s.ID, s.CandidateName)
}

// EndSession stops the detection loops, then closes the session. Events
// already in flight from the loops land before the close.
func (a *API) EndSession(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	a.Manager.StopMonitoring(sessionID)

	s, err := a.Agg.CloseSession(r.Context(), sessionID, time.Now())
	if errors.Is(err, store.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if errors.Is(err, session.ErrSessionClosed) {
		http.Error(w, "Session already closed", http.StatusConflict)
		return
	} else if err != nil {
		log.Printf("Failed to end session: %v", err)
		http.Error(w, "Failed to end session", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(s)
	log.Printf("Session ended: %d (score %d)", sessionID, s.IntegrityScore)
}

// UploadVideo stores the candidate's session recording and records its
// URL on the session. Recordings usually arrive after the session has
// ended, so closed sessions accept uploads.
func (a *API) UploadVideo(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	if _, err := a.Store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Printf("UploadVideo: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxVideoBytes)
	file, header, err := r.FormFile("video")
	if err != nil {
		http.Error(w, "video file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := os.MkdirAll(a.VideoDir, 0o755); err != nil {
		log.Printf("UploadVideo: create dir: %v", err)
		http.Error(w, "Failed to store video", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(header.Filename))
	dst, err := os.Create(filepath.Join(a.VideoDir, filename))
	if err != nil {
		log.Printf("UploadVideo: create file: %v", err)
		http.Error(w, "Failed to store video", http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("UploadVideo: write file: %v", err)
		http.Error(w, "Failed to store video", http.StatusInternalServerError)
		return
	}

	s, err := a.Agg.AttachVideo(r.Context(), sessionID, "/videos/"+filename)
	if err != nil {
		log.Printf("UploadVideo: attach: %v", err)
		http.Error(w, "Failed to record video URL", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"video_url": s.VideoURL,
	})
	log.Printf("Session %d: video stored as %s", sessionID, filename)
}

func (a *API) GetSessions(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sessions, err := a.Store.ListSessions(ctx)
	if err != nil {
		http.Error(w, "Failed to fetch sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	json.NewEncoder(w).Encode(sessions)
}

// LogEvent accepts client-reported events (tab blur focus_lost, manual
// proctor flags) and routes them through the same emitter pipeline as the
// detector events.
func (a *API) LogEvent(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LogEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !models.ValidEventType(req.EventType) {
		http.Error(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	finding := monitor.Finding{
		Type:            req.EventType,
		Severity:        defaultSeverity(req.EventType),
		Details:         req.Details,
		DurationSeconds: req.DurationSeconds,
	}

	ev, score, err := a.Emitter.Emit(r.Context(), req.SessionID, finding)
	if errors.Is(err, store.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if errors.Is(err, session.ErrSessionClosed) {
		http.Error(w, "Session already closed", http.StatusConflict)
		return
	} else if err != nil {
		log.Printf("Failed to log event: %v", err)
		http.Error(w, "Failed to log event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":         true,
		"event":           ev,
		"integrity_score": score,
	})
}

func defaultSeverity(t models.EventType) models.Severity {
	switch t {
	case models.EventNoFace, models.EventMultipleFaces, models.EventPhoneDetected,
		models.EventBookDetected, models.EventDeviceDetected:
		return models.SeverityHigh
	case models.EventBeverageDetected:
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

func (a *API) GetEvents(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, err := strconv.Atoi(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := a.Store.GetSession(ctx, sessionID); errors.Is(err, store.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("Failed to verify session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	events, err := a.Store.ListEvents(ctx, sessionID)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.IntegrityEvent{}
	}

	json.NewEncoder(w).Encode(events)
}

// SessionReport returns the session with its full chronological event log.
func (a *API) SessionReport(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, events, ok := a.loadSessionWithEvents(w, r)
	if !ok {
		return
	}

	json.NewEncoder(w).Encode(report.NewSummary(s, events))
}

// CSVReport streams the report as a CSV attachment.
func (a *API) CSVReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, events, ok := a.loadSessionWithEvents(w, r)
	if !ok {
		return
	}

	doc, err := report.CSV(s, events)
	if err != nil {
		log.Printf("Failed to render CSV report: %v", err)
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.CSVFilename(s)+`"`)
	w.Write(doc)
}

func (a *API) loadSessionWithEvents(w http.ResponseWriter, r *http.Request) (models.Session, []models.IntegrityEvent, bool) {
	sessionID, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return models.Session{}, nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	s, err := a.Store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return models.Session{}, nil, false
	} else if err != nil {
		log.Printf("Failed to load session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return models.Session{}, nil, false
	}

	events, err := a.Store.ListEvents(ctx, sessionID)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return models.Session{}, nil, false
	}

	return s, events, true
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	detectorHealthy := false
	if a.Detector != nil {
		detectorHealthy = a.Detector.HealthCheck()
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":           "healthy",
		"detector_service": detectorHealthy,
		"active_clients":   a.Hub.ActiveClients(),
		"active_monitors":  a.Metrics.ActiveMonitors.Load(),
		"events_emitted":   a.Metrics.EventsEmitted.Load(),
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}
