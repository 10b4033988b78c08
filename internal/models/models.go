package models

import "time"

type EventType string

const (
	EventFocusLost        EventType = "focus_lost"
	EventNoFace           EventType = "no_face"
	EventMultipleFaces    EventType = "multiple_faces"
	EventPhoneDetected    EventType = "phone_detected"
	EventBookDetected     EventType = "book_detected"
	EventDeviceDetected   EventType = "device_detected"
	EventLookingAway      EventType = "looking_away"
	EventBeverageDetected EventType = "beverage_detected"
)

// ValidEventType reports whether t belongs to the closed event taxonomy.
func ValidEventType(t EventType) bool {
	switch t {
	case EventFocusLost, EventNoFace, EventMultipleFaces, EventPhoneDetected,
		EventBookDetected, EventDeviceDetected, EventLookingAway, EventBeverageDetected:
		return true
	}
	return false
}

// IsFocusEvent reports whether t counts toward focusLostCount.
// Every other event type counts toward suspiciousEventCount.
func IsFocusEvent(t EventType) bool {
	return t == EventFocusLost || t == EventLookingAway
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID                   int        `json:"id"`
	CandidateName        string     `json:"candidate_name"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	DurationSeconds      int        `json:"duration_seconds"`
	FocusLostCount       int        `json:"focus_lost_count"`
	SuspiciousEventCount int        `json:"suspicious_event_count"`
	IntegrityScore       int        `json:"integrity_score"`
	VideoURL             string     `json:"video_url,omitempty"`
	Version              int64      `json:"-"`
}

// Closed reports whether the session has been ended.
func (s *Session) Closed() bool {
	return s.EndTime != nil
}

type IntegrityEvent struct {
	ID              string    `json:"id"`
	SessionID       int       `json:"session_id"`
	EventType       EventType `json:"event_type"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Details         string    `json:"details,omitempty"`
	Severity        Severity  `json:"severity"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StartSessionRequest struct {
	CandidateName string `json:"candidate_name"`
}

type LogEventRequest struct {
	SessionID       int       `json:"session_id"`
	EventType       EventType `json:"event_type"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Details         string    `json:"details,omitempty"`
}
