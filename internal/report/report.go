// Package report renders a session and its ordered events into
// human-readable documents.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"AI_PROCTOR/go-backend/internal/models"
)

// Summary is the JSON report body: the session with its full event log.
type Summary struct {
	Session models.Session          `json:"session"`
	Events  []models.IntegrityEvent `json:"events"`
}

func NewSummary(s models.Session, events []models.IntegrityEvent) Summary {
	if events == nil {
		events = []models.IntegrityEvent{}
	}
	return Summary{Session: s, Events: events}
}

// CSVFilename names the download the way the original report endpoint did.
func CSVFilename(s models.Session) string {
	name := strings.ReplaceAll(s.CandidateName, " ", "_")
	return fmt.Sprintf("proctor-report-%s.csv", name)
}

// CSV renders the session header block followed by one row per event.
func CSV(s models.Session, events []models.IntegrityEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := [][]string{
		{"Candidate", s.CandidateName},
		{"Start Time", s.StartTime.Format(time.RFC3339)},
		{"End Time", formatEndTime(s.EndTime)},
		{"Duration (seconds)", strconv.Itoa(s.DurationSeconds)},
		{"Focus Lost Count", strconv.Itoa(s.FocusLostCount)},
		{"Suspicious Event Count", strconv.Itoa(s.SuspiciousEventCount)},
		{"Integrity Score", strconv.Itoa(s.IntegrityScore)},
		{},
		{"Timestamp", "Event Type", "Severity", "Duration (seconds)", "Details"},
	}
	for _, row := range header {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	for _, ev := range events {
		duration := ""
		if ev.DurationSeconds != nil {
			duration = strconv.Itoa(*ev.DurationSeconds)
		}
		row := []string{
			ev.Timestamp.Format(time.RFC3339),
			string(ev.EventType),
			string(ev.Severity),
			duration,
			ev.Details,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatEndTime(t *time.Time) string {
	if t == nil {
		return "in progress"
	}
	return t.Format(time.RFC3339)
}
