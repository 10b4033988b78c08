// Package monitor turns per-frame detector outputs into debounced
// integrity events and runs the per-session detection loops.
package monitor

import (
	"fmt"
	"math"
	"time"

	"AI_PROCTOR/go-backend/internal/models"
)

// Finding is a raw detector-layer signal, before the emitter assigns it
// an identifier and timestamp.
type Finding struct {
	Type            models.EventType
	Severity        models.Severity
	Details         string
	DurationSeconds *int
}

// PresenceGazeTracker keeps the debounce timers for the no-face and
// looking-away conditions and flags multiple faces. A condition must hold
// continuously across ticks to accumulate toward its threshold; one clean
// tick resets progress. Firing re-arms the timer instead of clearing it,
// so a persisting condition is re-reported at a fixed cadence.
//
// Not safe for concurrent use; each session's face loop owns one tracker.
type PresenceGazeTracker struct {
	noFaceThreshold      time.Duration
	lookingAwayThreshold time.Duration
	gazeOffsetPx         float64

	noFaceStart      time.Time
	lookingAwayStart time.Time

	now func() time.Time
}

func NewPresenceGazeTracker(noFaceThreshold, lookingAwayThreshold time.Duration, gazeOffsetPx float64) *PresenceGazeTracker {
	return &PresenceGazeTracker{
		noFaceThreshold:      noFaceThreshold,
		lookingAwayThreshold: lookingAwayThreshold,
		gazeOffsetPx:         gazeOffsetPx,
		now:                  time.Now,
	}
}

// Observe evaluates one tick of face observations.
func (t *PresenceGazeTracker) Observe(faces []models.FaceObservation) []Finding {
	now := t.now()
	var findings []Finding

	if len(faces) == 0 {
		// Gaze is unobservable without a face, so its debounce resets.
		t.lookingAwayStart = time.Time{}

		if t.noFaceStart.IsZero() {
			t.noFaceStart = now
		} else if elapsed := now.Sub(t.noFaceStart); elapsed > t.noFaceThreshold {
			d := int(math.Round(elapsed.Seconds()))
			findings = append(findings, Finding{
				Type:            models.EventNoFace,
				Severity:        models.SeverityHigh,
				Details:         fmt.Sprintf("No face detected for %d seconds", d),
				DurationSeconds: &d,
			})
			t.noFaceStart = now // re-arm
		}
		return findings
	}

	t.noFaceStart = time.Time{}

	if len(faces) > 1 {
		findings = append(findings, Finding{
			Type:     models.EventMultipleFaces,
			Severity: models.SeverityHigh,
			Details:  fmt.Sprintf("%d people detected in frame", len(faces)),
		})
	}

	face, ok := firstWithKeypoints(faces)
	if !ok {
		// Malformed observations carry no keypoints; gaze state is left
		// untouched for this tick.
		return findings
	}

	offset := gazeOffset(face)
	if math.Abs(offset) > t.gazeOffsetPx {
		if t.lookingAwayStart.IsZero() {
			t.lookingAwayStart = now
		} else if elapsed := now.Sub(t.lookingAwayStart); elapsed > t.lookingAwayThreshold {
			direction := "left"
			if offset > 0 {
				direction = "right"
			}
			d := int(math.Round(elapsed.Seconds()))
			findings = append(findings, Finding{
				Type:            models.EventLookingAway,
				Severity:        models.SeverityMedium,
				Details:         fmt.Sprintf("Looking %s for %d seconds", direction, d),
				DurationSeconds: &d,
			})
			t.lookingAwayStart = now // re-arm
		}
	} else {
		t.lookingAwayStart = time.Time{}
	}

	return findings
}

func firstWithKeypoints(faces []models.FaceObservation) (models.FaceObservation, bool) {
	for _, f := range faces {
		if len(f.Keypoints) >= 3 {
			return f, true
		}
	}
	return models.FaceObservation{}, false
}

// gazeOffset is the mean horizontal distance of both eyes from the nose
// tip. Positive means the gaze points right, negative left.
func gazeOffset(face models.FaceObservation) float64 {
	rightEye := face.Keypoints[0]
	leftEye := face.Keypoints[1]
	noseTip := face.Keypoints[2]
	return ((rightEye.X - noseTip.X) + (leftEye.X - noseTip.X)) / 2
}
