package monitor

import (
	"testing"
	"time"

	"AI_PROCTOR/go-backend/internal/models"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestTracker(clock *fakeClock) *PresenceGazeTracker {
	tr := NewPresenceGazeTracker(10*time.Second, 5*time.Second, 25)
	tr.now = clock.Now
	return tr
}

// faceWithOffset builds a face whose mean eye-to-nose horizontal offset
// equals the given value.
func faceWithOffset(offset float64) models.FaceObservation {
	return models.FaceObservation{
		Keypoints: []models.Keypoint{
			{X: 100 + offset, Y: 80}, // right eye
			{X: 100 + offset, Y: 80}, // left eye
			{X: 100, Y: 100},         // nose tip
		},
		Confidence: 0.9,
	}
}

func centeredFace() models.FaceObservation {
	return faceWithOffset(0)
}

// tickFaces advances the clock one second per tick and feeds the same
// observation, collecting every finding.
func tickFaces(tr *PresenceGazeTracker, clock *fakeClock, faces []models.FaceObservation, ticks int) []Finding {
	var all []Finding
	for i := 0; i < ticks; i++ {
		clock.Advance(time.Second)
		all = append(all, tr.Observe(faces)...)
	}
	return all
}

func TestNoFaceBelowThresholdEmitsNothing(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	findings := tickFaces(tr, clock, nil, 10)
	if len(findings) != 0 {
		t.Fatalf("expected no findings before threshold, got %d", len(findings))
	}
}

func TestNoFaceFiresAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	// Condition starts at the first tick; elapsed exceeds 10s on tick 12.
	findings := tickFaces(tr, clock, nil, 12)
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 no_face finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Type != models.EventNoFace {
		t.Errorf("type = %s, want no_face", f.Type)
	}
	if f.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", f.Severity)
	}
	if f.DurationSeconds == nil || *f.DurationSeconds != 11 {
		t.Errorf("duration = %v, want 11", f.DurationSeconds)
	}
}

func TestNoFaceReArmsAndFiresAgain(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	// First fire on tick 12, re-arm, second fire 11 ticks later.
	findings := tickFaces(tr, clock, nil, 23)
	if len(findings) != 2 {
		t.Fatalf("expected 2 no_face findings from a persisting condition, got %d", len(findings))
	}
	for _, f := range findings {
		if f.Type != models.EventNoFace {
			t.Errorf("type = %s, want no_face", f.Type)
		}
	}
}

func TestCleanTickResetsNoFaceDebounce(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	// Two 6-second windows split by one clean tick: no events at all.
	var findings []Finding
	findings = append(findings, tickFaces(tr, clock, nil, 6)...)
	findings = append(findings, tickFaces(tr, clock, []models.FaceObservation{centeredFace()}, 1)...)
	findings = append(findings, tickFaces(tr, clock, nil, 6)...)

	if len(findings) != 0 {
		t.Fatalf("expected 0 findings for interrupted windows, got %d", len(findings))
	}
}

func TestGazeOffsetAtThresholdDoesNotTrigger(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	faces := []models.FaceObservation{faceWithOffset(25)}
	findings := tickFaces(tr, clock, faces, 30)
	if len(findings) != 0 {
		t.Fatalf("offset of exactly 25px must not trigger, got %d findings", len(findings))
	}
}

func TestGazeOffsetJustOverThresholdTriggers(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	// Condition starts at tick 1, elapsed exceeds 5s on tick 7.
	faces := []models.FaceObservation{faceWithOffset(25.01)}
	findings := tickFaces(tr, clock, faces, 7)
	if len(findings) != 1 {
		t.Fatalf("expected 1 looking_away finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Type != models.EventLookingAway {
		t.Errorf("type = %s, want looking_away", f.Type)
	}
	if f.Severity != models.SeverityMedium {
		t.Errorf("severity = %s, want medium", f.Severity)
	}
	if f.Details != "Looking right for 6 seconds" {
		t.Errorf("details = %q", f.Details)
	}
}

func TestGazeDirectionLeft(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	faces := []models.FaceObservation{faceWithOffset(-40)}
	findings := tickFaces(tr, clock, faces, 7)
	if len(findings) != 1 {
		t.Fatalf("expected 1 looking_away finding, got %d", len(findings))
	}
	if findings[0].Details != "Looking left for 6 seconds" {
		t.Errorf("details = %q", findings[0].Details)
	}
}

func TestGazeReArmsWhileDiverted(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	// Fires on tick 7, re-arms, fires again 6 ticks later.
	faces := []models.FaceObservation{faceWithOffset(50)}
	findings := tickFaces(tr, clock, faces, 13)
	if len(findings) != 2 {
		t.Fatalf("expected 2 looking_away findings, got %d", len(findings))
	}
}

func TestCenteredGazeResetsDebounce(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	diverted := []models.FaceObservation{faceWithOffset(50)}
	centered := []models.FaceObservation{centeredFace()}

	var findings []Finding
	findings = append(findings, tickFaces(tr, clock, diverted, 4)...)
	findings = append(findings, tickFaces(tr, clock, centered, 1)...)
	findings = append(findings, tickFaces(tr, clock, diverted, 4)...)

	if len(findings) != 0 {
		t.Fatalf("expected 0 findings after reset, got %d", len(findings))
	}
}

func TestNoFaceResetsGazeDebounce(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	diverted := []models.FaceObservation{faceWithOffset(50)}

	var findings []Finding
	findings = append(findings, tickFaces(tr, clock, diverted, 4)...)
	findings = append(findings, tickFaces(tr, clock, nil, 1)...)
	findings = append(findings, tickFaces(tr, clock, diverted, 4)...)

	if len(findings) != 0 {
		t.Fatalf("gaze debounce must reset when the face disappears, got %d findings", len(findings))
	}
}

func TestMultipleFacesFireImmediately(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	faces := []models.FaceObservation{centeredFace(), centeredFace(), centeredFace()}
	clock.Advance(time.Second)
	findings := tr.Observe(faces)

	if len(findings) != 1 {
		t.Fatalf("expected immediate multiple_faces finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Type != models.EventMultipleFaces {
		t.Errorf("type = %s, want multiple_faces", f.Type)
	}
	if f.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", f.Severity)
	}
	if f.Details != "3 people detected in frame" {
		t.Errorf("details = %q", f.Details)
	}
}

func TestFaceWithoutKeypointsLeavesGazeUntouched(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	diverted := []models.FaceObservation{faceWithOffset(50)}
	malformed := []models.FaceObservation{{Confidence: 0.8}}

	tickFaces(tr, clock, diverted, 4)
	// Malformed observation: no keypoints, gaze state stays as-is.
	tickFaces(tr, clock, malformed, 2)
	findings := tickFaces(tr, clock, diverted, 1)

	// 4 + 2 + 1 ticks since the condition started; elapsed is over 5s.
	if len(findings) != 1 {
		t.Fatalf("expected the gaze timer to survive malformed frames, got %d findings", len(findings))
	}
	if findings[0].Type != models.EventLookingAway {
		t.Errorf("type = %s, want looking_away", findings[0].Type)
	}
}
