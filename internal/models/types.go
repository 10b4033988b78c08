package models

// Keypoint is a face landmark in frame pixel coordinates.
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceObservation is one detected face. Keypoints, when present, are
// ordered right eye, left eye, nose tip.
type FaceObservation struct {
	Keypoints  []Keypoint   `json:"keypoints,omitempty"`
	Box        *BoundingBox `json:"box,omitempty"`
	Confidence float64      `json:"confidence"`
}

// ObjectObservation is one detected object from an open label vocabulary.
type ObjectObservation struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// DetectionFrame is the normalized output of one classifier invocation.
// It is consumed by the trackers and discarded, never persisted.
type DetectionFrame struct {
	Timestamp int64               `json:"timestamp"`
	Faces     []FaceObservation   `json:"faces,omitempty"`
	Objects   []ObjectObservation `json:"objects,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}
