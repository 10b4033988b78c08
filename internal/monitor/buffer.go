package monitor

import (
	"sync"
	"time"
)

// FrameBuffer holds the most recent frame from the candidate's client.
// Writes overwrite; the detection loops pull whatever is latest.
type FrameBuffer struct {
	mu       sync.Mutex
	frame    []byte
	received time.Time
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

func (b *FrameBuffer) Submit(frame []byte) {
	b.mu.Lock()
	b.frame = frame
	b.received = time.Now()
	b.mu.Unlock()
}

// Latest returns the most recent frame, or ok=false when none has
// arrived yet.
func (b *FrameBuffer) Latest() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil, false
	}
	return b.frame, true
}
