package webrtc

import (
	"sync"
	"time"
)

// ssrcWatch notices when the video source switches to a new SSRC. The first
// SSRC seen is the baseline.
type ssrcWatch struct {
	mu   sync.Mutex
	ssrc uint32
	last time.Time
	seen bool
}

// Observe records a packet and reports the gap since the previous source's
// last packet when the SSRC changed.
func (w *ssrcWatch) Observe(ssrc uint32, now time.Time) (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.seen {
		w.ssrc, w.last, w.seen = ssrc, now, true
		return 0, false
	}
	if ssrc == w.ssrc {
		w.last = now
		return 0, false
	}

	stall := now.Sub(w.last)
	if stall < 0 {
		stall = 0
	}
	w.ssrc, w.last = ssrc, now

	return stall, true
}
