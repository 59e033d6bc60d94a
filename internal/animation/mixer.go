package animation

import (
	"math"
	"sync"
	"time"
)

// Driver advances a clip by an elapsed-time delta once per rendered frame.
type Driver interface {
	Advance(clip *Clip, deltaSeconds float64)
}

// Mixer plays one clip on repeat. Switching clips restarts playback.
type Mixer struct {
	mu   sync.Mutex
	clip *Clip
	time float64
}

// NewMixer creates an idle mixer.
func NewMixer() *Mixer {
	return &Mixer{}
}

// Advance moves playback of clip forward and applies the sampled pose to the
// clip's target nodes. A nil clip is a no-op; negative deltas count as zero.
func (m *Mixer) Advance(clip *Clip, deltaSeconds float64) {
	if clip == nil {
		return
	}
	if deltaSeconds < 0 || math.IsNaN(deltaSeconds) {
		deltaSeconds = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if clip != m.clip {
		m.clip = clip
		m.time = 0
	}
	m.time += deltaSeconds

	local := m.time
	if clip.Duration > 0 {
		local = math.Mod(local, clip.Duration)
	}
	for i := range clip.Tracks {
		clip.Tracks[i].apply(local)
	}
}

// Time returns the total playback time of the current clip.
func (m *Mixer) Time() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.time * float64(time.Second))
}
