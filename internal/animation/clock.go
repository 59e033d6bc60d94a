package animation

import "time"

// Clock measures per-frame deltas. It is reset to zero on every Start and
// reports no time while stopped. Not safe for concurrent use.
type Clock struct {
	last    time.Time
	elapsed time.Duration
	running bool
}

// Start resets the clock and begins measuring from now.
func (c *Clock) Start(now time.Time) {
	c.last = now
	c.elapsed = 0
	c.running = true
}

// Stop pauses the clock. Elapsed keeps its value until the next Start.
func (c *Clock) Stop() {
	c.running = false
}

// Running reports whether the clock is measuring.
func (c *Clock) Running() bool {
	return c.running
}

// Delta returns the seconds since the previous Delta or Start. A timestamp
// earlier than the previous one yields zero.
func (c *Clock) Delta(now time.Time) float64 {
	if !c.running {
		return 0
	}
	d := now.Sub(c.last)
	if d < 0 {
		return 0
	}
	c.last = now
	c.elapsed += d
	return d.Seconds()
}

// Elapsed returns the time accumulated since the last Start.
func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}
