package track

import "time"

// sessionClock accumulates active tracking time across start/stop cycles.
// The zero value is ready to use; only the loop goroutine calls onTick.
type sessionClock struct {
	active      bool
	startedAt   time.Time
	lastSession time.Duration
	accumulated time.Duration
}

func (c *sessionClock) onTick(active bool, now time.Time) {
	if active {
		if !c.active {
			c.active = true
			c.startedAt = now
			c.lastSession = 0
		}
		c.lastSession = now.Sub(c.startedAt)
	} else if c.active {
		c.lastSession = now.Sub(c.startedAt)
		c.accumulated += c.lastSession
		c.active = false
	}
}

// values returns the current session duration and the total active time,
// including the ongoing session while active.
func (c *sessionClock) values() (session, total time.Duration) {
	session = c.lastSession
	total = c.accumulated
	if c.active {
		total += session
	}
	return
}
