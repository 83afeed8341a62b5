package approval

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is the minimum spacing between non-decision commands of one caller.
const DefaultCooldown = 3 * time.Second

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Cooldown throttles callers independently: one command per window each.
// It is owned by the request-handling entry point and passed in explicitly.
type Cooldown struct {
	mu      sync.Mutex
	window  time.Duration
	callers map[string]*callerLimiter
	now     func() time.Time
}

// NewCooldown builds a Cooldown; a non-positive window uses DefaultCooldown.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{
		window:  window,
		callers: make(map[string]*callerLimiter),
		now:     time.Now,
	}
}

// Allow reports whether caller is outside its cooldown window and, if so,
// starts a new window.
func (c *Cooldown) Allow(caller string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.prune(now)

	entry, ok := c.callers[caller]
	if !ok {
		entry = &callerLimiter{limiter: rate.NewLimiter(rate.Every(c.window), 1)}
		c.callers[caller] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune drops callers idle for many windows so the map stays bounded.
func (c *Cooldown) prune(now time.Time) {
	for caller, entry := range c.callers {
		if now.Sub(entry.lastSeen) > 10*c.window {
			delete(c.callers, caller)
		}
	}
}
