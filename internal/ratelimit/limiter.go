package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Config configures a fixed-window rate limiter.
type Config struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int

	// Window is the length of the fixed window.
	Window time.Duration

	// CleanupInterval controls how often expired windows are purged.
	// Defaults to the window length when not positive.
	CleanupInterval time.Duration
}

// Decision is the outcome of a rate limit check. It carries everything the
// HTTP layer needs to populate X-RateLimit-* headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// window tracks request counting state for one client key.
type window struct {
	count         int
	windowResetAt time.Time
	lastRequestAt time.Time
}

// Limiter implements fixed-window rate limiting keyed by client identity.
// When a key's window has passed, the next request starts a fresh window;
// this reset-on-expiry design is O(1) per key and accepts bursts of up to
// twice the limit across a window boundary as a deliberate tradeoff.
//
// Each endpoint class gets its own Limiter instance; instances share no
// state. All methods are safe for concurrent use.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	windows map[string]*window

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Limiter and starts its background cleanup loop.
func New(cfg Config) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.Window
	}

	l := &Limiter{
		cfg:     cfg,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Check records a request for the given key and returns the admission
// decision. It never blocks; callers reject or queue based on the result.
func (l *Limiter) Check(key string) Decision {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.windowResetAt) {
		w = &window{windowResetAt: now.Add(l.cfg.Window)}
		l.windows[key] = w
	}

	w.count++
	w.lastRequestAt = now

	remaining := l.cfg.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   w.count <= l.cfg.MaxRequests,
		Limit:     l.cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   w.windowResetAt,
	}

	if !d.Allowed {
		retryAfter := time.Duration(math.Ceil(w.windowResetAt.Sub(now).Seconds())) * time.Second
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		d.RetryAfter = retryAfter
	}

	return d
}

// ActiveKeys returns the number of keys with tracked windows, expired or not.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the background cleanup loop.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// cleanupLoop periodically purges windows that have expired, bounding memory
// to the number of distinct active keys.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.purgeExpired()
		}
	}
}

func (l *Limiter) purgeExpired() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.After(w.windowResetAt) {
			delete(l.windows, key)
		}
	}
}
