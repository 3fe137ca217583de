package monitor

import (
	"context"
	"sync"
	"time"
)

// Config carries the monitor's tunables. Zero values fall back to the
// production defaults.
type Config struct {
	// Limit is the number of requests allowed inside Window.
	Limit  int
	Window time.Duration
	// Retention bounds how long request history survives between sweeps.
	Retention time.Duration
	// CleanupInterval is how often the sweep goroutine prunes history.
	CleanupInterval time.Duration
	// ResetInterval is how often counters and the active-user set are
	// cleared wholesale.
	ResetInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.ResetInterval <= 0 {
		c.ResetInterval = time.Hour
	}
	return c
}

// Metrics is a snapshot of one user's counters, exposed for alerting and
// throttling decisions outside the gateway.
type Metrics struct {
	FailedAttempts       int `json:"failedAttempts"`
	SuspiciousActivities int `json:"suspiciousActivities"`
	RequestsInWindow     int `json:"requestsInWindow"`
}

type userActivity struct {
	timestamps []time.Time
	failed     int
	suspicious int
}

// Monitor is the per-user rate limiter and activity tracker. State is held in
// process memory: limits are per instance, not per deployment. A horizontally
// scaled deployment needs a shared Store behind the same interface.
type Monitor struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	users     map[string]*userActivity
	active    map[string]struct{}
	lastReset time.Time
}

type Option func(*Monitor)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func New(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		users:  make(map[string]*userActivity),
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastReset = m.now()
	return m
}

// Allow records one request for userID and reports whether it stays inside
// the sliding window. The pruned timestamp list is written back, so memory is
// bounded by recent activity. Allow never fails; a denied request is still
// recorded so repeated hammering keeps the user over the limit.
func (m *Monitor) Allow(userID string) (bool, Metrics) {
	now := m.now()
	cutoff := now.Add(-m.cfg.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[userID]
	if u == nil {
		u = &userActivity{}
		m.users[userID] = u
	}
	m.active[userID] = struct{}{}

	recent := u.timestamps[:0]
	for _, ts := range u.timestamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	u.timestamps = recent

	return len(recent) <= m.cfg.Limit, m.metricsLocked(u)
}

// RecordFailure increments the failed-attempt counter for userID.
func (m *Monitor) RecordFailure(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).failed++
}

// RecordSuspicious increments the suspicious-activity counter for userID.
func (m *Monitor) RecordSuspicious(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).suspicious++
}

// UserMetrics returns a snapshot of one user's counters.
func (m *Monitor) UserMetrics(userID string) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	if u == nil {
		return Metrics{}
	}
	return m.metricsLocked(u)
}

// ActiveUsers reports how many distinct users were seen since the last reset.
func (m *Monitor) ActiveUsers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Monitor) user(userID string) *userActivity {
	u := m.users[userID]
	if u == nil {
		u = &userActivity{}
		m.users[userID] = u
	}
	return u
}

func (m *Monitor) metricsLocked(u *userActivity) Metrics {
	cutoff := m.now().Add(-m.cfg.Window)
	inWindow := 0
	for _, ts := range u.timestamps {
		if ts.After(cutoff) {
			inWindow++
		}
	}
	return Metrics{
		FailedAttempts:       u.failed,
		SuspiciousActivities: u.suspicious,
		RequestsInWindow:     inWindow,
	}
}

// Start runs the periodic cleanup until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// Cleanup prunes request history older than the retention horizon and, once
// per reset interval, clears counters and the active-user set wholesale. The
// key set is snapshotted first so the lock is never held across the whole
// per-user pass.
func (m *Monitor) Cleanup() {
	now := m.now()
	cutoff := now.Add(-m.cfg.Retention)

	m.mu.Lock()
	keys := make([]string, 0, len(m.users))
	for k := range m.users {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, k := range keys {
		m.mu.Lock()
		u := m.users[k]
		if u != nil {
			recent := u.timestamps[:0]
			for _, ts := range u.timestamps {
				if ts.After(cutoff) {
					recent = append(recent, ts)
				}
			}
			u.timestamps = recent
			if len(recent) == 0 && u.failed == 0 && u.suspicious == 0 {
				delete(m.users, k)
			}
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	if now.Sub(m.lastReset) >= m.cfg.ResetInterval {
		for _, u := range m.users {
			u.failed = 0
			u.suspicious = 0
		}
		m.active = make(map[string]struct{})
		m.lastReset = now
	}
	m.mu.Unlock()
}
