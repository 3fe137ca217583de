package monitor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared by monitor tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMonitor_AllowWithinLimit(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{Limit: 3, Window: time.Minute}, WithNow(clock.Now))

	for i := 0; i < 3; i++ {
		ok, metrics := m.Allow("user-1")
		assert.True(t, ok, "request %d should be allowed", i+1)
		assert.Equal(t, i+1, metrics.RequestsInWindow)
	}

	ok, metrics := m.Allow("user-1")
	assert.False(t, ok, "request over the limit should be denied")
	assert.Equal(t, 4, metrics.RequestsInWindow)
}

func TestMonitor_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{Limit: 2, Window: time.Minute}, WithNow(clock.Now))

	ok, _ := m.Allow("user-1")
	require.True(t, ok)
	ok, _ = m.Allow("user-1")
	require.True(t, ok)
	ok, _ = m.Allow("user-1")
	require.False(t, ok)

	// Once the early requests fall out of the window the user recovers.
	clock.Advance(61 * time.Second)
	ok, metrics := m.Allow("user-1")
	assert.True(t, ok)
	assert.Equal(t, 1, metrics.RequestsInWindow)
}

func TestMonitor_DeniedRequestsStillCount(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{Limit: 1, Window: time.Minute}, WithNow(clock.Now))

	ok, _ := m.Allow("user-1")
	require.True(t, ok)

	// Hammering while denied keeps extending the recorded history.
	for i := 0; i < 5; i++ {
		ok, _ = m.Allow("user-1")
		assert.False(t, ok)
	}
	assert.Equal(t, 6, m.UserMetrics("user-1").RequestsInWindow)
}

func TestMonitor_UsersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{Limit: 1, Window: time.Minute}, WithNow(clock.Now))

	ok, _ := m.Allow("user-1")
	require.True(t, ok)
	ok, _ = m.Allow("user-1")
	require.False(t, ok)

	ok, _ = m.Allow("user-2")
	assert.True(t, ok, "another user's limit must not leak")
}

func TestMonitor_Counters(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{}, WithNow(clock.Now))

	m.RecordFailure("user-1")
	m.RecordFailure("user-1")
	m.RecordSuspicious("user-1")

	metrics := m.UserMetrics("user-1")
	assert.Equal(t, 2, metrics.FailedAttempts)
	assert.Equal(t, 1, metrics.SuspiciousActivities)
	assert.Equal(t, 0, metrics.RequestsInWindow)

	assert.Equal(t, Metrics{}, m.UserMetrics("unknown-user"))
}

func TestMonitor_CleanupPrunesIdleUsers(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{
		Limit:         10,
		Window:        time.Minute,
		Retention:     time.Hour,
		ResetInterval: 24 * time.Hour,
	}, WithNow(clock.Now))

	m.Allow("idle-user")
	m.Allow("busy-user")
	m.RecordFailure("busy-user")

	clock.Advance(2 * time.Hour)
	m.Allow("busy-user")
	m.Cleanup()

	// The idle user's history aged out and nothing else pins the entry.
	assert.Equal(t, Metrics{}, m.UserMetrics("idle-user"))
	// The busy user keeps the fresh request and the failure counter survives
	// pruning (the wholesale reset below is what clears it).
	busy := m.UserMetrics("busy-user")
	assert.Equal(t, 1, busy.RequestsInWindow)
	assert.Equal(t, 1, busy.FailedAttempts)
}

func TestMonitor_PeriodicReset(t *testing.T) {
	clock := newFakeClock()
	m := New(Config{
		Limit:         10,
		Window:        time.Minute,
		Retention:     time.Hour,
		ResetInterval: time.Hour,
	}, WithNow(clock.Now))

	m.Allow("user-1")
	m.RecordFailure("user-1")
	m.RecordSuspicious("user-1")
	require.Equal(t, 1, m.ActiveUsers())

	clock.Advance(30 * time.Minute)
	m.Cleanup()
	assert.Equal(t, 1, m.UserMetrics("user-1").FailedAttempts, "counters survive early sweeps")

	clock.Advance(31 * time.Minute)
	m.Cleanup()
	metrics := m.UserMetrics("user-1")
	assert.Equal(t, 0, metrics.FailedAttempts)
	assert.Equal(t, 0, metrics.SuspiciousActivities)
	assert.Equal(t, 0, m.ActiveUsers())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := New(Config{Limit: 1000, Window: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", worker%4)
			for j := 0; j < 100; j++ {
				m.Allow(userID)
				m.RecordFailure(userID)
				m.UserMetrics(userID)
				if j%10 == 0 {
					m.Cleanup()
				}
			}
		}(i)
	}
	wg.Wait()

	// Two workers share each user, so each records 200 failures.
	for i := 0; i < 4; i++ {
		metrics := m.UserMetrics(fmt.Sprintf("user-%d", i))
		assert.Equal(t, 200, metrics.FailedAttempts)
		assert.Equal(t, 200, metrics.RequestsInWindow)
	}
	assert.Equal(t, 4, m.ActiveUsers())
}
