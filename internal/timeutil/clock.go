// Package timeutil provides a testable abstraction over wall-clock reads.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the current time. Components that stamp inbound data or
// stored rows take a Clock so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

// UnixMillis returns c.Now() in milliseconds since the Unix epoch, the unit
// used for telemetry receipt times and preset timestamps.
func UnixMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock only moves when told to.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
