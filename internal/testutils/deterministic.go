// Package testutils provides deterministic generators and test doubles for neurochat.
// Some helpers are also used by production code in test mode so golden output stays stable.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BaseTime is the first instant handed out by deterministic clocks.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	idCounter uint64
	idMutex   sync.Mutex
)

// GenerateUUID returns a random UUID, or a sequential one in test mode.
// Test mode UUIDs look like 00000001-0000-4000-8000-000000000001.
func GenerateUUID(testMode bool) string {
	if testMode {
		return getDeterministicUUID()
	}
	return uuid.New().String()
}

func getDeterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

// ResetTestCounters resets the deterministic UUID sequence.
func ResetTestCounters() {
	idMutex.Lock()
	defer idMutex.Unlock()
	idCounter = 0
}

// Clock hands out increasing timestamps, one Step apart, starting at BaseTime.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	Step    time.Duration
}

// NewClock creates a clock whose first reading is BaseTime.
func NewClock() *Clock {
	return &Clock{current: BaseTime, Step: time.Second}
}

// Now returns the next timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.current
	c.current = c.current.Add(c.Step)
	return t
}

// Peek returns the next timestamp without advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
