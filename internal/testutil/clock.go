package testutil

import (
	"fmt"
	"sync"
	"time"
)

// ScanEpoch is the instant every test clock and mock file timestamp starts from.
var ScanEpoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)

// ScanClock is a manual integrity.Clock. It only moves when Advance is
// called, so report timestamps in tests are exact. Safe for concurrent use.
type ScanClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewScanClock returns a ScanClock reading ScanEpoch.
func NewScanClock() *ScanClock {
	return &ScanClock{current: ScanEpoch}
}

func (c *ScanClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *ScanClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// RunIDs hands out predictable scan run IDs: "run-1", "run-2", ...
type RunIDs struct {
	mu   sync.Mutex
	next int
}

func (g *RunIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("run-%d", g.next)
}
