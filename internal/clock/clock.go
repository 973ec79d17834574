// Package clock abstracts wall time so backup names and install metadata
// can be pinned in tests.
package clock

import "time"

// StampLayout is the second-resolution layout used in backup archive names.
const StampLayout = "20060102150405"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// FakeClock implements Clock with a settable time for testing.
type FakeClock struct {
	current time.Time
}

// NewFakeClock creates a new FakeClock pinned at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the pinned time.
func (c *FakeClock) Now() time.Time {
	return c.current
}

// Set updates the pinned time.
func (c *FakeClock) Set(t time.Time) {
	c.current = t
}

// Advance moves the pinned time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// Stamp formats the clock's current time for use in file names.
func Stamp(c Clock) string {
	return c.Now().Format(StampLayout)
}
