// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// Clock abstracts wall time so timing rules can be tested without sleeping
type Clock interface {
	Now() time.Time
}

// SystemClock is the real UTC clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return UTCNow() }

// FixedClock always returns T
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the fixed clock forward
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
