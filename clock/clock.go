// Package clock provides the relative clocks and countdown timers used to time
// routines and responses.
package clock

import (
	"time"
)

// Source reports monotonic time since an arbitrary origin.
type Source interface {
	Now() time.Duration
}

type SourceFunc func() time.Duration

func (f SourceFunc) Now() time.Duration { return f() }

type monotonic struct {
	origin time.Time
}

func (m monotonic) Now() time.Duration { return time.Since(m.origin) }

// Monotonic returns a Source anchored at the moment of the call.
func Monotonic() Source {
	return monotonic{origin: time.Now()}
}

// Clock measures time elapsed since its last reset.
type Clock struct {
	src       Source
	lastReset time.Duration
}

func New(src Source) *Clock {
	if src == nil {
		src = Monotonic()
	}
	return &Clock{src: src, lastReset: src.Now()}
}

func (c *Clock) Reset() {
	c.lastReset = c.src.Now()
}

// ResetTo resets the clock so that it reads -t immediately afterwards.
func (c *Clock) ResetTo(t time.Duration) {
	c.lastReset = c.src.Now() + t
}

func (c *Clock) Add(d time.Duration) {
	c.lastReset += d
}

func (c *Clock) Time() time.Duration {
	return c.src.Now() - c.lastReset
}

// TimeAt converts an absolute Source timestamp to this clock's time base.
func (c *Clock) TimeAt(abs time.Duration) time.Duration {
	return abs - c.lastReset
}

// CountdownTimer counts down towards zero and goes negative once expired.
type CountdownTimer struct {
	src      Source
	deadline time.Duration
}

func NewCountdown(src Source, start time.Duration) *CountdownTimer {
	if src == nil {
		src = Monotonic()
	}
	return &CountdownTimer{src: src, deadline: src.Now() + start}
}

func (t *CountdownTimer) Reset() {
	t.deadline = t.src.Now()
}

func (t *CountdownTimer) Add(d time.Duration) {
	t.deadline += d
}

func (t *CountdownTimer) Time() time.Duration {
	return t.deadline - t.src.Now()
}

// DateStr formats a session timestamp, e.g. 2025-08-20_14h03.22.123.
func DateStr(t time.Time) string {
	return t.Format("2006-01-02_15h04.05.000")
}
