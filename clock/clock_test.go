package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	now time.Duration
}

func (f *fakeSource) Now() time.Duration { return f.now }

func TestClockResetAndAdd(t *testing.T) {
	src := &fakeSource{now: 10 * time.Second}
	c := New(src)
	assert.Equal(t, time.Duration(0), c.Time())

	src.now += 1500 * time.Millisecond
	assert.Equal(t, 1500*time.Millisecond, c.Time())

	c.Reset()
	assert.Equal(t, time.Duration(0), c.Time())

	c.ResetTo(2 * time.Second)
	assert.Equal(t, -2*time.Second, c.Time())

	c.Add(time.Second)
	assert.Equal(t, -3*time.Second, c.Time())

	assert.Equal(t, time.Duration(0), c.TimeAt(src.now+3*time.Second))
}

func TestCountdownTimer(t *testing.T) {
	src := &fakeSource{}
	timer := NewCountdown(src, 0)
	assert.Equal(t, time.Duration(0), timer.Time())

	timer.Add(2 * time.Second)
	src.now = 500 * time.Millisecond
	assert.Equal(t, 1500*time.Millisecond, timer.Time())

	src.now = 3 * time.Second
	assert.Less(t, timer.Time(), time.Duration(0))

	timer.Reset()
	assert.Equal(t, time.Duration(0), timer.Time())
}

func TestDateStr(t *testing.T) {
	ts := time.Date(2025, time.August, 20, 14, 3, 22, 123_000_000, time.UTC)
	assert.Equal(t, "2025-08-20_14h03.22.123", DateStr(ts))
}
