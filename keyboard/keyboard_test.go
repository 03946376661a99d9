package keyboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/clock"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/component"
)

type fakeSource struct {
	now time.Duration
}

func (f *fakeSource) Now() time.Duration { return f.now }

func started(src clock.Source) *Keyboard {
	kb := New(src)
	kb.Clock.Reset()
	kb.Start()
	kb.ClearEvents()
	return kb
}

func TestIgnoresEventsUntilStarted(t *testing.T) {
	src := &fakeSource{}
	kb := New(src)
	kb.Feed(Event{Name: "Left", Down: true, At: time.Second})
	assert.Empty(t, kb.Keys(nil, false))

	kb.Start()
	kb.Feed(Event{Name: "Left", Down: true, At: 2 * time.Second})
	assert.Len(t, kb.Keys(nil, false), 1)
}

func TestReactionTimeRelativeToClock(t *testing.T) {
	src := &fakeSource{now: 5 * time.Second}
	kb := started(src)

	kb.Feed(
		Event{Name: "Right", Down: true, At: 5*time.Second + 640*time.Millisecond},
		Event{Name: "Right", Down: false, At: 5*time.Second + 750*time.Millisecond},
	)
	keys := kb.Keys([]string{"left", "right"}, false)
	require.Len(t, keys, 1)
	assert.Equal(t, "right", keys[0].Name)
	assert.Equal(t, 640*time.Millisecond, keys[0].RT)
	assert.True(t, keys[0].Released)
	assert.Equal(t, 110*time.Millisecond, keys[0].Duration)

	assert.Empty(t, kb.Keys(nil, false), "presses are consumed")
}

func TestKeyListFiltersAndKeepsOthers(t *testing.T) {
	src := &fakeSource{}
	kb := started(src)
	kb.Feed(
		Event{Name: "Space", Down: true, At: time.Millisecond},
		Event{Name: "Left", Down: true, At: 2 * time.Millisecond},
	)
	keys := kb.Keys([]string{"left", "right"}, false)
	require.Len(t, keys, 1)
	assert.Equal(t, "left", keys[0].Name)

	rest := kb.Keys(nil, false)
	require.Len(t, rest, 1)
	assert.Equal(t, "space", rest[0].Name)
}

func TestWaitReleaseAndRepeat(t *testing.T) {
	src := &fakeSource{}
	kb := started(src)
	kb.Feed(
		Event{Name: "Left", Down: true, At: 10 * time.Millisecond},
		Event{Name: "Left", Down: true, Repeat: true, At: 40 * time.Millisecond},
	)
	assert.Empty(t, kb.Keys(nil, true))

	kb.Feed(Event{Name: "Left", Down: false, At: 90 * time.Millisecond})
	keys := kb.Keys(nil, true)
	require.Len(t, keys, 1)
	assert.Equal(t, 80*time.Millisecond, keys[0].Duration)
}

func TestStopAndClear(t *testing.T) {
	src := &fakeSource{}
	kb := started(src)
	kb.Feed(Event{Name: "a", Down: true})
	kb.ClearEvents()
	assert.Empty(t, kb.Keys(nil, false))

	kb.Stop()
	assert.Equal(t, component.Finished, kb.Status())
	kb.Feed(Event{Name: "a", Down: true})
	assert.Empty(t, kb.Keys(nil, false))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "left", Normalize("Left"))
	assert.Equal(t, "escape", Normalize("Escape"))
	assert.Equal(t, "keypad_enter", Normalize("Keypad Enter"))
}

func TestDropsPressesBeforeClockReset(t *testing.T) {
	src := &fakeSource{now: time.Second}
	kb := started(src)
	kb.Feed(
		Event{Name: "Left", Down: true, At: time.Second - 10*time.Millisecond},
		Event{Name: "Left", Down: false, At: time.Second + 20*time.Millisecond},
		Event{Name: "Right", Down: true, At: time.Second + 30*time.Millisecond},
	)
	keys := kb.Keys(nil, false)
	require.Len(t, keys, 1)
	assert.Equal(t, "right", keys[0].Name)
	assert.Equal(t, 30*time.Millisecond, keys[0].RT)
}
