package experiment

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/clock"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/component"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/keyboard"
)

const frame = time.Second / 60

type fakeDrawer struct {
	w *fakeWindow
}

func (d *fakeDrawer) Draw() error { return nil }

func (d *fakeDrawer) SetImage(path string) error {
	d.w.images = append(d.w.images, path)
	return nil
}

// fakeWindow advances its clock by one frame per flip and asks keys for the
// events of each frame.
type fakeWindow struct {
	now    time.Duration
	list   *component.DrawList
	onFlip []func()
	flips  int
	drawn  []string
	images []string
	closed int
	keys   func(w *fakeWindow) []keyboard.Event
}

func newFakeWindow(keys func(w *fakeWindow) []keyboard.Event) *fakeWindow {
	return &fakeWindow{list: component.NewDrawList(), keys: keys}
}

func (w *fakeWindow) NewText(name, _ string, _ float64) (*component.Visual, error) {
	return w.list.NewVisual(name, &fakeDrawer{w: w}), nil
}

func (w *fakeWindow) NewImage(name string, _, _ float64) (*component.Visual, error) {
	return w.list.NewVisual(name, &fakeDrawer{w: w}), nil
}

func (w *fakeWindow) CallOnFlip(fn func()) { w.onFlip = append(w.onFlip, fn) }

func (w *fakeWindow) Flip() error {
	w.now += frame
	w.flips++
	if err := w.list.Draw(); err != nil {
		return err
	}
	w.drawn = w.list.Names()
	fns := w.onFlip
	w.onFlip = nil
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (w *fakeWindow) PollKeys() []keyboard.Event {
	if w.keys == nil {
		return nil
	}
	return w.keys(w)
}

func (w *fakeWindow) Clock() clock.Source {
	return clock.SourceFunc(func() time.Duration { return w.now })
}

func (w *fakeWindow) FrameRate() float64 { return 60 }

func (w *fakeWindow) Close() error {
	w.closed++
	return nil
}

func (w *fakeWindow) showing(name string) bool { return slices.Contains(w.drawn, name) }

func press(name string, at time.Duration) []keyboard.Event {
	return []keyboard.Event{
		{Name: name, Down: true, At: at},
		{Name: name, Down: false, At: at + 50*time.Millisecond},
	}
}

// participant presses space on the instructions and answers each trial with
// answer(trial) on the third frame the image is shown.
func participant(answer func(trial int) string) func(w *fakeWindow) []keyboard.Event {
	shown := 0
	return func(w *fakeWindow) []keyboard.Event {
		if w.showing("instrText") {
			return press("space", w.now)
		}
		if !w.showing("image") {
			shown = 0
			return nil
		}
		shown++
		if shown != 3 {
			return nil
		}
		key := answer(len(w.images) - 1)
		if key == "" {
			return nil
		}
		return press(key, w.now)
	}
}

type triggerCall struct {
	set   bool
	lines string
}

type fakeTrigger struct {
	calls []triggerCall
}

func (t *fakeTrigger) Set(lines string) error {
	t.calls = append(t.calls, triggerCall{true, lines})
	return nil
}

func (t *fakeTrigger) Unset(lines string) error {
	t.calls = append(t.calls, triggerCall{false, lines})
	return nil
}

const block = "trial,lum1,lum2,c1,c2,im\n" +
	"1,0.25,0.5,0,1,imgs/white_0.25_0.5_0.0_1.0.png\n" +
	"2,0.67,0.42,1,1,imgs/white_0.67_0.42_1.0_1.0.png\n" +
	"3,0.33,0.75,1,0,imgs/white_0.33_0.75_1.0_0.0.png\n"

var sessionStart = time.Date(2025, 8, 20, 14, 3, 22, 123e6, time.UTC)

func setup(t *testing.T) (Info, Options) {
	t.Helper()
	conds := t.TempDir()
	require.NoError(t, os.WriteFile(ConditionsFile(conds, "1"), []byte(block), 0o644))

	opts := DefaultOptions()
	opts.ConditionsDir = conds
	opts.StimuliDir = "stim"
	opts.DataDir = t.TempDir()
	opts.ThanksDuration = 200 * time.Millisecond
	opts.Logger = zaptest.NewLogger(t)
	opts.Now = func() time.Time { return sessionStart }

	info := Info{Participant: "p01", Session: "1", Confirmed: true, RunID: "run-1"}
	return info, opts
}

func alternate(trial int) string {
	if trial%2 == 0 {
		return "left"
	}
	return "right"
}

func readData(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestFullSession(t *testing.T) {
	info, opts := setup(t)
	var progress bytes.Buffer
	opts.Progress = &progress
	trig := &fakeTrigger{}
	opts.Trigger = trig

	win := newFakeWindow(participant(alternate))
	exp := New(win, info, opts)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, 1, win.closed)
	assert.Equal(t, filepath.Join(opts.DataDir, "p01_2025-08-20_14h03.22.123.tsv"), res.DataFile)
	assert.Contains(t, progress.String(), "Trial: 3/3")

	assert.Equal(t, []string{
		filepath.Join("stim", "imgs", "white_0.25_0.5_0.0_1.0.png"),
		filepath.Join("stim", "imgs", "white_0.67_0.42_1.0_1.0.png"),
		filepath.Join("stim", "imgs", "white_0.33_0.75_1.0_0.0.png"),
	}, win.images)

	assert.Equal(t, []string{
		"instruct.started", "instruct.stopped",
		"session", "participant", "date", "expName", "version", "OS", "frameRate", "runID",
		"trial.started", "trial.stopped", "resp.keys", "resp.rt", "resp.duration",
		"trials.thisRepN", "trials.thisTrialN", "trials.thisN", "trials.thisIndex", "trials.ran",
		"trial", "lum1", "lum2", "c1", "c2", "im",
		"thanks.started", "thanks.stopped",
	}, exp.Data().Columns())

	rows := exp.Data().Rows()
	for i, key := range []string{"left", "right", "left"} {
		row := rows[i+1]
		assert.Equal(t, key, row["resp.keys"])
		assert.Equal(t, 2*frame, row["resp.rt"])
		assert.Equal(t, 50*time.Millisecond, row["resp.duration"])
		assert.Equal(t, i, row["trials.thisN"])
		assert.Equal(t, "p01", row["participant"])
	}
	assert.Contains(t, rows[0], "instruct.started")
	assert.NotContains(t, rows[0], "trials.thisN")
	assert.Contains(t, rows[4], "thanks.stopped")

	records := readData(t, res.DataFile)
	require.Len(t, records, 6)
	assert.Equal(t, exp.Data().Columns(), records[0])
	assert.Equal(t, "0.0333333", records[2][13][:9])

	var want []triggerCall
	for range 3 {
		want = append(want, triggerCall{true, "1"}, triggerCall{true, "2"}, triggerCall{false, "12"})
	}
	assert.Equal(t, want, trig.calls)

	got := exp.Info()
	assert.Equal(t, Name, got.ExpName)
	assert.Equal(t, 60.0, got.FrameRate)
	assert.Equal(t, "2025-08-20_14h03.22.123", got.Date)
}

func TestPressBeforeOnsetIgnored(t *testing.T) {
	info, opts := setup(t)
	respond := participant(func(int) string { return "right" })
	instrPolls, early := 0, false
	win := newFakeWindow(nil)
	win.keys = func(w *fakeWindow) []keyboard.Event {
		if w.showing("instrText") {
			instrPolls++
			if instrPolls == 1 {
				// stamped before the flip that started the keyboard
				return []keyboard.Event{{Name: "space", Down: true, At: w.now - 10*time.Millisecond}}
			}
			return press("space", w.now)
		}
		evs := respond(w)
		if w.showing("image") && !early {
			early = true
			evs = append(evs, keyboard.Event{Name: "left", Down: true, At: w.now - 10*time.Millisecond})
		}
		return evs
	}
	exp := New(win, info, opts)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Completed)

	rows := exp.Data().Rows()
	assert.Equal(t, 2*frame, rows[0]["instruct.stopped"], "instructions end on the second press")
	assert.Equal(t, "right", rows[1]["resp.keys"])
	assert.Equal(t, 2*frame, rows[1]["resp.rt"])
}

func TestThanksEndsBeforeLastFrame(t *testing.T) {
	info, opts := setup(t)
	respond := participant(alternate)
	thanksFlips := 0
	win := newFakeWindow(nil)
	win.keys = func(w *fakeWindow) []keyboard.Event {
		if w.showing("thanksText") {
			thanksFlips++
		}
		return respond(w)
	}
	res, err := New(win, info, opts).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Completed)

	// the text comes down on the first frame at or past duration - 3/4 frame
	cutoff := opts.ThanksDuration - frame*3/4
	want := int((cutoff + frame - 1) / frame)
	assert.Equal(t, want, thanksFlips)
	assert.Equal(t, 12, thanksFlips)
}

func TestImageWaitsForResponseDelay(t *testing.T) {
	info, opts := setup(t)
	var onset time.Duration
	win := newFakeWindow(nil)
	respond := participant(alternate)
	win.keys = func(w *fakeWindow) []keyboard.Event {
		if w.showing("image") && onset == 0 {
			onset = w.now
		}
		return respond(w)
	}
	exp := New(win, info, opts)
	_, err := exp.Run(context.Background())
	require.NoError(t, err)

	trialStart := exp.Data().Rows()[1]["trial.started"].(time.Duration)
	assert.GreaterOrEqual(t, onset-trialStart, opts.ResponseDelay)
	assert.Less(t, onset-trialStart, opts.ResponseDelay+2*frame)
}

func TestEscapeDuringTrial(t *testing.T) {
	escapeOnSecond := func(trial int) string {
		if trial == 1 {
			return "escape"
		}
		return "left"
	}

	t.Run("pending data saved", func(t *testing.T) {
		info, opts := setup(t)
		win := newFakeWindow(participant(escapeOnSecond))
		exp := New(win, info, opts)
		res, err := exp.Run(context.Background())
		require.NoError(t, err)

		assert.False(t, res.Completed)
		assert.Equal(t, escapeMessage, res.Message)
		assert.Equal(t, 1, win.closed)
		rows := exp.Data().Rows()
		require.Len(t, rows, 3)
		last := rows[2]
		assert.Contains(t, last, "trial.started")
		assert.NotContains(t, last, "trial.stopped")
		assert.Equal(t, 1, last["trials.thisN"])
		assert.Len(t, readData(t, res.DataFile), 4)
	})

	t.Run("pending data dropped", func(t *testing.T) {
		info, opts := setup(t)
		opts.SaveIncomplete = false
		win := newFakeWindow(participant(escapeOnSecond))
		exp := New(win, info, opts)
		res, err := exp.Run(context.Background())
		require.NoError(t, err)

		assert.False(t, res.Completed)
		assert.Equal(t, 2, res.Rows)
	})
}

func TestEscapeDuringInstructions(t *testing.T) {
	info, opts := setup(t)
	win := newFakeWindow(func(w *fakeWindow) []keyboard.Event {
		if w.showing("instrText") {
			return press("escape", w.now)
		}
		return nil
	})
	exp := New(win, info, opts)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Completed)
	require.Len(t, exp.Data().Rows(), 1)
	assert.Contains(t, exp.Data().Rows()[0], "instruct.started")
	assert.Empty(t, win.images)
}

func TestDialogCancelled(t *testing.T) {
	info, opts := setup(t)
	info.Confirmed = false
	win := newFakeWindow(nil)
	res, err := New(win, info, opts).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Completed)
	assert.Empty(t, res.DataFile)
	assert.Zero(t, res.Rows)
	assert.Equal(t, 1, win.closed)
	assert.Zero(t, win.flips)

	entries, err := os.ReadDir(opts.DataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEndLoopKey(t *testing.T) {
	info, opts := setup(t)
	opts.EndLoopKey = "q"
	win := newFakeWindow(participant(func(trial int) string {
		if trial == 1 {
			return "q"
		}
		return "right"
	}))
	exp := New(win, info, opts)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Len(t, win.images, 2)
	rows := exp.Data().Rows()
	require.Len(t, rows, 4)
	assert.Nil(t, rows[2]["resp.keys"])
	assert.Equal(t, 1, rows[2]["trials.thisN"])
	assert.Contains(t, rows[3], "thanks.started")
}

func TestMissingConditionsFile(t *testing.T) {
	info, opts := setup(t)
	info.Session = "7"
	win := newFakeWindow(participant(alternate))
	res, err := New(win, info, opts).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "load conditions")
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, res.Completed)
	assert.Equal(t, 1, win.closed)
	assert.Equal(t, 1, res.Rows, "instructions row is kept")
}

func TestContextCancelled(t *testing.T) {
	info, opts := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	win := newFakeWindow(func(w *fakeWindow) []keyboard.Event {
		if w.flips == 5 {
			cancel()
		}
		return nil
	})
	res, err := New(win, info, opts).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Completed)
	assert.FileExists(t, res.DataFile)
}

func TestConditionsFile(t *testing.T) {
	assert.Equal(t, filepath.Join("conds", "block_3.csv"), ConditionsFile("conds", "3"))
}
