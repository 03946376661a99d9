// Package experiment runs the White's-illusion brightness comparison: an
// instruction screen, one block of trials read from block_<session>.csv and a
// thank-you screen, recording every response to the participant's data file.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/clock"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/component"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/data"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/design"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/keyboard"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/scheduler"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/trials"
)

const (
	Name    = "mlcm_experiment_whites_illusion"
	Version = "1.0.0"

	InstructionText = "MLCM and White's illusion\n\n" +
		"Choose which target looks BRIGHTER.\n" +
		"(target positions are indicated with an asterisk on the bottom)\n\n" +
		"Press the LEFT or RIGHT arrow\n\n" +
		"Press any key to continue\n" +
		"Press Esc to quit"
	ThanksText = "This is the end of the experiment\n\nThanks!"

	escapeMessage = "The [Escape] key was pressed. Goodbye!"
)

// Window is the display the routines draw on. Sizes are fractions of the
// screen height.
type Window interface {
	NewText(name, text string, letterHeight float64) (*component.Visual, error)
	NewImage(name string, width, height float64) (*component.Visual, error)
	CallOnFlip(fn func())
	Flip() error
	PollKeys() []keyboard.Event
	Clock() clock.Source
	// FrameRate is the measured refresh rate, or 0 when unknown.
	FrameRate() float64
	Close() error
}

// Trigger drives the output lines of a TTL box, named "1" to "8".
type Trigger interface {
	Set(lines string) error
	Unset(lines string) error
}

// Info is the session record filled in by the dialog and completed when the
// experiment starts.
type Info struct {
	Participant string
	Session     string
	Confirmed   bool

	Date      string
	ExpName   string
	Version   string
	OS        string
	FrameRate float64
	RunID     string
}

type Options struct {
	ConditionsDir  string
	StimuliDir     string
	DataDir        string
	ImageColumn    string
	ResponseKeys   []string
	ResponseDelay  time.Duration
	ThanksDuration time.Duration
	ImageSize      [2]float64
	NReps          int
	Method         trials.Method
	Seed           int64
	// EndLoopKey ends the block after the current trial; empty disables it.
	EndLoopKey string
	// SaveIncomplete flushes data pending when escape is pressed as a last row.
	SaveIncomplete bool

	Trigger  Trigger
	Logger   *zap.Logger
	Progress io.Writer
	Now      func() time.Time
}

func DefaultOptions() Options {
	return Options{
		ConditionsDir:  ".",
		StimuliDir:     ".",
		DataDir:        "data",
		ImageColumn:    "im",
		ResponseKeys:   []string{"left", "right"},
		ResponseDelay:  500 * time.Millisecond,
		ThanksDuration: 2 * time.Second,
		ImageSize:      [2]float64{0.65, 0.5},
		NReps:          1,
		Method:         trials.Sequential,
		SaveIncomplete: true,
	}
}

type Result struct {
	Completed bool
	Message   string
	DataFile  string
	Rows      int
}

// ConditionsFile is the block presented in the given session.
func ConditionsFile(dir, session string) string {
	return filepath.Join(dir, fmt.Sprintf("block_%s.csv", session))
}

type Experiment struct {
	win    Window
	info   Info
	opts   Options
	logger *zap.Logger
	src    clock.Source
	data   *data.Experiment

	frameDur time.Duration

	// routine state
	t                 time.Duration
	frameN            int
	continueRoutine   bool
	routineForceEnded bool
	components        []component.Component

	globalClock   *clock.Clock
	routineTimer  *clock.CountdownTimer
	instructClock *clock.Clock
	trialClock    *clock.Clock
	thanksClock   *clock.Clock

	events    *keyboard.Keyboard
	ready     *keyboard.Keyboard
	resp      *keyboard.Keyboard
	readyKeys []keyboard.Press
	respKeys  []keyboard.Press
	instrText *component.Visual
	image     *component.Visual
	thanks    *component.Visual

	trials  *trials.Handler
	endLoop bool

	quitted bool
	closed  bool
	result  Result
}

func New(win Window, info Info, opts Options) *Experiment {
	def := DefaultOptions()
	if opts.ImageColumn == "" {
		opts.ImageColumn = def.ImageColumn
	}
	if len(opts.ResponseKeys) == 0 {
		opts.ResponseKeys = def.ResponseKeys
	}
	if opts.ThanksDuration <= 0 {
		opts.ThanksDuration = def.ThanksDuration
	}
	if opts.ImageSize == ([2]float64{}) {
		opts.ImageSize = def.ImageSize
	}
	if opts.NReps < 1 {
		opts.NReps = 1
	}
	if opts.DataDir == "" {
		opts.DataDir = def.DataDir
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Experiment{
		win:    win,
		info:   info,
		opts:   opts,
		logger: opts.Logger,
		src:    win.Clock(),
		data:   data.New(Name),
	}
}

func (e *Experiment) Data() *data.Experiment { return e.data }

func (e *Experiment) Info() Info { return e.info }

// Run executes the whole session and saves the data file, also when the
// participant aborted.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	root := e.build()
	err := scheduler.Run(ctx, root, scheduler.FlipperFunc(e.flip))
	if errors.Is(err, scheduler.ErrQuit) {
		err = nil
	}
	if err != nil {
		e.logger.Warn("experiment interrupted", zap.Error(err))
		if !e.quitted {
			e.quit(err.Error(), false)
		}
	}

	if e.data.FileName != "" {
		path, serr := e.data.SaveFile()
		if serr != nil {
			return &e.result, errors.Join(err, fmt.Errorf("save data: %w", serr))
		}
		e.result.DataFile = path
		e.logger.Info("data saved", zap.String("path", path), zap.Int("rows", len(e.data.Rows())))
	}
	e.result.Rows = len(e.data.Rows())
	return &e.result, err
}

func (e *Experiment) build() *scheduler.Scheduler {
	root := scheduler.New("root")
	flow := scheduler.New("flow")
	cancel := scheduler.New("dialogCancel")
	root.Add(scheduler.Condition(func() bool { return e.info.Confirmed }, flow, cancel))

	flow.Add(e.updateInfo, e.init)
	flow.Add(e.instructBegin, e.instructEachFrame, e.instructEnd)
	loop := scheduler.New("trials")
	flow.Add(e.trialsLoopBegin(loop))
	flow.AddScheduler(loop)
	flow.Add(e.trialsLoopEnd)
	flow.Add(e.thanksBegin, e.thanksEachFrame, e.thanksEnd)
	flow.Add(e.quitTask("", true))

	cancel.Add(e.quitTask("", false))
	return root
}

func (e *Experiment) flip() error {
	if err := e.win.Flip(); err != nil {
		return err
	}
	keys := e.win.PollKeys()
	for _, kb := range []*keyboard.Keyboard{e.events, e.ready, e.resp} {
		if kb != nil {
			kb.Feed(keys...)
		}
	}
	return nil
}

func (e *Experiment) updateInfo(context.Context) (scheduler.Event, error) {
	e.info.Date = clock.DateStr(e.opts.Now())
	e.info.ExpName = Name
	e.info.Version = Version
	e.info.OS = runtime.GOOS
	if e.info.RunID == "" {
		e.info.RunID = uuid.NewString()
	}

	e.info.FrameRate = e.win.FrameRate()
	if e.info.FrameRate > 0 {
		e.frameDur = time.Duration(float64(time.Second) / math.Round(e.info.FrameRate))
	} else {
		e.frameDur = time.Second / 60
	}

	e.data.FileName = filepath.Join(e.opts.DataDir, fmt.Sprintf("%s_%s", e.info.Participant, e.info.Date))
	e.data.FieldSeparator = '\t'
	e.data.SetInfo("session", e.info.Session)
	e.data.SetInfo("participant", e.info.Participant)
	e.data.SetInfo("date", e.info.Date)
	e.data.SetInfo("expName", e.info.ExpName)
	e.data.SetInfo("version", e.info.Version)
	e.data.SetInfo("OS", e.info.OS)
	e.data.SetInfo("frameRate", e.info.FrameRate)
	e.data.SetInfo("runID", e.info.RunID)

	e.logger.Info("session started",
		zap.String("participant", e.info.Participant),
		zap.String("session", e.info.Session),
		zap.Float64("frameRate", e.info.FrameRate),
		zap.String("runID", e.info.RunID))
	return scheduler.Next, nil
}

func (e *Experiment) init(context.Context) (scheduler.Event, error) {
	var err error

	e.instructClock = clock.New(e.src)
	e.ready = keyboard.New(e.src)
	if e.instrText, err = e.win.NewText("instrText", InstructionText, 0.05); err != nil {
		return scheduler.Quit, err
	}

	e.trialClock = clock.New(e.src)
	e.resp = keyboard.New(e.src)
	if e.image, err = e.win.NewImage("image", e.opts.ImageSize[0], e.opts.ImageSize[1]); err != nil {
		return scheduler.Quit, err
	}

	e.thanksClock = clock.New(e.src)
	if e.thanks, err = e.win.NewText("thanksText", ThanksText, 0.1); err != nil {
		return scheduler.Quit, err
	}

	e.events = keyboard.New(e.src)
	e.events.Start()

	e.globalClock = clock.New(e.src)
	e.routineTimer = clock.NewCountdown(e.src, 0)
	return scheduler.Next, nil
}

func (e *Experiment) beginRoutine(c *clock.Clock, cs ...component.Component) {
	e.t = 0
	e.frameN = -1
	e.continueRoutine = true
	e.routineForceEnded = false
	c.Reset()
	e.routineTimer.Reset()
	e.components = cs
	component.Reset(cs...)
}

// startKeyboard arms kb so that it starts, with its clock at zero, on the
// next flip.
func (e *Experiment) startKeyboard(kb *keyboard.Keyboard) {
	kb.MarkStart(e.t, e.frameN)
	e.win.CallOnFlip(kb.Clock.Reset)
	e.win.CallOnFlip(kb.Start)
	e.win.CallOnFlip(kb.ClearEvents)
}

func (e *Experiment) escapePressed() bool {
	pressed := len(e.events.Keys([]string{"escape"}, false)) > 0
	e.events.ClearEvents()
	return pressed
}

// endFrame decides whether the routine goes on after this frame.
func (e *Experiment) endFrame() scheduler.Event {
	if !e.continueRoutine {
		e.routineForceEnded = true
		return scheduler.Next
	}
	e.continueRoutine = component.Running(e.components...)
	if e.continueRoutine {
		return scheduler.FlipRepeat
	}
	return scheduler.Next
}

func (e *Experiment) endRoutine() {
	for _, c := range e.components {
		if v, ok := c.(*component.Visual); ok {
			v.SetAutoDraw(false)
		}
	}
}

func (e *Experiment) instructBegin(context.Context) (scheduler.Event, error) {
	e.beginRoutine(e.instructClock, e.ready, e.instrText)
	e.readyKeys = nil
	e.data.AddData("instruct.started", e.globalClock.Time())
	e.logger.Debug("routine started", zap.String("routine", "instruct"))
	return scheduler.Next, nil
}

func (e *Experiment) instructEachFrame(context.Context) (scheduler.Event, error) {
	e.t = e.instructClock.Time()
	e.frameN++

	if e.t >= 0 && e.ready.Status() == component.NotStarted {
		e.startKeyboard(e.ready)
	}
	if e.ready.Status() == component.Started {
		e.readyKeys = append(e.readyKeys, e.ready.Keys(nil, false)...)
		if len(e.readyKeys) > 0 {
			e.continueRoutine = false
		}
	}

	if e.t >= 0 && e.instrText.Status() == component.NotStarted {
		e.instrText.MarkStart(e.t, e.frameN)
		e.instrText.SetAutoDraw(true)
	}

	if e.escapePressed() {
		return e.quit(escapeMessage, false), nil
	}
	return e.endFrame(), nil
}

func (e *Experiment) instructEnd(context.Context) (scheduler.Event, error) {
	e.endRoutine()
	e.data.AddData("instruct.stopped", e.globalClock.Time())
	e.ready.Stop()
	e.routineTimer.Reset()
	if e.data.CurrentLoop() == nil {
		e.data.NextEntry()
	}
	return scheduler.Next, nil
}

func (e *Experiment) trialsLoopBegin(loop *scheduler.Scheduler) scheduler.Task {
	return func(context.Context) (scheduler.Event, error) {
		path := ConditionsFile(e.opts.ConditionsDir, e.info.Session)
		conds, err := trials.LoadConditions(path)
		if err != nil {
			return scheduler.Quit, fmt.Errorf("load conditions: %w", err)
		}
		rng := design.NewRand(e.opts.Seed)
		h, err := trials.NewHandler("trials", conds, e.opts.NReps, e.opts.Method, rng)
		if err != nil {
			return scheduler.Quit, err
		}
		e.trials = h
		e.data.AddLoop(h)
		e.logger.Info("block loaded", zap.String("path", path), zap.Int("trials", h.Len()))

		for _, s := range h.Snapshots() {
			loop.Add(
				e.importConditions(s),
				e.trialBegin(s),
				e.trialEachFrame,
				e.trialEnd(s),
				e.trialsLoopEndIteration(loop, s),
			)
		}
		return scheduler.Next, nil
	}
}

func (e *Experiment) trialsLoopEnd(context.Context) (scheduler.Event, error) {
	e.data.RemoveLoop(e.trials)
	fmt.Fprintln(e.opts.Progress)
	return scheduler.Next, nil
}

func (e *Experiment) trialsLoopEndIteration(loop *scheduler.Scheduler, s *trials.Snapshot) scheduler.Task {
	return func(context.Context) (scheduler.Event, error) {
		if s.Finished() {
			if e.data.HasPending() {
				e.data.NextEntry(s)
			}
			loop.Stop()
			e.logger.Info("block ended early", zap.Int("trial", s.ThisN))
			return scheduler.Next, nil
		}
		e.data.NextEntry(s)
		return scheduler.Next, nil
	}
}

func (e *Experiment) importConditions(s *trials.Snapshot) scheduler.Task {
	return func(context.Context) (scheduler.Event, error) {
		s.Activate()
		return scheduler.Next, nil
	}
}

func (e *Experiment) trialBegin(s *trials.Snapshot) scheduler.Task {
	return func(context.Context) (scheduler.Event, error) {
		e.beginRoutine(e.trialClock, e.resp, e.image)
		e.respKeys = nil
		e.endLoop = false

		im := s.Trial.String(e.opts.ImageColumn)
		if im == "" {
			return scheduler.Quit, fmt.Errorf("trial %d: no %q value", s.ThisN, e.opts.ImageColumn)
		}
		if err := e.image.SetImage(filepath.Join(e.opts.StimuliDir, filepath.FromSlash(im))); err != nil {
			return scheduler.Quit, fmt.Errorf("trial %d: %w", s.ThisN, err)
		}
		e.data.AddData("trial.started", e.globalClock.Time())
		fmt.Fprintf(e.opts.Progress, "\rTrial: %d/%d ", s.ThisN+1, s.NTotal)
		return scheduler.Next, nil
	}
}

func (e *Experiment) trialEachFrame(context.Context) (scheduler.Event, error) {
	e.t = e.trialClock.Time()
	e.frameN++

	if e.t >= e.opts.ResponseDelay && e.resp.Status() == component.NotStarted {
		e.startKeyboard(e.resp)
	}
	if e.resp.Status() == component.Started {
		keyList := e.opts.ResponseKeys
		if e.opts.EndLoopKey != "" {
			keyList = append(append([]string(nil), keyList...), e.opts.EndLoopKey)
		}
		for _, k := range e.resp.Keys(keyList, false) {
			if e.opts.EndLoopKey != "" && k.Name == keyboard.Normalize(e.opts.EndLoopKey) {
				e.endLoop = true
				continue
			}
			e.respKeys = append(e.respKeys, k)
		}
		if len(e.respKeys) > 0 {
			e.continueRoutine = false
			e.pulse("2")
		}
		if e.endLoop {
			e.trials.Finish()
			e.continueRoutine = false
		}
	}

	if e.t >= e.opts.ResponseDelay && e.image.Status() == component.NotStarted {
		e.image.MarkStart(e.t, e.frameN)
		e.image.SetAutoDraw(true)
		if e.opts.Trigger != nil {
			e.win.CallOnFlip(func() { e.pulse("1") })
		}
	}

	if e.escapePressed() {
		return e.quit(escapeMessage, false), nil
	}
	return e.endFrame(), nil
}

func (e *Experiment) trialEnd(s *trials.Snapshot) scheduler.Task {
	return func(context.Context) (scheduler.Event, error) {
		e.endRoutine()
		e.data.AddData("trial.stopped", e.globalClock.Time())

		if len(e.respKeys) > 0 {
			last := e.respKeys[len(e.respKeys)-1]
			e.data.AddData("resp.keys", last.Name)
			e.data.AddData("resp.rt", last.RT)
			if last.Released {
				e.data.AddData("resp.duration", last.Duration)
			} else {
				e.data.AddData("resp.duration", nil)
			}
			e.routineTimer.Reset()
			e.logger.Debug("response",
				zap.Int("trial", s.ThisN),
				zap.String("key", last.Name),
				zap.Duration("rt", last.RT))
		} else {
			e.data.AddData("resp.keys", nil)
		}

		e.resp.Stop()
		e.routineTimer.Reset()
		if e.opts.Trigger != nil {
			if err := e.opts.Trigger.Unset("12"); err != nil {
				e.logger.Warn("trigger unset failed", zap.Error(err))
			}
		}
		if e.data.CurrentLoop() == nil {
			e.data.NextEntry(s)
		}
		return scheduler.Next, nil
	}
}

func (e *Experiment) pulse(lines string) {
	if e.opts.Trigger == nil {
		return
	}
	if err := e.opts.Trigger.Set(lines); err != nil {
		e.logger.Warn("trigger set failed", zap.String("lines", lines), zap.Error(err))
	}
}

func (e *Experiment) thanksBegin(context.Context) (scheduler.Event, error) {
	e.beginRoutine(e.thanksClock, e.thanks)
	e.thanksClock.ResetTo(e.routineTimer.Time())
	e.routineTimer.Add(e.opts.ThanksDuration)
	e.data.AddData("thanks.started", e.globalClock.Time())
	return scheduler.Next, nil
}

func (e *Experiment) thanksEachFrame(context.Context) (scheduler.Event, error) {
	e.t = e.thanksClock.Time()
	e.frameN++

	if e.t >= 0 && e.thanks.Status() == component.NotStarted {
		e.thanks.MarkStart(e.t, e.frameN)
		e.thanks.SetAutoDraw(true)
	}
	// stop with most of one frame period left
	remains := e.opts.ThanksDuration - e.frameDur*3/4
	if e.thanks.Status() == component.Started && e.t >= remains {
		e.thanks.MarkStop(e.t, e.frameN)
		e.thanks.SetAutoDraw(false)
	}

	if e.escapePressed() {
		return e.quit(escapeMessage, false), nil
	}
	if !e.continueRoutine {
		e.routineForceEnded = true
		return scheduler.Next, nil
	}
	e.continueRoutine = component.Running(e.components...)
	if e.continueRoutine && e.routineTimer.Time() > 0 {
		return scheduler.FlipRepeat, nil
	}
	return scheduler.Next, nil
}

func (e *Experiment) thanksEnd(context.Context) (scheduler.Event, error) {
	e.endRoutine()
	e.data.AddData("thanks.stopped", e.globalClock.Time())
	if e.routineForceEnded {
		e.routineTimer.Reset()
	}
	if e.data.CurrentLoop() == nil {
		e.data.NextEntry()
	}
	return scheduler.Next, nil
}

func (e *Experiment) quitTask(message string, completed bool) scheduler.Task {
	return func(context.Context) (scheduler.Event, error) {
		return e.quit(message, completed), nil
	}
}

// quit flushes data left in the current entry, closes the window and ends
// the session.
func (e *Experiment) quit(message string, completed bool) scheduler.Event {
	if e.quitted {
		return scheduler.Quit
	}
	e.quitted = true
	if e.data.HasPending() && (completed || e.opts.SaveIncomplete) {
		e.data.NextEntry()
	}
	if !e.closed {
		e.closed = true
		if err := e.win.Close(); err != nil {
			e.logger.Warn("close window", zap.Error(err))
		}
	}
	e.result.Completed = completed
	e.result.Message = message
	if completed {
		e.logger.Info("session completed")
	} else if message != "" {
		e.logger.Warn("session aborted", zap.String("reason", message))
	}
	return scheduler.Quit
}
