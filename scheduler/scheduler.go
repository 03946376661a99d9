// Package scheduler runs an experiment as a cooperative queue of tasks that
// advance frame by frame.
//
// A task returns an Event telling the scheduler what to do next: move on to the
// following task straight away (Next), flip the screen and call the same task
// again (FlipRepeat), flip and move on (FlipNext), or abandon everything (Quit).
// A Scheduler is itself usable as a task, which is how trial loops nest inside
// the main flow.
package scheduler

import (
	"context"
	"errors"
	"fmt"
)

type Event int

const (
	Next Event = iota
	FlipRepeat
	FlipNext
	Quit
)

func (e Event) String() string {
	switch e {
	case Next:
		return "NEXT"
	case FlipRepeat:
		return "FLIP_REPEAT"
	case FlipNext:
		return "FLIP_NEXT"
	case Quit:
		return "QUIT"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// ErrQuit is returned by Run when a task asked to quit.
var ErrQuit = errors.New("scheduler: quit")

type Task func(ctx context.Context) (Event, error)

type Scheduler struct {
	name    string
	tasks   []Task
	current int
	stopped bool
}

func New(name string) *Scheduler {
	return &Scheduler{name: name}
}

func (s *Scheduler) Name() string { return s.name }

// Add appends tasks. It is safe to call while the scheduler is running; the
// new tasks run after the ones already queued.
func (s *Scheduler) Add(tasks ...Task) {
	s.tasks = append(s.tasks, tasks...)
}

func (s *Scheduler) AddScheduler(sub *Scheduler) {
	s.Add(sub.Step)
}

// Stop abandons the remaining tasks; the scheduler reports itself finished.
func (s *Scheduler) Stop() {
	s.stopped = true
}

func (s *Scheduler) Done() bool {
	return s.stopped || s.current >= len(s.tasks)
}

// Step runs tasks until one asks for a screen flip or to quit, or until the
// queue is exhausted, in which case it returns Next.
func (s *Scheduler) Step(ctx context.Context) (Event, error) {
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return Quit, err
		}
		ev, err := s.tasks[s.current](ctx)
		if err != nil {
			return Quit, fmt.Errorf("%s: task %d: %w", s.name, s.current, err)
		}
		switch ev {
		case Next:
			s.current++
		case FlipRepeat:
			return FlipRepeat, nil
		case FlipNext:
			s.current++
			if s.Done() {
				return FlipNext, nil
			}
			return FlipRepeat, nil
		case Quit:
			s.stopped = true
			return Quit, nil
		default:
			return Quit, fmt.Errorf("%s: task %d: unknown event %v", s.name, s.current, ev)
		}
	}
	return Next, nil
}

// Condition picks one of two schedulers the first time it runs, based on cond,
// and keeps delegating to it.
func Condition(cond func() bool, then, otherwise *Scheduler) Task {
	var chosen *Scheduler
	return func(ctx context.Context) (Event, error) {
		if chosen == nil {
			chosen = otherwise
			if cond() {
				chosen = then
			}
		}
		return chosen.Step(ctx)
	}
}

type Flipper interface {
	Flip() error
}

type FlipperFunc func() error

func (f FlipperFunc) Flip() error { return f() }

// Run drives s to completion, flipping between frames.
func Run(ctx context.Context, s *Scheduler, f Flipper) error {
	for {
		ev, err := s.Step(ctx)
		if err != nil {
			return err
		}
		switch ev {
		case Next:
			return nil
		case Quit:
			return ErrQuit
		}
		if err := f.Flip(); err != nil {
			return fmt.Errorf("flip: %w", err)
		}
	}
}
