// Package component holds the lifecycle state shared by everything a routine
// starts and stops on screen: keyboards, text and images.
package component

import (
	"fmt"
	"time"
)

type Status int

const (
	NotStarted Status = iota
	Started
	Finished
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Started:
		return "STARTED"
	case Finished:
		return "FINISHED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Component is anything whose status a routine tracks to decide when it ends.
type Component interface {
	Status() Status
	SetStatus(Status)
}

type Base struct {
	status      Status
	TStart      time.Duration
	FrameNStart int
	TStop       time.Duration
	FrameNStop  int
}

func (b *Base) Status() Status     { return b.status }
func (b *Base) SetStatus(s Status) { b.status = s }

// MarkStart records when the component was switched on.
func (b *Base) MarkStart(t time.Duration, frameN int) {
	b.TStart = t
	b.FrameNStart = frameN
}

func (b *Base) MarkStop(t time.Duration, frameN int) {
	b.TStop = t
	b.FrameNStop = frameN
}

// Reset puts every component back to NotStarted at the beginning of a routine.
func Reset(cs ...Component) {
	for _, c := range cs {
		c.SetStatus(NotStarted)
	}
}

// Running reports whether at least one component has not finished yet.
func Running(cs ...Component) bool {
	for _, c := range cs {
		if c.Status() != Finished {
			return true
		}
	}
	return false
}
