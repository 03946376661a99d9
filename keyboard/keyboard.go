// Package keyboard buffers key transitions for a routine and hands them out as
// presses with reaction times measured on the keyboard's own clock.
package keyboard

import (
	"strings"
	"time"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/clock"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/component"
)

// Event is a raw key transition. At is an absolute timestamp on the same
// clock.Source as the keyboard's clock.
type Event struct {
	Name   string
	Down   bool
	Repeat bool
	At     time.Duration
}

type Press struct {
	Name     string
	RT       time.Duration
	Duration time.Duration
	Released bool
}

type pending struct {
	Press
	down time.Duration
}

// Keyboard only records events while started, so presses made before the
// routine turned it on are never reported. That includes presses stamped
// before the last clock reset which are only polled afterwards.
type Keyboard struct {
	component.Base
	Clock  *clock.Clock
	buffer []*pending
}

func New(src clock.Source) *Keyboard {
	return &Keyboard{Clock: clock.New(src)}
}

func (k *Keyboard) Start() { k.SetStatus(component.Started) }

func (k *Keyboard) Stop() { k.SetStatus(component.Finished) }

func (k *Keyboard) ClearEvents() { k.buffer = nil }

func (k *Keyboard) Feed(events ...Event) {
	if k.Status() != component.Started {
		return
	}
	for _, ev := range events {
		name := Normalize(ev.Name)
		if ev.Down {
			rt := k.Clock.TimeAt(ev.At)
			if ev.Repeat || rt < 0 {
				continue
			}
			k.buffer = append(k.buffer, &pending{
				Press: Press{Name: name, RT: rt},
				down:  ev.At,
			})
			continue
		}
		for i := len(k.buffer) - 1; i >= 0; i-- {
			p := k.buffer[i]
			if p.Name == name && !p.Released {
				p.Released = true
				p.Duration = ev.At - p.down
				break
			}
		}
	}
}

// Keys returns and consumes the buffered presses whose names are in keyList.
// An empty keyList accepts any key. With waitRelease, presses are held back
// until the key has been released.
func (k *Keyboard) Keys(keyList []string, waitRelease bool) []Press {
	var out []Press
	kept := k.buffer[:0]
	for _, p := range k.buffer {
		if accepts(keyList, p.Name) && (!waitRelease || p.Released) {
			out = append(out, p.Press)
			continue
		}
		kept = append(kept, p)
	}
	k.buffer = kept
	return out
}

func accepts(keyList []string, name string) bool {
	if len(keyList) == 0 {
		return true
	}
	for _, k := range keyList {
		if Normalize(k) == name {
			return true
		}
	}
	return false
}

// Normalize maps display-layer key names to the lower-case names stored in
// data files ("Left" becomes "left", "Keypad Enter" becomes "keypad_enter").
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
