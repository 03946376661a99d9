// Package trials iterates a condition list the way a block of trials is run:
// optionally repeated and shuffled, one snapshot per scheduled trial.
package trials

import (
	"fmt"
	"math/rand"
	"strings"
)

type Method int

const (
	Sequential Method = iota
	Random
	FullRandom
)

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "random":
		return Random, nil
	case "fullrandom":
		return FullRandom, nil
	}
	return Sequential, fmt.Errorf("unknown trial method %q", s)
}

// Attr is a single named value written to a data row.
type Attr struct {
	Key   string
	Value any
}

type Handler struct {
	name      string
	conds     *Conditions
	nReps     int
	snapshots []*Snapshot
	current   *Snapshot
	finished  bool
}

// Snapshot captures the loop counters of one scheduled trial. Finished reads
// the live state of the handler so that ending the loop early is visible to
// snapshots taken before.
type Snapshot struct {
	h          *Handler
	ThisN      int
	ThisTrialN int
	ThisRepN   int
	ThisIndex  int
	NTotal     int
	Trial      Condition
}

func NewHandler(name string, conds *Conditions, nReps int, method Method, rng *rand.Rand) (*Handler, error) {
	if conds == nil || len(conds.Rows) == 0 {
		return nil, ErrNoConditions
	}
	if nReps < 1 {
		return nil, fmt.Errorf("trials %s: nReps must be positive, got %d", name, nReps)
	}
	if rng == nil && method != Sequential {
		return nil, fmt.Errorf("trials %s: random order needs a random source", name)
	}

	h := &Handler{name: name, conds: conds, nReps: nReps}
	n := len(conds.Rows)

	var order []int
	for rep := 0; rep < nReps; rep++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		if method == Random {
			rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		order = append(order, idx...)
	}
	if method == FullRandom {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	for i, idx := range order {
		h.snapshots = append(h.snapshots, &Snapshot{
			h:          h,
			ThisN:      i,
			ThisTrialN: i % n,
			ThisRepN:   i / n,
			ThisIndex:  idx,
			NTotal:     len(order),
			Trial:      conds.Rows[idx],
		})
	}
	return h, nil
}

func (h *Handler) Name() string { return h.name }

func (h *Handler) Columns() []string { return h.conds.Columns }

func (h *Handler) Snapshots() []*Snapshot { return h.snapshots }

func (h *Handler) Len() int { return len(h.snapshots) }

// Finish ends the loop early; remaining snapshots report Finished.
func (h *Handler) Finish() { h.finished = true }

func (h *Handler) Finished() bool { return h.finished }

// Current returns the most recently activated snapshot, or nil before the
// first trial.
func (h *Handler) Current() *Snapshot { return h.current }

// Activate makes s the handler's current trial.
func (s *Snapshot) Activate() {
	s.h.current = s
}

func (s *Snapshot) Finished() bool { return s.h.finished }

func (s *Snapshot) Handler() *Handler { return s.h }

// Attributes lists the loop counters followed by the trial's condition
// values in column order.
func (s *Snapshot) Attributes() []Attr {
	name := s.h.name
	attrs := []Attr{
		{name + ".thisRepN", s.ThisRepN},
		{name + ".thisTrialN", s.ThisTrialN},
		{name + ".thisN", s.ThisN},
		{name + ".thisIndex", s.ThisIndex},
		{name + ".ran", 1},
	}
	for _, c := range s.h.conds.Columns {
		attrs = append(attrs, Attr{c, s.Trial[c]})
	}
	return attrs
}
