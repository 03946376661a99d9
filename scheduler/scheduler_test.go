package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(log *[]string, name string, ev Event) Task {
	return func(context.Context) (Event, error) {
		*log = append(*log, name)
		return ev, nil
	}
}

func countdown(log *[]string, name string, frames int) Task {
	return func(context.Context) (Event, error) {
		*log = append(*log, name)
		frames--
		if frames > 0 {
			return FlipRepeat, nil
		}
		return Next, nil
	}
}

func TestRunFlipsBetweenFrames(t *testing.T) {
	var log []string
	s := New("flow")
	s.Add(record(&log, "begin", Next), countdown(&log, "frame", 3), record(&log, "end", Next))

	flips := 0
	err := Run(context.Background(), s, FlipperFunc(func() error {
		flips++
		log = append(log, "flip")
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, flips)
	assert.Equal(t, []string{"begin", "frame", "flip", "frame", "flip", "frame", "end"}, log)
}

func TestNestedSchedulerAddedWhileRunning(t *testing.T) {
	var log []string
	flow := New("flow")
	loop := New("trials")
	flow.Add(func(context.Context) (Event, error) {
		for _, n := range []string{"t1", "t2"} {
			loop.Add(record(&log, n, FlipNext))
		}
		return Next, nil
	})
	flow.AddScheduler(loop)
	flow.Add(record(&log, "thanks", Next))

	flips := 0
	require.NoError(t, Run(context.Background(), flow, FlipperFunc(func() error { flips++; return nil })))
	assert.Equal(t, []string{"t1", "t2", "thanks"}, log)
	assert.Equal(t, 2, flips)
}

func TestStopAbandonsRemainingTasks(t *testing.T) {
	var log []string
	flow := New("flow")
	loop := New("trials")
	loop.Add(record(&log, "t1", Next))
	loop.Add(func(context.Context) (Event, error) {
		loop.Stop()
		return Next, nil
	})
	loop.Add(record(&log, "t2", Next))
	flow.AddScheduler(loop)
	flow.Add(record(&log, "after", Next))

	require.NoError(t, Run(context.Background(), flow, FlipperFunc(func() error { return nil })))
	assert.Equal(t, []string{"t1", "after"}, log)
}

func TestQuit(t *testing.T) {
	var log []string
	s := New("flow")
	s.Add(record(&log, "a", Quit), record(&log, "b", Next))
	err := Run(context.Background(), s, FlipperFunc(func() error { return nil }))
	assert.ErrorIs(t, err, ErrQuit)
	assert.Equal(t, []string{"a"}, log)
	assert.True(t, s.Done())
}

func TestTaskErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	s := New("flow")
	s.Add(func(context.Context) (Event, error) { return Next, boom })
	err := Run(context.Background(), s, FlipperFunc(func() error { return nil }))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "flow: task 0")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New("flow")
	s.Add(record(new([]string), "a", Next))
	err := Run(ctx, s, FlipperFunc(func() error { return nil }))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCondition(t *testing.T) {
	for _, ok := range []bool{true, false} {
		var log []string
		then, otherwise := New("then"), New("otherwise")
		then.Add(record(&log, "then", Next))
		otherwise.Add(record(&log, "otherwise", Next))

		root := New("root")
		calls := 0
		root.Add(Condition(func() bool { calls++; return ok }, then, otherwise))
		require.NoError(t, Run(context.Background(), root, FlipperFunc(func() error { return nil })))

		want := "otherwise"
		if ok {
			want = "then"
		}
		assert.Equal(t, []string{want}, log)
		assert.Equal(t, 1, calls)
	}
}
