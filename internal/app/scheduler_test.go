package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLocker struct {
	acquire  bool
	err      error
	keys     []string
	unlocked atomic.Int32
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil || !l.acquire {
		return nil, false, l.err
	}
	return func(context.Context) error {
		l.unlocked.Add(1)
		return nil
	}, true, nil
}

func TestRunNow_UnknownTask(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil)

	status, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.Equal(t, RunFailed, status)
}

func TestRunNow_SingleFlight(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	s.Add(Task{
		Name:     "slow",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			close(started)
			<-release
			return nil
		},
	})

	done := make(chan RunStatus, 1)
	go func() {
		status, _ := s.RunNow(context.Background(), "slow")
		done <- status
	}()
	<-started

	status, err := s.RunNow(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, RunSkipped, status)

	close(release)
	assert.Equal(t, RunCompleted, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunNow_TaskError(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil)
	boom := errors.New("boom")
	s.Add(Task{Name: "failing", Interval: time.Minute, Run: func(context.Context) error { return boom }})

	status, err := s.RunNow(context.Background(), "failing")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RunFailed, status)

	// после ошибки задача снова доступна
	status, _ = s.RunNow(context.Background(), "failing")
	assert.Equal(t, RunFailed, status)
}

func TestRunNow_Locker(t *testing.T) {
	var runs atomic.Int32
	task := Task{Name: "notify", Interval: time.Minute, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}

	busy := &fakeLocker{acquire: false}
	s := NewScheduler(zap.NewNop(), busy)
	s.Add(task)
	status, err := s.RunNow(context.Background(), "notify")
	require.NoError(t, err)
	assert.Equal(t, RunSkipped, status)
	assert.Zero(t, runs.Load())
	assert.Equal(t, []string{"master_scheduler:task:notify"}, busy.keys)

	free := &fakeLocker{acquire: true}
	s = NewScheduler(zap.NewNop(), free)
	s.Add(task)
	status, err = s.RunNow(context.Background(), "notify")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, status)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(1), free.unlocked.Load())

	broken := &fakeLocker{err: errors.New("redis down")}
	s = NewScheduler(zap.NewNop(), broken)
	s.Add(task)
	status, err = s.RunNow(context.Background(), "notify")
	assert.Error(t, err)
	assert.Equal(t, RunFailed, status)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RunsOnStartAndOnTicks(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil)

	ticks := make(chan time.Time)
	tickerStopped := make(chan struct{})
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() { close(tickerStopped) }
	}

	runs := make(chan struct{}, 10)
	s.Add(Task{Name: "sweep", Interval: time.Minute, Run: func(context.Context) error {
		runs <- struct{}{}
		return nil
	}})

	s.Start(context.Background())

	waitRun := func() {
		t.Helper()
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatal("task did not run")
		}
	}

	waitRun()
	ticks <- time.Now()
	waitRun()
	ticks <- time.Now()
	waitRun()

	s.Stop()
	select {
	case <-tickerStopped:
	default:
		t.Fatal("ticker was not stopped")
	}

	// повторный Stop безопасен
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil)
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return make(chan time.Time), func() {}
	}
	s.Add(Task{Name: "noop", Interval: time.Minute, Run: func(context.Context) error { return nil }})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}
