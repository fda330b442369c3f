package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/logging"
)

func TestAddRejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Job{Name: "poll", Spec: "whenever", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "poll", Spec: "*/30 * * * *", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "poll", Spec: "@hourly", Run: noop}))
	assert.True(t, s.Next("missing").IsZero())
}

func TestJobsRunAndNeverOverlap(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	var runs, active, maxActive atomic.Int32
	require.NoError(t, s.Add(Job{Name: "slow", Spec: "@every 1s", Run: func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		runs.Add(1)
		select {
		case <-time.After(1500 * time.Millisecond):
		case <-ctx.Done():
		}
		return errors.New("logged, not fatal")
	}}))

	s.Start(context.Background())
	assert.False(t, s.Next("slow").IsZero())
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(1200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.EqualValues(t, 1, maxActive.Load())
}

func TestStopCancelsStuckJobs(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, s.Add(Job{Name: "stuck", Spec: "@every 1s", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}}))
	s.Start(context.Background())
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
	assert.Eventually(t, cancelled.Load, time.Second, 10*time.Millisecond)
}

func TestRunningJobFinishesAfterStartContextEnds(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var sawCancel atomic.Bool
	require.NoError(t, s.Add(Job{Name: "poll", Spec: "@every 1s", Run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
			sawCancel.Store(true)
		}
		return nil
	}}))

	runCtx, stopRun := context.WithCancel(context.Background())
	s.Start(runCtx)
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	stopRun()

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, sawCancel.Load())
}
