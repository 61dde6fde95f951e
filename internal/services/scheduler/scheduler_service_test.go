package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const hourly = "0 0 * * * *"

func TestRegisterJob_RejectsBadSchedules(t *testing.T) {
	s := NewService(context.Background(), arbor.NewLogger())
	defer s.Stop()

	assert.Error(t, s.RegisterJob("batch", "not a cron", func(ctx context.Context) error { return nil }))
	assert.Error(t, s.RegisterJob("batch", "*/5 * * * * *", func(ctx context.Context) error { return nil }))

	require.NoError(t, s.RegisterJob("batch", hourly, func(ctx context.Context) error { return nil }))
	assert.Error(t, s.RegisterJob("other", hourly, func(ctx context.Context) error { return nil }))
}

func TestRunNow_SkipsWhileRunning(t *testing.T) {
	s := NewService(context.Background(), arbor.NewLogger())

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.RegisterJob("batch", hourly, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan bool)
	go func() { done <- s.RunNow() }()
	<-started

	assert.False(t, s.RunNow(), "overlapping run is skipped")

	status, ok := s.GetStatus()
	require.True(t, ok)
	assert.True(t, status.IsRunning)
	assert.Equal(t, 1, status.Skipped)

	close(release)
	assert.True(t, <-done)

	status, _ = s.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Equal(t, 1, status.Runs)
	require.NotNil(t, status.LastRun)
	s.Stop()
}

func TestRunNow_RecordsErrorsAndPanics(t *testing.T) {
	s := NewService(context.Background(), arbor.NewLogger())
	defer s.Stop()

	calls := 0
	require.NoError(t, s.RegisterJob("batch", hourly, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("tickers file missing")
		}
		panic("boom")
	}))

	assert.True(t, s.RunNow())
	status, _ := s.GetStatus()
	assert.Equal(t, "tickers file missing", status.LastError)

	assert.True(t, s.RunNow())
	status, _ = s.GetStatus()
	assert.Contains(t, status.LastError, "boom")
	assert.Equal(t, 2, status.Runs)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := NewService(context.Background(), arbor.NewLogger())

	started := make(chan struct{})
	require.NoError(t, s.RegisterJob("batch", hourly, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, s.Start())

	go s.RunNow()
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, s.RunNow(), "no runs after stop")
}
