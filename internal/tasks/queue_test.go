package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsAndCountsFailures(t *testing.T) {
	q := NewQueue(2, 8, time.Second)
	q.Start()

	var ran atomic.Int32
	require.True(t, q.Submit("ok", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))
	require.True(t, q.Submit("fails", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("db unavailable")
	}))
	require.True(t, q.Submit("panics", func(ctx context.Context) error {
		ran.Add(1)
		panic("boom")
	}))

	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(3), ran.Load())
	assert.Equal(t, 2, q.Failed())
}

func TestQueue_SubmitNeverBlocks(t *testing.T) {
	q := NewQueue(1, 1, time.Second)
	release := make(chan struct{})
	started := make(chan struct{})
	q.Start()

	require.True(t, q.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.True(t, q.Submit("buffered", func(ctx context.Context) error { return nil }))
	assert.False(t, q.Submit("overflow", func(ctx context.Context) error { return nil }))

	close(release)
	require.NoError(t, q.Stop(context.Background()))
	assert.False(t, q.Submit("late", func(ctx context.Context) error { return nil }))
}

func TestQueue_StopCancelsOnDeadline(t *testing.T) {
	q := NewQueue(1, 1, time.Minute)
	q.Start()

	started := make(chan struct{})
	require.True(t, q.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, q.Failed())
}
