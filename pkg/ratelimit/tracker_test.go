package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrip(t *testing.T) {
	t.Parallel()

	t.Run("opens the window until the reset time", func(t *testing.T) {
		t.Parallel()
		tracker := ratelimit.New(0)

		assert.Equal(t, ratelimit.StateIdle, tracker.State())
		tracker.Trip(time.Now().Add(time.Minute))
		assert.Equal(t, ratelimit.StateLimited, tracker.State())
		assert.Greater(t, tracker.Remaining(), 50*time.Second)
	})

	t.Run("a farther reset extends the window", func(t *testing.T) {
		t.Parallel()
		tracker := ratelimit.New(0)

		tracker.Trip(time.Now().Add(30 * time.Second))
		tracker.Trip(time.Now().Add(2 * time.Minute))
		assert.Greater(t, tracker.Remaining(), time.Minute)
	})

	t.Run("a nearer reset does not shorten the window", func(t *testing.T) {
		t.Parallel()
		tracker := ratelimit.New(0)

		tracker.Trip(time.Now().Add(2 * time.Minute))
		tracker.Trip(time.Now().Add(10 * time.Second))
		assert.Greater(t, tracker.Remaining(), time.Minute)
	})

	t.Run("zero reset falls back to a default window", func(t *testing.T) {
		t.Parallel()
		tracker := ratelimit.New(0)

		tracker.Trip(time.Time{})
		assert.Equal(t, ratelimit.StateLimited, tracker.State())
		assert.Greater(t, tracker.Remaining(), 20*time.Second)
	})

	t.Run("an expired window reads as idle", func(t *testing.T) {
		t.Parallel()
		tracker := ratelimit.New(0)

		tracker.Trip(time.Now().Add(-time.Second))
		assert.Equal(t, ratelimit.StateIdle, tracker.State())
		assert.Equal(t, time.Duration(0), tracker.Remaining())
	})

	t.Run("grace keeps the window open past the reset", func(t *testing.T) {
		t.Parallel()
		tracker := ratelimit.New(time.Minute)

		tracker.Trip(time.Now().Add(-time.Second))
		assert.Equal(t, ratelimit.StateLimited, tracker.State())
	})
}

func TestDismiss(t *testing.T) {
	t.Parallel()

	tracker := ratelimit.New(0)
	tracker.Trip(time.Now().Add(time.Minute))
	tracker.Dismiss()
	assert.Equal(t, ratelimit.StateIdle, tracker.State())
	assert.True(t, tracker.ResetAt().IsZero())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	tracker := ratelimit.New(0)
	ch, cancel := tracker.Subscribe()
	defer cancel()

	tracker.Trip(time.Now().Add(time.Minute))
	select {
	case s := <-ch:
		assert.Equal(t, ratelimit.StateLimited, s)
	case <-time.After(time.Second):
		t.Fatal("no limited notification")
	}

	// A second trip while already limited is not a transition.
	tracker.Trip(time.Now().Add(2 * time.Minute))
	select {
	case s := <-ch:
		t.Fatalf("unexpected notification: %v", s)
	case <-time.After(50 * time.Millisecond):
	}

	tracker.Dismiss()
	select {
	case s := <-ch:
		assert.Equal(t, ratelimit.StateIdle, s)
	case <-time.After(time.Second):
		t.Fatal("no idle notification")
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	tracker := ratelimit.New(0)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	go tracker.Run(ctx)

	ch, cancel := tracker.Subscribe()
	defer cancel()

	tracker.Trip(time.Now().Add(1200 * time.Millisecond))
	require.Equal(t, ratelimit.StateLimited, tracker.State())

	// Drain the limited notification, then wait for the auto-clear.
	<-ch
	select {
	case s := <-ch:
		assert.Equal(t, ratelimit.StateIdle, s)
	case <-time.After(5 * time.Second):
		t.Fatal("window never auto-cleared")
	}
	assert.Equal(t, ratelimit.StateIdle, tracker.State())
}

func TestFormatRemaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{44*time.Second + 200*time.Millisecond, "45s"},
		{90 * time.Second, "1m 30s"},
		{2 * time.Minute, "2m 0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ratelimit.FormatRemaining(tt.d))
	}
}
