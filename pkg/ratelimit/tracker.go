// Package ratelimit tracks the server's 429 window on the client. While the
// window is open, callers short-circuit requests and render a countdown; the
// tracker clears itself once the reset time (plus a grace period) passes.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateLimited
)

func (s State) String() string {
	if s == StateLimited {
		return "limited"
	}
	return "idle"
}

type Tracker struct {
	mu      sync.Mutex
	resetAt time.Time
	grace   time.Duration
	subs    map[int]chan State
	nextSub int
}

func New(grace time.Duration) *Tracker {
	return &Tracker{
		grace: grace,
		subs:  map[int]chan State{},
	}
}

// Trip opens (or extends) the limited window until resetAt. A reset nearer
// than the active window is ignored so an in-flight stale response can't
// shorten the countdown. A zero resetAt falls back to a short default window.
func (t *Tracker) Trip(resetAt time.Time) {
	if resetAt.IsZero() {
		resetAt = time.Now().Add(30 * time.Second)
	}

	t.mu.Lock()
	wasIdle := !t.limitedLocked()
	if resetAt.After(t.resetAt) {
		t.resetAt = resetAt
	}
	t.mu.Unlock()

	if wasIdle {
		t.notify(StateLimited)
	}
}

// Dismiss clears the window early, for when the user wants the banner gone.
func (t *Tracker) Dismiss() {
	t.mu.Lock()
	wasLimited := t.limitedLocked()
	t.resetAt = time.Time{}
	t.mu.Unlock()

	if wasLimited {
		t.notify(StateIdle)
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limitedLocked() {
		return StateLimited
	}
	return StateIdle
}

// Remaining returns how long until the window clears. Zero when idle.
func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.limitedLocked() {
		return 0
	}
	return time.Until(t.resetAt.Add(t.grace))
}

// ResetAt returns the current window's reset time, zero when idle.
func (t *Tracker) ResetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.limitedLocked() {
		return time.Time{}
	}
	return t.resetAt
}

// limitedLocked reports whether the window is still open. Callers hold mu.
func (t *Tracker) limitedLocked() bool {
	return time.Now().Before(t.resetAt.Add(t.grace))
}

// Run ticks once a second and flips the tracker back to idle when the window
// (plus grace) has passed. Returns when ctx is canceled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	wasLimited := t.State() == StateLimited
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limited := t.State() == StateLimited
			if wasLimited && !limited {
				t.notify(StateIdle)
			}
			wasLimited = limited
		}
	}
}

// Subscribe returns a channel of state transitions and a cancel func. Slow
// subscribers miss notifications rather than blocking.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 4)

	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
	return ch, cancel
}

func (t *Tracker) notify(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// FormatRemaining renders a countdown like "1m 30s" or "45s". Durations are
// rounded up so the banner never shows "0s" while still limited.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
