// Package notify is a small notification queue. Services push entries after
// user-visible outcomes; the CLI renders them as log lines and watch mode
// renders the live queue, expiring entries after their display duration.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Default display durations by kind. Errors stick around longer.
var defaultDurations = map[Kind]time.Duration{
	KindSuccess: 4 * time.Second,
	KindError:   8 * time.Second,
	KindWarning: 6 * time.Second,
	KindInfo:    4 * time.Second,
}

type Entry struct {
	ID        string
	Kind      Kind
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// expired reports whether the entry's display window has passed.
func (e Entry) expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.Duration))
}

type Center struct {
	mu      sync.Mutex
	entries []Entry
	subs    map[int]chan Entry
	nextSub int
}

func NewCenter() *Center {
	return &Center{
		subs: map[int]chan Entry{},
	}
}

// Push queues an entry with the default duration for its kind and returns its
// ID so callers can dismiss it early.
func (c *Center) Push(kind Kind, message string) string {
	entry := Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Duration:  defaultDurations[kind],
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	c.notify(entry)
	return entry.ID
}

func (c *Center) Success(message string) string { return c.Push(KindSuccess, message) }
func (c *Center) Error(message string) string   { return c.Push(KindError, message) }
func (c *Center) Warning(message string) string { return c.Push(KindWarning, message) }
func (c *Center) Info(message string) string    { return c.Push(KindInfo, message) }

// Active returns the entries still inside their display window, oldest first.
func (c *Center) Active() []Entry {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	active := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.expired(now) {
			active = append(active, e)
		}
	}
	return active
}

// Dismiss removes an entry before its window ends.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Subscribe returns a channel of newly pushed entries and a cancel func. Slow
// subscribers miss entries rather than blocking pushes.
func (c *Center) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, 16)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Center) notify(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Run drops expired entries once a second until ctx is canceled, keeping the
// queue from growing over a long watch session.
func (c *Center) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *Center) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !e.expired(now) {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}
