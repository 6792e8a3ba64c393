// Package delivery tracks short-lived per-message delivery feedback.
//
// The Tracker is a keyed store of transient states (sending, sent,
// delivered, error) shown next to a just-sent message. Entries are
// garbage-collected after a fixed age by a periodic cleanup loop, so
// abandoned rooms do not accumulate state. It does not enforce a state
// machine; callers follow sending → sent → delivered or sending → error
// by discipline.
package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCleanupInterval is how often the cleanup loop runs.
	DefaultCleanupInterval = 30 * time.Second

	// DefaultMaxAge is the age past which an entry is removed.
	DefaultMaxAge = 60 * time.Second
)

// State is a message's transient delivery state.
type State int

const (
	// StateSending means the send is in flight.
	StateSending State = iota
	// StateSent means the backend accepted the message.
	StateSent
	// StateDelivered means the message was observed back on the sync channel.
	StateDelivered
	// StateError means the send failed.
	StateError
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	case StateDelivered:
		return "delivered"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a recorded delivery state with the time it was set.
type Entry struct {
	State State
	At    time.Time
}

// TrackerConfig configures a delivery Tracker.
type TrackerConfig struct {
	// CleanupInterval is how often expired entries are collected.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// MaxAge is the age past which an entry is removed.
	// Default: 60 seconds.
	MaxAge time.Duration

	// OnExpire is called for each key removed by cleanup, outside the
	// tracker's lock. The UI layer uses it to tear down transient
	// status elements. May be nil.
	OnExpire func(key string)

	// Logger for tracker events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Tracker is a keyed store of per-message delivery states with
// time-based garbage collection.
type Tracker struct {
	cfg     TrackerConfig
	log     *slog.Logger
	mu      sync.Mutex
	entries map[string]Entry
	cancel  context.CancelFunc

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// NewTracker creates a delivery tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:     cfg,
		log:     logger.WithGroup("delivery"),
		entries: make(map[string]Entry),
		nowFn:   time.Now,
	}
}

// SetState records a delivery state for a message key. The key is the
// client nonce until the backend assigns a final id (see Promote).
func (t *Tracker) SetState(key string, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = Entry{State: state, At: t.nowFn()}
}

// Get returns the entry for a key, if present.
func (t *Tracker) Get(key string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e, ok
}

// Promote re-keys an entry from a temporary key to the final one once
// the backend assigns a message id. A no-op if the old key is absent.
func (t *Tracker) Promote(oldKey, newKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[oldKey]
	if !ok {
		return
	}
	delete(t.entries, oldKey)
	t.entries[newKey] = e
}

// Remove deletes an entry without calling OnExpire.
func (t *Tracker) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Count returns the number of tracked entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Cleanup removes entries older than MaxAge and fires OnExpire for
// each. Called by the loop in Start; exported so a host that manages
// its own timers can drive collection directly.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	now := t.nowFn()
	var expired []string
	for key, e := range t.entries {
		if now.Sub(e.At) >= t.cfg.MaxAge {
			expired = append(expired, key)
			delete(t.entries, key)
		}
	}
	onExpire := t.cfg.OnExpire
	t.mu.Unlock()

	if len(expired) > 0 {
		t.log.Debug("collected delivery entries", "count", len(expired))
	}
	if onExpire != nil {
		for _, key := range expired {
			onExpire(key)
		}
	}
}

// Start begins the cleanup loop. Blocks until the context is cancelled.
// Typically called in a goroutine:
//
//	go tracker.Start(ctx)
func (t *Tracker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}

// Stop cancels the tracker's context, stopping the cleanup loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
