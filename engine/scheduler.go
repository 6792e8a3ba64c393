// Package engine orchestrates the realtime sync for joined rooms:
// discovery of new messages (push subscription with adaptive-interval
// polling as fallback), reconciliation, delivery feedback, votes, and
// per-room resource lifecycle.
package engine

import (
	"sync"
	"time"
)

const (
	// DefaultMinPollInterval is the floor of the adaptive poll interval,
	// used right after observed room activity.
	DefaultMinPollInterval = 2 * time.Second

	// DefaultMaxPollInterval is the ceiling the interval backs off to
	// during inactivity.
	DefaultMaxPollInterval = 30 * time.Second

	// DefaultBackoffFactor is the geometric growth applied per empty poll.
	DefaultBackoffFactor = 1.5

	// DefaultMaxReconnectAttempts caps push resubscription attempts
	// before the room permanently degrades to polling.
	DefaultMaxReconnectAttempts = 5

	// DefaultReconnectBaseDelay is the delay before the first retry;
	// subsequent retries wait attempt multiples of it.
	DefaultReconnectBaseDelay = 2 * time.Second
)

// Mode is a room's message discovery state.
type Mode int

const (
	// ModeSubscribed means the push channel is delivering messages.
	ModeSubscribed Mode = iota
	// ModePolling means messages are discovered by adaptive polling.
	ModePolling
	// ModeReconnecting means the push channel was lost and retries are
	// scheduled.
	ModeReconnecting
	// ModeStopped means the room was left and all timers are dead.
	ModeStopped
)

func (m Mode) String() string {
	switch m {
	case ModeSubscribed:
		return "subscribed"
	case ModePolling:
		return "polling"
	case ModeReconnecting:
		return "reconnecting"
	case ModeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SchedulerConfig tunes the per-room discovery scheduler.
type SchedulerConfig struct {
	// MinPollInterval is the interval floor. Default: 2 seconds.
	MinPollInterval time.Duration

	// MaxPollInterval is the interval ceiling. Default: 30 seconds.
	MaxPollInterval time.Duration

	// BackoffFactor is the per-empty-poll interval growth. Default: 1.5.
	BackoffFactor float64

	// MaxReconnectAttempts caps push recovery retries. Default: 5.
	MaxReconnectAttempts int

	// ReconnectBaseDelay scales the retry schedule. Default: 2 seconds.
	ReconnectBaseDelay time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.MinPollInterval <= 0 {
		c.MinPollInterval = DefaultMinPollInterval
	}
	if c.MaxPollInterval <= 0 {
		c.MaxPollInterval = DefaultMaxPollInterval
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	return c
}

// scheduler holds one room's discovery state: mode, adaptive poll
// interval, and reconnection attempt count.
type scheduler struct {
	mu           sync.Mutex
	cfg          SchedulerConfig
	mode         Mode
	interval     time.Duration
	emptyPolls   int
	lastActivity time.Time
	attempt      int

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// newScheduler starts in subscribed mode when a push channel exists,
// polling otherwise.
func newScheduler(cfg SchedulerConfig, pushAvailable bool) *scheduler {
	cfg = cfg.withDefaults()
	mode := ModePolling
	if pushAvailable {
		mode = ModeSubscribed
	}
	return &scheduler{
		cfg:      cfg,
		mode:     mode,
		interval: cfg.MinPollInterval,
		nowFn:    time.Now,
	}
}

// Mode returns the current discovery mode.
func (s *scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Interval returns the current poll interval.
func (s *scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NotifyActivity records observed room activity: the empty-poll streak
// resets and the interval snaps back to the floor so the next checks
// come quickly.
func (s *scheduler) NotifyActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyPolls = 0
	s.interval = s.cfg.MinPollInterval
	s.lastActivity = s.nowFn()
}

// NoteEmptyPoll grows the interval geometrically toward the ceiling.
func (s *scheduler) NoteEmptyPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyPolls++
	grown := time.Duration(float64(s.interval) * s.cfg.BackoffFactor)
	if grown > s.cfg.MaxPollInterval {
		grown = s.cfg.MaxPollInterval
	}
	s.interval = grown
}

// EmptyPolls returns the consecutive empty poll count.
func (s *scheduler) EmptyPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emptyPolls
}

// ConnectionLost moves a subscribed room into reconnecting state.
// Returns false when the room was not relying on push (nothing to
// recover) or is already reconnecting.
func (s *scheduler) ConnectionLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSubscribed {
		return false
	}
	s.mode = ModeReconnecting
	s.attempt = 0
	return true
}

// NextRetry claims the next reconnection attempt. When the cap is
// exhausted the room permanently degrades to polling and ok is false.
func (s *scheduler) NextRetry() (delay time.Duration, attempt int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeReconnecting {
		return 0, s.attempt, false
	}
	s.attempt++
	if s.attempt > s.cfg.MaxReconnectAttempts {
		s.mode = ModePolling
		return 0, s.attempt, false
	}
	return time.Duration(s.attempt) * s.cfg.ReconnectBaseDelay, s.attempt, true
}

// Reconnected restores subscribed mode after a successful recovery.
func (s *scheduler) Reconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeReconnecting {
		s.mode = ModeSubscribed
		s.attempt = 0
	}
}

// Stop marks the room left; every caller loop checks the mode and
// exits.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeStopped
}
