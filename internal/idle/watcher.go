// Package idle warns about and then performs the inactivity logout.
package idle

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/clock"
	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
)

const (
	DefaultTimeout = 29 * time.Minute
	DefaultGrace   = time.Minute

	WarningMessage = "You will be logged out due to inactivity in 1 minute"
)

// Notifier shows the warning banner
type Notifier interface {
	Notify(message string, severity notify.Severity, duration time.Duration) notify.Notification
}

// State of the watcher
type State string

const (
	StateActive    State = "active"
	StateWarned    State = "warned"
	StateLoggedOut State = "logged_out"
	StateStopped   State = "stopped"
)

// Watcher tracks user activity. After Timeout without a Touch it shows a
// warning; after a further Grace without a Touch it calls OnLogout once.
type Watcher struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   *zap.Logger
	notifier Notifier
	timeout  time.Duration
	grace    time.Duration
	onLogout func()

	state    State
	timer    clock.Timer
	gen      uint64
	lastSeen time.Time
}

// Option configures a Watcher
type Option func(*Watcher)

func WithClock(c clock.Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher. Non-positive durations take the defaults.
// The idle timer starts immediately.
func NewWatcher(timeout, grace time.Duration, notifier Notifier, onLogout func(), opts ...Option) *Watcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	w := &Watcher{
		clock:    clock.Real(),
		logger:   zap.NewNop(),
		notifier: notifier,
		timeout:  timeout,
		grace:    grace,
		onLogout: onLogout,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.mu.Lock()
	w.state = StateActive
	w.lastSeen = w.clock.Now()
	w.scheduleLocked(w.timeout, w.warn)
	w.mu.Unlock()
	return w
}

// Touch records activity and restarts the idle timer. It has no effect
// once the session was logged out or the watcher stopped.
func (w *Watcher) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateLoggedOut || w.state == StateStopped {
		return
	}
	if w.state == StateWarned {
		w.logger.Info("Activity resumed, logout cancelled")
	}
	w.state = StateActive
	w.lastSeen = w.clock.Now()
	w.scheduleLocked(w.timeout, w.warn)
}

// State returns the current state
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastActivity returns the time of the last Touch
func (w *Watcher) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Stop cancels any pending timer
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.state = StateStopped
}

func (w *Watcher) scheduleLocked(d time.Duration, f func(gen uint64)) {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
	}
	gen := w.gen
	w.timer = w.clock.AfterFunc(d, func() { f(gen) })
}

func (w *Watcher) warn(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.state != StateActive {
		w.mu.Unlock()
		return
	}
	w.state = StateWarned
	w.scheduleLocked(w.grace, w.logout)
	w.mu.Unlock()

	w.logger.Info("Idle timeout reached, warning user", zap.Duration("grace", w.grace))
	if w.notifier != nil {
		w.notifier.Notify(WarningMessage, notify.SeverityWarning, w.grace)
	}
}

func (w *Watcher) logout(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.state != StateWarned {
		w.mu.Unlock()
		return
	}
	w.state = StateLoggedOut
	w.timer = nil
	w.mu.Unlock()

	w.logger.Warn("Logging out due to inactivity")
	if w.onLogout != nil {
		w.onLogout()
	}
}
