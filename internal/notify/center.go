// Package notify implements the notification center: a single visible
// banner slot where the newest request always wins and every banner
// dismisses itself after its duration.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/clock"
)

// Renderer displays banners. Calls are made while the center holds its
// lock, so a Renderer must not call back into the Center.
type Renderer interface {
	Show(n Notification)
	Close(n Notification, reason CloseReason)
}

// Renderers fans every call out to each renderer in order
type Renderers []Renderer

func (rs Renderers) Show(n Notification) {
	for _, r := range rs {
		r.Show(n)
	}
}

func (rs Renderers) Close(n Notification, reason CloseReason) {
	for _, r := range rs {
		r.Close(n, reason)
	}
}

// Center owns the visible-notification slot
type Center struct {
	mu              sync.Mutex
	clock           clock.Clock
	logger          *zap.Logger
	renderer        Renderer
	defaultDuration time.Duration

	current *Notification
	timer   clock.Timer
}

// Option configures a Center
type Option func(*Center)

// WithClock sets the clock used for auto-dismiss timers
func WithClock(c clock.Clock) Option {
	return func(nc *Center) { nc.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(nc *Center) { nc.logger = l }
}

// WithRenderer sets the rendering target. Without one, a Region is
// created on first use.
func WithRenderer(r Renderer) Option {
	return func(nc *Center) { nc.renderer = r }
}

// WithDefaultDuration overrides DefaultDuration
func WithDefaultDuration(d time.Duration) Option {
	return func(nc *Center) {
		if d > 0 {
			nc.defaultDuration = d
		}
	}
}

// NewCenter creates a notification center
func NewCenter(opts ...Option) *Center {
	c := &Center{
		clock:           clock.Real(),
		logger:          zap.NewNop(),
		defaultDuration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify closes any visible banner and shows a new one. A non-positive
// duration uses the center's default.
func (c *Center) Notify(message string, severity Severity, duration time.Duration) Notification {
	if !severity.Valid() {
		severity = SeverityInfo
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if duration <= 0 {
		duration = c.defaultDuration
	}

	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: c.clock.Now(),
		Duration:  duration,
	}

	r := c.containerLocked()
	c.closeLocked(r, ReasonSuperseded)

	c.current = &n
	r.Show(n)

	id := n.ID
	c.timer = c.clock.AfterFunc(duration, func() { c.expire(id) })

	c.logger.Debug("Notification shown",
		zap.String("id", n.ID),
		zap.String("severity", string(n.Severity)),
		zap.Duration("duration", duration),
	)
	return n
}

// Dismiss closes the banner with the given id if it is still visible
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID != id {
		return false
	}
	c.closeLocked(c.containerLocked(), ReasonDismissed)
	return true
}

// Current returns the visible banner, if any
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Container returns the rendering target, creating a Region if none was
// configured.
func (c *Center) Container() Renderer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.containerLocked()
}

func (c *Center) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The timer may have fired concurrently with a replacement.
	if c.current == nil || c.current.ID != id {
		return
	}
	c.closeLocked(c.containerLocked(), ReasonExpired)
}

func (c *Center) containerLocked() Renderer {
	if c.renderer == nil {
		c.renderer = NewRegion()
	}
	return c.renderer
}

func (c *Center) closeLocked(r Renderer, reason CloseReason) {
	if c.current == nil {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	n := *c.current
	c.current = nil
	r.Close(n, reason)

	c.logger.Debug("Notification closed",
		zap.String("id", n.ID),
		zap.String("reason", string(reason)),
	)
}
