// Package autosave coalesces rapid form edits into debounced saves and
// tracks whether a form has unsaved changes.
//
// State per form:
//
//	Clean --(edit)--> Dirty
//	Dirty --(timer fires, save succeeds)--> Clean
//	Dirty --(timer fires, save fails)--> Dirty
//	Dirty --(edit before timer fires)--> Dirty (timer restarted)
//
// At most one save is in flight per form. A timer that fires while a save
// is in flight queues a single follow-up, issued with the latest snapshot
// once the in-flight save completes.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/clock"
	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
)

// Controller auto-saves one form
type Controller struct {
	cfg       Config
	tracked   map[string]bool
	submitter Submitter
	notifier  Notifier
	clock     clock.Clock
	logger    *zap.Logger
	observer  Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	dirty       bool
	payload     url.Values
	revision    uint64
	timer       clock.Timer
	timerGen    uint64
	inFlight    bool
	queued      bool
	idle        chan struct{}
	lastEditAt  time.Time
	lastSavedAt time.Time
	lastError   string
}

// Option configures a Controller
type Option func(*Controller)

// WithClock sets the clock driving the debounce timer
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithObserver registers a save lifecycle observer
func WithObserver(o Observer) Option {
	return func(ctl *Controller) { ctl.observer = o }
}

type saveJob struct {
	event    SaveEvent
	payload  url.Values
	revision uint64
}

// New creates a controller for the form described by cfg
func New(cfg Config, submitter Submitter, notifier Notifier, opts ...Option) (*Controller, error) {
	if cfg.FormID == "" {
		return nil, errors.New("autosave: form id is required")
	}
	if cfg.Delay <= 0 {
		return nil, fmt.Errorf("autosave: form %s: delay must be positive", cfg.FormID)
	}
	if submitter == nil {
		return nil, fmt.Errorf("autosave: form %s: submitter is required", cfg.FormID)
	}
	cfg.setDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		submitter: submitter,
		notifier:  notifier,
		clock:     clock.Real(),
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	if len(cfg.Fields) > 0 {
		c.tracked = make(map[string]bool, len(cfg.Fields))
		for _, f := range cfg.Fields {
			c.tracked[f] = true
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("form", cfg.FormID))
	return c, nil
}

// ID returns the form id
func (c *Controller) ID() string {
	return c.cfg.FormID
}

// Config returns the controller's configuration with defaults applied
func (c *Controller) Config() Config {
	return c.cfg
}

// Tracks reports whether a mutation of field triggers a save. An empty
// field name stands for a change event on the whole form.
func (c *Controller) Tracks(field string) bool {
	if len(c.tracked) == 0 || field == "" {
		return true
	}
	return c.tracked[field]
}

// Observe records a mutation of field with the form's current snapshot.
// It marks the draft dirty and restarts the debounce timer. It returns
// false when the field is not tracked or the controller is closed.
func (c *Controller) Observe(field string, snapshot url.Values) bool {
	if !c.Tracks(field) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.dirty = true
	c.payload = cloneValues(snapshot)
	c.revision++
	c.lastEditAt = c.clock.Now()
	c.restartTimerLocked()
	return true
}

// Dirty reports whether the form has unsaved changes
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// State returns a snapshot of the draft state
func (c *Controller) State() DraftState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return DraftState{
		FormID:       c.cfg.FormID,
		Dirty:        c.dirty,
		PendingTimer: c.timer != nil,
		InFlight:     c.inFlight,
		Queued:       c.queued,
		LastPayload:  cloneValues(c.payload),
		LastEditAt:   c.lastEditAt,
		LastSavedAt:  c.lastSavedAt,
		LastError:    c.lastError,
	}
}

// BeforeUnload asks p for a confirmation prompt when the draft is dirty
// and reports whether it did. It never blocks navigation itself.
func (c *Controller) BeforeUnload(p Prompter) bool {
	if !c.Dirty() {
		return false
	}
	if p != nil {
		p.Confirm(c.cfg.UnloadMessage)
	}
	return true
}

// Flush cancels the debounce timer and saves immediately if the draft is
// dirty, waiting until no save is in flight or queued.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopTimerLocked()

	var job *saveJob
	if c.dirty {
		if c.inFlight {
			c.queued = true
		} else {
			job = c.beginLocked()
		}
	}
	wait := c.idle
	c.mu.Unlock()

	if job != nil {
		go c.run(job)
	}
	if wait == nil {
		return nil
	}

	select {
	case <-wait:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.dirty && c.lastError != "" {
		return fmt.Errorf("%w: %s", ErrSaveFailed, c.lastError)
	}
	return nil
}

// Close stops the debounce timer and cancels any in-flight save. A save
// cancelled this way produces no notification.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()

	c.cancel()
}

func (c *Controller) restartTimerLocked() {
	c.stopTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(c.cfg.Delay, func() { c.fire(gen) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// Invalidate a callback that already started running.
	c.timerGen++
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.queued = true
		c.mu.Unlock()
		c.logger.Debug("Save in flight, queued follow-up")
		return
	}
	job := c.beginLocked()
	c.mu.Unlock()

	go c.run(job)
}

func (c *Controller) beginLocked() *saveJob {
	c.inFlight = true
	c.queued = false
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	return &saveJob{
		event: SaveEvent{
			ID:        uuid.NewString(),
			FormID:    c.cfg.FormID,
			Fields:    len(c.payload),
			StartedAt: c.clock.Now(),
			Result:    ResultSaving,
		},
		payload:  cloneValues(c.payload),
		revision: c.revision,
	}
}

func (c *Controller) run(job *saveJob) {
	if c.observer != nil {
		c.observer.SaveStarted(job.event)
	}
	outcome, err := c.submitter.Submit(c.ctx, job.payload)
	c.complete(job, outcome, err)
}

func (c *Controller) complete(job *saveJob, outcome Outcome, err error) {
	ev := job.event

	c.mu.Lock()
	c.inFlight = false
	ev.FinishedAt = c.clock.Now()

	var (
		message  string
		severity notify.Severity
		duration time.Duration
	)

	switch {
	case c.closed:
		ev.Result = ResultCancelled
		if err != nil {
			ev.Error = err.Error()
		}
	case err != nil:
		ev.Result = ResultFailed
		ev.Error = err.Error()
		c.lastError = ev.Error
		message = fmt.Sprintf("%s: %v", DefaultFailureMessage, err)
		severity = notify.SeverityError
		duration = c.cfg.FailureDuration
	case !outcome.Success:
		ev.Result = ResultRejected
		ev.Error = outcome.Error
		if ev.Error == "" {
			ev.Error = DefaultFailureMessage
		}
		c.lastError = ev.Error
		message = ev.Error
		severity = notify.SeverityError
		duration = c.cfg.FailureDuration
	default:
		ev.Result = ResultSaved
		c.lastError = ""
		c.lastSavedAt = ev.FinishedAt
		// Edits made after the snapshot was taken are still unsaved.
		if c.revision == job.revision {
			c.dirty = false
		}
		message = c.cfg.SuccessMessage
		severity = notify.SeveritySuccess
		duration = c.cfg.SuccessDuration
	}

	var next *saveJob
	if !c.closed && c.queued && c.dirty {
		next = c.beginLocked()
	} else {
		c.queued = false
		if c.idle != nil {
			close(c.idle)
			c.idle = nil
		}
	}
	c.mu.Unlock()

	c.logResult(ev)
	if c.observer != nil {
		c.observer.SaveFinished(ev)
	}
	if message != "" && c.notifier != nil {
		c.notifier.Notify(message, severity, duration)
	}
	if next != nil {
		go c.run(next)
	}
}

func (c *Controller) logResult(ev SaveEvent) {
	fields := []zap.Field{
		zap.String("save_id", ev.ID),
		zap.String("result", string(ev.Result)),
		zap.Duration("took", ev.FinishedAt.Sub(ev.StartedAt)),
	}
	switch ev.Result {
	case ResultSaved:
		c.logger.Info("Draft saved", fields...)
	case ResultCancelled:
		c.logger.Debug("Save cancelled", fields...)
	default:
		c.logger.Warn("Save failed", append(fields, zap.String("error", ev.Error))...)
	}
}
