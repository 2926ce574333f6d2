package autosave

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
)

var (
	// ErrClosed is returned by operations on a controller after Close
	ErrClosed = errors.New("autosave: controller closed")
	// ErrUnknownForm is returned by Registry lookups for unregistered ids
	ErrUnknownForm = errors.New("autosave: unknown form")
	// ErrSaveFailed is returned by Flush when the draft is still unsaved
	ErrSaveFailed = errors.New("autosave: save failed")
)

const (
	DefaultSuccessMessage  = "Changes saved automatically"
	DefaultSuccessDuration = 2 * time.Second
	DefaultFailureMessage  = "Auto-save failed"
	DefaultUnloadMessage   = "You have unsaved changes. Are you sure you want to leave?"
)

// Config describes one auto-saved form
type Config struct {
	FormID string
	// Delay is the quiet period after the last mutation before saving
	Delay time.Duration
	// Fields limits which fields trigger a save; empty tracks every field
	Fields []string

	SuccessMessage  string
	SuccessDuration time.Duration
	// FailureDuration of zero uses the notifier's default
	FailureDuration time.Duration
	UnloadMessage   string
}

func (c *Config) setDefaults() {
	if c.SuccessMessage == "" {
		c.SuccessMessage = DefaultSuccessMessage
	}
	if c.SuccessDuration <= 0 {
		c.SuccessDuration = DefaultSuccessDuration
	}
	if c.UnloadMessage == "" {
		c.UnloadMessage = DefaultUnloadMessage
	}
}

// Outcome is the save endpoint's answer
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Submitter sends a form snapshot to the save endpoint. A non-nil error
// means the request never completed; an Outcome with Success false is an
// application-level rejection.
type Submitter interface {
	Submit(ctx context.Context, payload url.Values) (Outcome, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, payload url.Values) (Outcome, error)

func (f SubmitterFunc) Submit(ctx context.Context, payload url.Values) (Outcome, error) {
	return f(ctx, payload)
}

// Notifier surfaces save results to the user
type Notifier interface {
	Notify(message string, severity notify.Severity, duration time.Duration) notify.Notification
}

// Prompter asks the host for an "are you sure" confirmation on navigation
type Prompter interface {
	Confirm(message string)
}

// PrompterFunc adapts a function to Prompter
type PrompterFunc func(message string)

func (f PrompterFunc) Confirm(message string) {
	f(message)
}

// Result classifies a finished save attempt
type Result string

const (
	ResultSaving    Result = "saving"
	ResultSaved     Result = "saved"
	ResultRejected  Result = "rejected"
	ResultFailed    Result = "failed"
	ResultCancelled Result = "cancelled"
)

// SaveEvent describes one save attempt
type SaveEvent struct {
	ID         string
	FormID     string
	Fields     int
	StartedAt  time.Time
	FinishedAt time.Time
	Result     Result
	Error      string
}

// Observer is told when saves start and finish
type Observer interface {
	SaveStarted(ev SaveEvent)
	SaveFinished(ev SaveEvent)
}

// Observers fans every event out to each observer in order
type Observers []Observer

func (obs Observers) SaveStarted(ev SaveEvent) {
	for _, o := range obs {
		o.SaveStarted(ev)
	}
}

func (obs Observers) SaveFinished(ev SaveEvent) {
	for _, o := range obs {
		o.SaveFinished(ev)
	}
}

// DraftState is a snapshot of a controller's state
type DraftState struct {
	FormID       string     `json:"form_id"`
	Dirty        bool       `json:"dirty"`
	PendingTimer bool       `json:"pending_timer"`
	InFlight     bool       `json:"in_flight"`
	Queued       bool       `json:"queued"`
	LastPayload  url.Values `json:"last_payload,omitempty"`
	LastEditAt   time.Time  `json:"last_edit_at,omitempty"`
	LastSavedAt  time.Time  `json:"last_saved_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
