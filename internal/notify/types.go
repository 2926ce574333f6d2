package notify

import (
	"strings"
	"time"
)

// Severity selects the visual style of a notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultDuration is how long a banner stays up when no duration is given
const DefaultDuration = 5 * time.Second

// ParseSeverity maps a loose severity name to a Severity, defaulting to info
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "ok":
		return SeveritySuccess
	case "warning", "warn":
		return SeverityWarning
	case "error", "danger", "critical":
		return SeverityError
	default:
		return SeverityInfo
	}
}

// Valid reports whether s is one of the four known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Style is the alert class and icon used to render a severity
type Style struct {
	Class string `json:"class"`
	Icon  string `json:"icon"`
}

// StyleFor returns the rendering style for a severity
func StyleFor(s Severity) Style {
	switch s {
	case SeveritySuccess:
		return Style{Class: "alert-success", Icon: "check"}
	case SeverityWarning:
		return Style{Class: "alert-warning", Icon: "exclamation-circle"}
	case SeverityError:
		return Style{Class: "alert-danger", Icon: "exclamation-triangle"}
	default:
		return Style{Class: "alert-info", Icon: "info"}
	}
}

// Notification is a transient banner shown to the user
type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"-"`
}

// ExpiresAt is the instant the banner dismisses itself
func (n Notification) ExpiresAt() time.Time {
	return n.CreatedAt.Add(n.Duration)
}

// CloseReason records why a banner left the screen
type CloseReason string

const (
	ReasonSuperseded CloseReason = "superseded"
	ReasonDismissed  CloseReason = "dismissed"
	ReasonExpired    CloseReason = "expired"
)
