// Package upstream talks to the admin backend: form saves, the order-update
// feed and dashboard stats.
package upstream

import (
	"net/http"
	"time"

	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
)

// ConnectionStatus represents the state of a long-lived upstream link
type ConnectionStatus struct {
	Connected    bool      `json:"connected"`
	Reconnecting bool      `json:"reconnecting"`
	LastError    string    `json:"last_error,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

// CSRFField is the form field the admin backend reads the CSRF token from
const CSRFField = "csrfmiddlewaretoken"

// applyHeaders marks the request as AJAX and attaches the session
func applyHeaders(req *http.Request, cfg *config.UpstreamConfig) {
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")
	if cfg.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", cfg.CSRFToken)
	}
	if cfg.SessionCookie != "" {
		req.Header.Set("Cookie", cfg.SessionCookie)
	}
}
