package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/autosave"
	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
)

const maxResponseBody = 1 << 20

// SaveClient posts form snapshots to one save endpoint
type SaveClient struct {
	url     string
	config  *config.UpstreamConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSaveClient creates a save client for saveURL, resolved against the
// upstream base URL
func NewSaveClient(cfg *config.UpstreamConfig, saveURL string, logger *zap.Logger) *SaveClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SaveClient{
		url:    cfg.ResolveURL(saveURL),
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	if cfg.Breaker.Enabled {
		s.breaker = newBreaker(s.url, cfg.Breaker, logger)
	}
	return s
}

// URL returns the resolved save endpoint
func (s *SaveClient) URL() string {
	return s.url
}

// Submit implements autosave.Submitter
func (s *SaveClient) Submit(ctx context.Context, payload url.Values) (autosave.Outcome, error) {
	if s.breaker == nil {
		return s.post(ctx, payload)
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return autosave.Outcome{}, fmt.Errorf("save endpoint unavailable: %w", err)
		}
		return autosave.Outcome{}, err
	}
	return res.(autosave.Outcome), nil
}

func (s *SaveClient) post(ctx context.Context, payload url.Values) (autosave.Outcome, error) {
	form := payload
	if s.config.CSRFToken != "" && payload.Get(CSRFField) == "" {
		form = make(url.Values, len(payload)+1)
		for k, v := range payload {
			form[k] = v
		}
		form.Set(CSRFField, s.config.CSRFToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return autosave.Outcome{}, fmt.Errorf("creating save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	applyHeaders(req, s.config)

	resp, err := s.client.Do(req)
	if err != nil {
		return autosave.Outcome{}, fmt.Errorf("sending save request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return autosave.Outcome{}, fmt.Errorf("reading save response: %w", err)
	}

	var outcome autosave.Outcome
	decodeErr := json.Unmarshal(body, &outcome)
	var envelope struct {
		Success *bool `json:"success"`
	}
	hasEnvelope := decodeErr == nil && json.Unmarshal(body, &envelope) == nil && envelope.Success != nil

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return autosave.Outcome{}, fmt.Errorf("parsing save response: %w", decodeErr)
		}
		return outcome, nil
	case resp.StatusCode < 500 && hasEnvelope && !outcome.Success:
		// Validation and permission failures answered in the usual envelope.
		return outcome, nil
	default:
		return autosave.Outcome{}, fmt.Errorf("save endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
}

func newBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Save circuit breaker state changed",
				zap.String("endpoint", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Cancelled requests say nothing about the endpoint's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
