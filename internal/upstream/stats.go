package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
)

// OrderStats is the dashboard's order counter block
type OrderStats struct {
	TodayOrders   int `json:"today_orders"`
	WeekOrders    int `json:"week_orders"`
	PendingOrders int `json:"pending_orders"`
}

// StatsPoller refreshes dashboard order stats on an interval
type StatsPoller struct {
	url      string
	interval time.Duration
	upstream *config.UpstreamConfig
	client   *http.Client
	logger   *zap.Logger
	mu       sync.Mutex

	connected bool
	lastError error
	lastSeen  time.Time
	stats     *OrderStats

	done     chan struct{}
	stopOnce sync.Once

	// OnStats is called after every successful refresh
	OnStats func(OrderStats)
}

// NewStatsPoller creates a poller for the configured stats path
func NewStatsPoller(cfg *config.StatsConfig, upstream *config.UpstreamConfig, logger *zap.Logger) *StatsPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsPoller{
		url:      upstream.ResolveURL(cfg.Path),
		interval: cfg.Interval,
		upstream: upstream,
		client:   &http.Client{Timeout: upstream.Timeout},
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins polling, with an immediate first refresh
func (p *StatsPoller) Start() {
	go p.pollLoop()
}

// Stop stops the polling loop
func (p *StatsPoller) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// Status returns the current connection status
func (p *StatsPoller) Status() ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	errStr := ""
	if p.lastError != nil {
		errStr = p.lastError.Error()
	}

	return ConnectionStatus{
		Connected: p.connected,
		LastError: errStr,
		LastSeen:  p.lastSeen,
	}
}

// Stats returns the last fetched stats
func (p *StatsPoller) Stats() (OrderStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stats == nil {
		return OrderStats{}, false
	}
	return *p.stats, true
}

func (p *StatsPoller) pollLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.done
		cancel()
	}()

	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *StatsPoller) refresh(ctx context.Context) {
	if _, err := p.Poll(ctx); err != nil {
		p.logger.Warn("Stats refresh failed", zap.Error(err))
	}
}

// Poll fetches stats once
func (p *StatsPoller) Poll(ctx context.Context) (OrderStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.setError(err)
		return OrderStats{}, err
	}
	applyHeaders(req, p.upstream)

	resp, err := p.client.Do(req)
	if err != nil {
		p.setError(err)
		return OrderStats{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		err := fmt.Errorf("stats returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		p.setError(err)
		return OrderStats{}, err
	}

	var stats OrderStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		err = fmt.Errorf("parsing stats response: %w", err)
		p.setError(err)
		return OrderStats{}, err
	}

	p.mu.Lock()
	p.connected = true
	p.lastError = nil
	p.lastSeen = time.Now()
	p.stats = &stats
	p.mu.Unlock()

	if p.OnStats != nil {
		p.OnStats(stats)
	}
	return stats, nil
}

func (p *StatsPoller) setError(err error) {
	p.mu.Lock()
	p.connected = false
	p.lastError = err
	p.mu.Unlock()
}
