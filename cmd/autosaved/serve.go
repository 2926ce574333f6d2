package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/api"
	"github.com/ShifatiRabbi/ecommerce-project/internal/autosave"
	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
	"github.com/ShifatiRabbi/ecommerce-project/internal/idle"
	"github.com/ShifatiRabbi/ecommerce-project/internal/metrics"
	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
	"github.com/ShifatiRabbi/ecommerce-project/internal/upstream"
)

const shutdownTimeout = 15 * time.Second

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logBuf := api.NewLogBuffer(cfg.Log.BufferSize)
	logger, err := api.NewLogger(cfg.Log, logBuf)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ConfigPath == "" {
		logger.Warn("No config file found, using defaults")
	} else {
		logger.Info("Loaded config", zap.String("path", cfg.ConfigPath))
	}

	collector := metrics.NewCollector("autosaved")
	hub := api.NewHub(cfg.Server.AllowedOrigins, logger.Named("push"))
	center := notify.NewCenter(
		notify.WithLogger(logger.Named("notify")),
		notify.WithRenderer(notify.Renderers{hub, collector}),
		notify.WithDefaultDuration(cfg.Notifications.DefaultDuration),
	)

	saves := api.NewSaveBuffer(cfg.Server.SaveBufferSize)
	forms, err := buildRegistry(cfg, center, autosave.Observers{saves, collector}, logger)
	if err != nil {
		return err
	}
	defer forms.Close()

	deps := api.Deps{
		Logger:  logger.Named("http"),
		Center:  center,
		Forms:   forms,
		Logs:    logBuf,
		Saves:   saves,
		Hub:     hub,
		Metrics: collector,
	}

	if cfg.Feed.Enabled {
		feed := upstream.NewFeedClient(&cfg.Feed, &cfg.Upstream, logger.Named("feed"))
		feed.OnUpdate = func(u upstream.OrderUpdate) {
			collector.FeedUpdates.Inc()
			hub.Broadcast(api.EventOrderUpdate, u)
			center.Notify(u.Describe(), notify.SeverityInfo, 0)
		}
		feed.Start()
		defer feed.Stop()
		deps.Feed = feed
	}

	if cfg.Stats.Enabled {
		stats := upstream.NewStatsPoller(&cfg.Stats, &cfg.Upstream, logger.Named("stats"))
		stats.OnStats = func(s upstream.OrderStats) {
			collector.PendingOrders.Set(float64(s.PendingOrders))
			hub.Broadcast(api.EventStats, s)
		}
		stats.Start()
		defer stats.Stop()
		deps.Stats = stats
	}

	if cfg.Idle.Enabled {
		logoutURL := cfg.Upstream.ResolveURL(cfg.Idle.LogoutURL)
		watcher := idle.NewWatcher(cfg.Idle.Timeout, cfg.Idle.Grace, center, func() {
			hub.Broadcast(api.EventLogout, map[string]string{"url": logoutURL})
		}, idle.WithLogger(logger.Named("idle")))
		defer watcher.Stop()
		deps.Idle = watcher
	}

	server := api.NewServer(cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("Auto-save gateway started",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int("forms", len(cfg.Forms)),
	)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Unsaved drafts get one last chance before the process exits.
	if err := forms.FlushAll(shutdownCtx); err != nil {
		logger.Error("Drafts left unsaved at shutdown", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// buildRegistry creates one controller per configured form, each posting to
// its own save endpoint
func buildRegistry(cfg *config.Config, center *notify.Center, observer autosave.Observer, logger *zap.Logger) (*autosave.Registry, error) {
	reg := autosave.NewRegistry()
	for _, fc := range cfg.Forms {
		client := upstream.NewSaveClient(&cfg.Upstream, fc.SaveURL, logger.Named("upstream").With(zap.String("form", fc.ID)))
		ctl, err := autosave.New(autosave.Config{
			FormID:          fc.ID,
			Delay:           fc.Delay,
			Fields:          fc.Fields,
			SuccessDuration: cfg.Notifications.SaveSuccessDuration,
		}, client, center,
			autosave.WithLogger(logger.Named("autosave")),
			autosave.WithObserver(observer),
		)
		if err != nil {
			reg.Close()
			return nil, err
		}
		if err := reg.Add(ctl); err != nil {
			ctl.Close()
			reg.Close()
			return nil, err
		}
		logger.Info("Registered form",
			zap.String("form", fc.ID),
			zap.String("save_url", client.URL()),
			zap.Duration("delay", fc.Delay),
		)
	}
	return reg, nil
}
