// Package api serves the gateway's HTTP surface: form input and save
// endpoints, the notification banner, push events and the web UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/autosave"
	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
	"github.com/ShifatiRabbi/ecommerce-project/internal/idle"
	"github.com/ShifatiRabbi/ecommerce-project/internal/metrics"
	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
	"github.com/ShifatiRabbi/ecommerce-project/internal/upstream"
)

// FieldParam names the mutated field in an input request
const FieldParam = "_field"

const maxMultipartMemory = 1 << 20

// Deps are the components the server exposes. Only Center and Forms are
// required.
type Deps struct {
	Logger  *zap.Logger
	Center  *notify.Center
	Forms   *autosave.Registry
	Logs    *LogBuffer
	Saves   *SaveBuffer
	Hub     *Hub
	Metrics *metrics.Collector
	Idle    *idle.Watcher
	Feed    *upstream.FeedClient
	Stats   *upstream.StatsPoller
}

// Server represents the HTTP server
type Server struct {
	Deps
	config     *config.Config
	router     chi.Router
	httpServer *http.Server
	validate   *validator.Validate
	startedAt  time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Logs == nil {
		deps.Logs = NewLogBuffer(cfg.Log.BufferSize)
	}
	if deps.Saves == nil {
		deps.Saves = NewSaveBuffer(cfg.Server.SaveBufferSize)
	}

	s := &Server{
		Deps:      deps,
		config:    cfg,
		router:    chi.NewRouter(),
		validate:  validator.New(),
		startedAt: time.Now(),
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRFToken", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		// Forms
		r.Get("/forms", s.handleListForms)
		r.Post("/unload", s.handleUnloadAll)
		r.Route("/forms/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetForm)
			r.Post("/input", s.handleInput)
			r.Post("/save", s.handleSave)
			r.Post("/unload", s.handleUnload)
		})

		// Notifications
		r.Get("/notification", s.handleGetNotification)
		r.Post("/notification", s.handleNotify)
		r.Delete("/notification/{id}", s.handleDismiss)

		r.Post("/activity", s.handleActivity)

		r.Get("/logs", s.handleLogs)
		r.Get("/saves", s.handleSaves)
		r.Get("/stats", s.handleStats)
	})

	if s.Hub != nil {
		r.Handle("/ws", s.Hub)
	}
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	// Web UI
	r.Get("/", s.handleUI)
}

func (s *Server) allowedOrigins() []string {
	if len(s.config.Server.AllowedOrigins) > 0 {
		return s.config.Server.AllowedOrigins
	}
	return []string{s.config.Upstream.BaseURL}
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.Logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and disconnects push clients
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Hub != nil {
		s.Hub.Shutdown()
	}
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request with its status and latency
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		// Polling endpoints would drown the activity log.
		if r.Method == http.MethodGet {
			s.Logger.Debug("HTTP request", fields...)
			return
		}
		s.Logger.Info("HTTP request", fields...)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns server status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	forms := s.Forms.All()
	dirty := 0
	for _, c := range forms {
		if c.Dirty() {
			dirty++
		}
	}

	resp := map[string]interface{}{
		"status":      "running",
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"forms_count": len(forms),
		"dirty_forms": dirty,
	}
	if _, ok := s.Center.Current(); ok {
		resp["notification_visible"] = true
	} else {
		resp["notification_visible"] = false
	}
	if s.Hub != nil {
		resp["push_clients"] = s.Hub.Count()
	}
	if s.Feed != nil {
		resp["feed"] = s.Feed.Status()
	}
	if s.Stats != nil {
		resp["stats"] = s.Stats.Status()
	}
	if s.Idle != nil {
		resp["idle"] = map[string]interface{}{
			"state":         s.Idle.State(),
			"last_activity": s.Idle.LastActivity(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// FormInfo describes a registered form
type FormInfo struct {
	ID      string              `json:"id"`
	DelayMS int64               `json:"delay_ms"`
	Fields  []string            `json:"fields,omitempty"`
	State   autosave.DraftState `json:"state"`
}

func formInfo(c *autosave.Controller) FormInfo {
	cfg := c.Config()
	return FormInfo{
		ID:      cfg.FormID,
		DelayMS: cfg.Delay.Milliseconds(),
		Fields:  cfg.Fields,
		State:   c.State(),
	}
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms := make([]FormInfo, 0)
	for _, c := range s.Forms.All() {
		forms = append(forms, formInfo(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"forms": forms,
	})
}

// controller resolves the {id} path parameter, writing a 404 when unknown
func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*autosave.Controller, bool) {
	c, err := s.Forms.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return c, true
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, formInfo(c))
}

// handleInput records a field mutation with the form's full snapshot
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case err == nil && mediaType == "application/x-www-form-urlencoded":
		err = r.ParseForm()
	case err == nil && mediaType == "multipart/form-data":
		err = r.ParseMultipartForm(maxMultipartMemory)
	default:
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Errorf("unsupported content type %q, want a form encoding", r.Header.Get("Content-Type")))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid form body: %w", err))
		return
	}

	snapshot := r.PostForm
	field := snapshot.Get(FieldParam)
	snapshot.Del(FieldParam)

	if s.Idle != nil {
		s.Idle.Touch()
	}

	tracked := c.Observe(field, snapshot)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"tracked": tracked,
		"state":   c.State(),
	})
}

// handleSave saves immediately and waits for the result
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	err := c.Flush(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"state":   c.State(),
		})
	case errors.Is(err, autosave.ErrSaveFailed):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, autosave.ErrClosed):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusServiceUnavailable, err)
	}
}

type unloadResponse struct {
	Confirm bool   `json:"confirm"`
	Message string `json:"message,omitempty"`
}

// handleUnload answers a page's beforeunload check
func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var resp unloadResponse
	resp.Confirm = c.BeforeUnload(autosave.PrompterFunc(func(msg string) { resp.Message = msg }))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnloadAll(w http.ResponseWriter, r *http.Request) {
	var resp unloadResponse
	resp.Confirm = s.Forms.BeforeUnload(autosave.PrompterFunc(func(msg string) { resp.Message = msg }))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := s.Center.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"notification": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notification": NewBanner(n)})
}

// NotifyRequest asks the gateway to display a banner
type NotifyRequest struct {
	Message    string `json:"message" validate:"max=2000"`
	Severity   string `json:"severity" validate:"max=32"`
	DurationMS int64  `json:"duration_ms" validate:"gte=0,lte=3600000"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	n := s.Center.Notify(req.Message, notify.ParseSeverity(req.Severity), time.Duration(req.DurationMS)*time.Millisecond)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"notification": NewBanner(n),
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.Center.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, errors.New("notification is not visible"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.Idle == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "idle": "disabled"})
		return
	}
	s.Idle.Touch()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"idle":    s.Idle.State(),
	})
}

// handleLogs returns buffered log entries, filtered by ?level=warn,error
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if lv := r.URL.Query().Get("level"); lv != "" {
		levels = strings.Split(lv, ",")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": s.Logs.Entries(levels),
	})
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saves": s.Saves.Entries(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"available": false})
		return
	}
	stats, ok := s.Stats.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": ok,
		"stats":     stats,
		"status":    s.Stats.Status(),
	})
}

// handleUI serves the web UI
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(webUI))
}
