package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
)

// Event types pushed to browser clients
const (
	EventNotificationShow  = "notification.show"
	EventNotificationClose = "notification.close"
	EventOrderUpdate       = "order_update"
	EventStats             = "stats"
	EventLogout            = "logout"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 16
)

// Event is one message on the push channel
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Banner is the wire form of a notification
type Banner struct {
	ID         string          `json:"id"`
	Message    string          `json:"message"`
	Severity   notify.Severity `json:"severity"`
	DurationMS int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	HTML       string          `json:"html"`
}

// NewBanner converts n for the wire
func NewBanner(n notify.Notification) Banner {
	return Banner{
		ID:         n.ID,
		Message:    n.Message,
		Severity:   n.Severity,
		DurationMS: n.Duration.Milliseconds(),
		CreatedAt:  n.CreatedAt,
		ExpiresAt:  n.ExpiresAt(),
		HTML:       notify.RenderHTML(n),
	}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to connected browser tabs over WebSocket. It is a
// notify.Renderer, so banners appear in every open tab.
type Hub struct {
	mu       sync.Mutex
	clients  map[*hubClient]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
	closed   bool

	// banner is the last shown notification still open; new clients are
	// greeted with it
	banner *Banner
}

// NewHub creates a hub. allowedOrigins limits cross-origin upgrades; "*"
// allows any origin, and an empty list allows same-origin only.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[*hubClient]struct{}),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues an event for every client and returns how many got it.
// Clients whose queue is full are dropped. It never blocks.
func (h *Hub) Broadcast(eventType string, data interface{}) int {
	msg, err := encodeEvent(eventType, data)
	if err != nil {
		h.logger.Error("Failed to encode push event", zap.String("type", eventType), zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcastLocked(msg)
}

func encodeEvent(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Data: data})
}

func (h *Hub) broadcastLocked(msg []byte) int {
	n := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			n++
		default:
			h.logger.Warn("Push client too slow, dropping")
			h.removeLocked(c)
		}
	}
	return n
}

// Show implements notify.Renderer
func (h *Hub) Show(n notify.Notification) {
	banner := NewBanner(n)
	msg, err := encodeEvent(EventNotificationShow, banner)
	if err != nil {
		h.logger.Error("Failed to encode banner", zap.String("id", n.ID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.banner = &banner
	h.broadcastLocked(msg)
}

// Close implements notify.Renderer
func (h *Hub) Close(n notify.Notification, reason notify.CloseReason) {
	msg, err := encodeEvent(EventNotificationClose, map[string]string{
		"id":     n.ID,
		"reason": string(reason),
	})
	if err != nil {
		h.logger.Error("Failed to encode banner close", zap.String("id", n.ID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.banner != nil && h.banner.ID == n.ID {
		h.banner = nil
	}
	h.broadcastLocked(msg)
}

// Shutdown disconnects every client
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientSendSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	// Registering and greeting under one lock keeps the greeting ordered
	// with every later show and close.
	h.clients[c] = struct{}{}
	if h.banner != nil {
		if msg, err := encodeEvent(EventNotificationShow, h.banner); err == nil {
			c.send <- msg
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("Push client connected", zap.String("remote_addr", r.RemoteAddr), zap.Int("clients", count))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Push client read error", zap.Error(err))
			}
			return
		}
		// Any inbound message counts as liveness.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
