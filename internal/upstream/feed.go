package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
)

// OrderUpdate is a message from the order-update feed
type OrderUpdate struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// FeedClient keeps a WebSocket connection to the order-update feed open,
// reconnecting with exponential backoff
type FeedClient struct {
	config   *config.FeedConfig
	upstream *config.UpstreamConfig
	logger   *zap.Logger
	dialer   *websocket.Dialer
	conn     *websocket.Conn
	mu       sync.Mutex

	// State
	connected    bool
	reconnecting bool
	lastError    error
	lastSeen     time.Time
	connects     int

	done     chan struct{}
	stopOnce sync.Once

	// OnUpdate receives every order_update message
	OnUpdate func(OrderUpdate)
}

// NewFeedClient creates a feed client
func NewFeedClient(cfg *config.FeedConfig, upstream *config.UpstreamConfig, logger *zap.Logger) *FeedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedClient{
		config:   cfg,
		upstream: upstream,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
		done:     make(chan struct{}),
	}
}

// Start begins the connection and reconnection loop
func (c *FeedClient) Start() {
	go c.connectionLoop()
}

// Stop closes the connection and ends the loop
func (c *FeedClient) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// Status returns the current connection status
func (c *FeedClient) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}

	return ConnectionStatus{
		Connected:    c.connected,
		Reconnecting: c.reconnecting,
		LastError:    errStr,
		LastSeen:     c.lastSeen,
	}
}

// Connects returns how many times a connection was established
func (c *FeedClient) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// NextDelay doubles the reconnect delay, capped at limit
func NextDelay(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		next = limit
	}
	return next
}

func (c *FeedClient) connectionLoop() {
	delay := c.config.ReconnectDelay

	for {
		select {
		case <-c.done:
			return
		default:
		}

		err := c.connect()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.reconnecting = true
			c.lastError = err
			c.mu.Unlock()

			c.logger.Warn("Order feed connection failed",
				zap.Error(err),
				zap.Duration("retry_in", delay),
			)

			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}

			delay = NextDelay(delay, c.config.MaxReconnectDelay)
			continue
		}

		// Connected successfully, reset delay
		delay = c.config.ReconnectDelay

		c.runConnection()

		// A dropped connection is retried after the base delay.
		c.mu.Lock()
		c.reconnecting = true
		c.mu.Unlock()

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
	}
}

func (c *FeedClient) connect() error {
	header := http.Header{}
	if c.upstream != nil && c.upstream.SessionCookie != "" {
		header.Set("Cookie", c.upstream.SessionCookie)
	}

	c.logger.Info("Connecting to order feed", zap.String("url", c.config.URL))

	conn, _, err := c.dialer.Dial(c.config.URL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("feed stopped")
	default:
	}
	c.conn = conn
	c.connected = true
	c.reconnecting = false
	c.lastError = nil
	c.lastSeen = time.Now()
	c.connects++
	c.mu.Unlock()

	c.logger.Info("Order feed connected")
	return nil
}

func (c *FeedClient) runConnection() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	readDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(readDone)
		c.readLoop(conn)
	}()

	go func() {
		defer wg.Done()
		c.writeLoop(conn, readDone)
	}()

	wg.Wait()

	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *FeedClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Order feed read error", zap.Error(err))
			}
			c.mu.Lock()
			c.lastError = err
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		c.lastSeen = time.Now()
		c.mu.Unlock()

		c.handleMessage(message)
	}
}

func (c *FeedClient) writeLoop(conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-readDone:
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			data, _ := json.Marshal(OrderUpdate{Type: "ping"})
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("Order feed ping error", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

func (c *FeedClient) handleMessage(data []byte) {
	var msg OrderUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Failed to parse feed message", zap.Error(err))
		return
	}

	switch msg.Type {
	case "order_update":
		if c.OnUpdate != nil {
			c.OnUpdate(msg)
		}
	case "pong":
		// Heartbeat response, nothing to do
	default:
		c.logger.Debug("Unknown feed message type", zap.String("type", msg.Type))
	}
}

// Describe renders an update as a banner message
func (u OrderUpdate) Describe() string {
	if u.Message != "" {
		return u.Message
	}
	if u.Status != "" {
		return fmt.Sprintf("Order #%s is now %s", u.OrderID, u.Status)
	}
	return fmt.Sprintf("Order #%s was updated", u.OrderID)
}
