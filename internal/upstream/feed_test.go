package upstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
)

func TestNextDelay(t *testing.T) {
	max := 30 * time.Second
	d := time.Second
	var seen []time.Duration
	for i := 0; i < 7; i++ {
		d = NextDelay(d, max)
		seen = append(seen, d)
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		30 * time.Second, 30 * time.Second, 30 * time.Second,
	}, seen)
}

func TestOrderUpdateDescribe(t *testing.T) {
	assert.Equal(t, "hello", OrderUpdate{Message: "hello"}.Describe())
	assert.Equal(t, "Order #12 is now shipped", OrderUpdate{OrderID: "12", Status: "shipped"}.Describe())
	assert.Equal(t, "Order #12 was updated", OrderUpdate{OrderID: "12"}.Describe())
}

// feedServer accepts connections and hands them to the test
type feedServer struct {
	*httptest.Server
	conns   chan *websocket.Conn
	cookies chan string
}

func newFeedServer(t *testing.T) *feedServer {
	fs := &feedServer{
		conns:   make(chan *websocket.Conn, 4),
		cookies: make(chan string, 4),
	}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fs.cookies <- r.Header.Get("Cookie")
		fs.conns <- conn
	}))
	return fs
}

func (fs *feedServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func (fs *feedServer) accept(t *testing.T) *websocket.Conn {
	select {
	case c := <-fs.conns:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("feed client did not connect")
		return nil
	}
}

func TestFeedClientDeliversUpdatesAndReconnects(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	cfg := &config.FeedConfig{
		Enabled:           true,
		URL:               fs.wsURL(),
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Hour,
	}
	up := &config.UpstreamConfig{SessionCookie: "sessionid=abc"}

	var mu sync.Mutex
	var updates []OrderUpdate
	got := make(chan struct{}, 4)

	client := NewFeedClient(cfg, up, zaptest.NewLogger(t))
	client.OnUpdate = func(u OrderUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
		got <- struct{}{}
	}
	client.Start()
	defer client.Stop()

	conn := fs.accept(t)
	assert.Equal(t, "sessionid=abc", <-fs.cookies)

	msg, _ := json.Marshal(OrderUpdate{Type: "order_update", OrderID: "42", Status: "paid"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`)))

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("update not delivered")
	}
	assert.Eventually(t, func() bool { return client.Status().Connected }, time.Second, 5*time.Millisecond)

	// Drop the connection; the client should come back.
	conn.Close()
	second := fs.accept(t)
	defer second.Close()

	assert.Eventually(t, func() bool { return client.Connects() == 2 }, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	assert.Equal(t, "42", updates[0].OrderID)
	assert.Equal(t, "paid", updates[0].Status)
}

func TestFeedClientSendsPings(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	cfg := &config.FeedConfig{
		Enabled:           true,
		URL:               fs.wsURL(),
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      20 * time.Millisecond,
	}
	client := NewFeedClient(cfg, nil, zaptest.NewLogger(t))
	client.Start()
	defer client.Stop()

	conn := fs.accept(t)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))
}

func TestFeedClientRecordsDialFailure(t *testing.T) {
	cfg := &config.FeedConfig{
		Enabled:           true,
		URL:               "ws://127.0.0.1:1/ws/orders/",
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 20 * time.Millisecond,
		PingInterval:      time.Hour,
	}
	var updates atomic.Int32
	client := NewFeedClient(cfg, nil, zaptest.NewLogger(t))
	client.OnUpdate = func(OrderUpdate) { updates.Add(1) }
	client.Start()
	defer client.Stop()

	assert.Eventually(t, func() bool {
		s := client.Status()
		return s.Reconnecting && s.LastError != ""
	}, 3*time.Second, 5*time.Millisecond)
	assert.False(t, client.Status().Connected)
	assert.Zero(t, updates.Load())
}
