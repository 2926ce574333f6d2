package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ShifatiRabbi/ecommerce-project/internal/autosave"
	"github.com/ShifatiRabbi/ecommerce-project/internal/clock"
	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
	"github.com/ShifatiRabbi/ecommerce-project/internal/metrics"
	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
)

// stubSubmitter answers every save with a fixed outcome and records payloads
type stubSubmitter struct {
	mu       sync.Mutex
	outcome  autosave.Outcome
	payloads []url.Values
}

func (s *stubSubmitter) Submit(ctx context.Context, payload url.Values) (autosave.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return s.outcome, nil
}

func (s *stubSubmitter) setOutcome(o autosave.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = o
}

func (s *stubSubmitter) calls() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.payloads...)
}

type testEnv struct {
	server  *Server
	http    *httptest.Server
	clock   *clock.Manual
	center  *notify.Center
	sub     *stubSubmitter
	saves   *SaveBuffer
	hub     *Hub
	metrics *metrics.Collector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	hub := NewHub([]string{"*"}, logger)
	collector := metrics.NewCollector("test")
	center := notify.NewCenter(
		notify.WithClock(clk),
		notify.WithLogger(logger),
		notify.WithRenderer(notify.Renderers{hub, collector}),
	)

	saves := NewSaveBuffer(10)
	sub := &stubSubmitter{outcome: autosave.Outcome{Success: true}}
	reg := autosave.NewRegistry()
	for _, fc := range []autosave.Config{
		{FormID: "product", Delay: 2 * time.Second, Fields: []string{"name", "price"}},
		{FormID: "notes", Delay: 30 * time.Second},
	} {
		ctl, err := autosave.New(fc, sub, center,
			autosave.WithClock(clk),
			autosave.WithLogger(logger),
			autosave.WithObserver(autosave.Observers{saves, collector}),
		)
		require.NoError(t, err)
		require.NoError(t, reg.Add(ctl))
	}
	t.Cleanup(reg.Close)

	cfg := config.Default()
	srv := NewServer(cfg, Deps{
		Logger:  logger,
		Center:  center,
		Forms:   reg,
		Saves:   saves,
		Hub:     hub,
		Metrics: collector,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Shutdown)

	return &testEnv{server: srv, http: ts, clock: clk, center: center, sub: sub, saves: saves, hub: hub, metrics: collector}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) input(t *testing.T, form string, values url.Values) (int, map[string]interface{}) {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/forms/"+form+"/input", strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestInputDebouncesIntoOneSave(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.input(t, "product", url.Values{"_field": {"name"}, "name": {"Mug"}, "price": {"9"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["tracked"])
	state := body["state"].(map[string]interface{})
	assert.Equal(t, true, state["dirty"])
	assert.Equal(t, true, state["pending_timer"])

	env.clock.Advance(time.Second)
	env.input(t, "product", url.Values{"_field": {"name"}, "name": {"Mug 2"}, "price": {"9"}})
	env.clock.Advance(time.Second)
	assert.Empty(t, env.sub.calls())

	env.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(env.sub.calls()) == 1 }, 2*time.Second, 5*time.Millisecond)

	payload := env.sub.calls()[0]
	assert.Equal(t, "Mug 2", payload.Get("name"))
	assert.Empty(t, payload.Get(FieldParam))

	require.Eventually(t, func() bool {
		n, ok := env.center.Current()
		return ok && n.Message == autosave.DefaultSuccessMessage
	}, 2*time.Second, 5*time.Millisecond)

	saves := env.saves.Entries()
	require.Len(t, saves, 1)
	assert.Equal(t, "product", saves[0].FormID)
}

func TestInputUntrackedField(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.input(t, "product", url.Values{"_field": {"sku"}, "sku": {"X"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["tracked"])
	assert.Equal(t, false, body["state"].(map[string]interface{})["dirty"])
}

func TestInputRejectsNonFormBody(t *testing.T) {
	env := newTestEnv(t)

	for _, ct := range []string{"application/json", "text/plain", ""} {
		code, body := env.do(t, http.MethodPost, "/api/forms/notes/input", strings.NewReader(`{"notes":"important draft"}`), ct)
		assert.Equal(t, http.StatusUnsupportedMediaType, code, ct)
		assert.Equal(t, false, body["success"])
	}

	_, form := env.do(t, http.MethodGet, "/api/forms/notes", nil, "")
	assert.Equal(t, false, form["state"].(map[string]interface{})["dirty"])
	assert.Zero(t, env.clock.Pending())

	env.clock.Advance(30 * time.Second)
	assert.Empty(t, env.sub.calls())
}

func TestInputAcceptsMultipart(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(FieldParam, "notes"))
	require.NoError(t, mw.WriteField("notes", "important draft"))
	require.NoError(t, mw.Close())

	code, body := env.do(t, http.MethodPost, "/api/forms/notes/input", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["tracked"])

	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return len(env.sub.calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	payload := env.sub.calls()[0]
	assert.Equal(t, "important draft", payload.Get("notes"))
	assert.Empty(t, payload.Get(FieldParam))
}

func TestUnknownForm(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.input(t, "missing", url.Values{"a": {"1"}})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "unknown form")
}

func TestSaveNow(t *testing.T) {
	env := newTestEnv(t)
	env.input(t, "notes", url.Values{"_field": {"notes"}, "notes": {"call back"}})

	code, body := env.do(t, http.MethodPost, "/api/forms/notes/save", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["state"].(map[string]interface{})["dirty"])
	require.Len(t, env.sub.calls(), 1)

	// The debounce timer was cancelled, so nothing fires later.
	env.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, env.sub.calls(), 1)
}

func TestSaveNowRejected(t *testing.T) {
	env := newTestEnv(t)
	env.sub.setOutcome(autosave.Outcome{Success: false, Error: "disk full"})
	env.input(t, "notes", url.Values{"notes": {"x"}})

	code, body := env.do(t, http.MethodPost, "/api/forms/notes/save", nil, "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["error"], "disk full")

	require.Eventually(t, func() bool {
		n, ok := env.center.Current()
		return ok && n.Severity == notify.SeverityError && n.Message == "disk full"
	}, 2*time.Second, 5*time.Millisecond)

	code, body = env.do(t, http.MethodPost, "/api/forms/notes/unload", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["confirm"])
	assert.Equal(t, autosave.DefaultUnloadMessage, body["message"])
}

func TestUnloadClean(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/forms/product/unload", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["confirm"])

	env.input(t, "product", url.Values{"_field": {"price"}, "price": {"3"}})
	_, body = env.do(t, http.MethodPost, "/api/unload", nil, "")
	assert.Equal(t, true, body["confirm"])
}

func TestNotificationLifecycle(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/notification", nil, "")
	assert.Nil(t, body["notification"])

	code, body := env.do(t, http.MethodPost, "/api/notification",
		strings.NewReader(`{"message":"Order status updated successfully!","severity":"success","duration_ms":5000}`), "application/json")
	require.Equal(t, http.StatusOK, code)
	banner := body["notification"].(map[string]interface{})
	id := banner["id"].(string)
	assert.Contains(t, banner["html"], "alert-success")
	assert.Equal(t, float64(5000), banner["duration_ms"])

	_, body = env.do(t, http.MethodGet, "/api/notification", nil, "")
	assert.Equal(t, id, body["notification"].(map[string]interface{})["id"])

	code, _ = env.do(t, http.MethodDelete, "/api/notification/"+id, nil, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/api/notification/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNotificationExpires(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/notification", strings.NewReader(`{"message":"hi"}`), "application/json")

	env.clock.Advance(notify.DefaultDuration - time.Millisecond)
	_, body := env.do(t, http.MethodGet, "/api/notification", nil, "")
	assert.NotNil(t, body["notification"])

	env.clock.Advance(time.Millisecond)
	_, body = env.do(t, http.MethodGet, "/api/notification", nil, "")
	assert.Nil(t, body["notification"])
}

func TestNotifyRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/notification", strings.NewReader(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/notification", strings.NewReader(`{"message":"x","duration_ms":-1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestActivityWithoutIdleWatcher(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodPost, "/api/activity", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disabled", body["idle"])
}

func TestStatusAndForms(t *testing.T) {
	env := newTestEnv(t)
	env.input(t, "product", url.Values{"_field": {"name"}, "name": {"a"}})

	_, body := env.do(t, http.MethodGet, "/api/status", nil, "")
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(2), body["forms_count"])
	assert.Equal(t, float64(1), body["dirty_forms"])

	_, body = env.do(t, http.MethodGet, "/api/forms", nil, "")
	forms := body["forms"].([]interface{})
	require.Len(t, forms, 2)
	first := forms[0].(map[string]interface{})
	assert.Equal(t, "product", first["id"])
	assert.Equal(t, float64(2000), first["delay_ms"])

	_, body = env.do(t, http.MethodGet, "/api/forms/notes", nil, "")
	assert.Equal(t, "notes", body["id"])
}

func TestStatsDisabled(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodGet, "/api/stats", nil, "")
	assert.Equal(t, false, body["available"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", nil, "")

	resp, err := http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestWebUI(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(data), `id="notification-container"`)
}

func dialPush(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.http.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestPushBannerEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := dialPush(t, env)

	first := env.center.Notify("one", notify.SeverityInfo, 0)
	env.center.Notify("two", notify.SeverityWarning, 0)

	ev := readEvent(t, conn)
	assert.Equal(t, EventNotificationShow, ev["type"])
	assert.Equal(t, "one", ev["data"].(map[string]interface{})["message"])

	ev = readEvent(t, conn)
	assert.Equal(t, EventNotificationClose, ev["type"])
	data := ev["data"].(map[string]interface{})
	assert.Equal(t, first.ID, data["id"])
	assert.Equal(t, string(notify.ReasonSuperseded), data["reason"])

	ev = readEvent(t, conn)
	assert.Equal(t, EventNotificationShow, ev["type"])
	assert.Equal(t, "two", ev["data"].(map[string]interface{})["message"])
}

func TestPushGreetsWithCurrentBanner(t *testing.T) {
	env := newTestEnv(t)
	n := env.center.Notify("already up", notify.SeverityInfo, 0)

	conn := dialPush(t, env)
	ev := readEvent(t, conn)
	assert.Equal(t, EventNotificationShow, ev["type"])
	assert.Equal(t, n.ID, ev["data"].(map[string]interface{})["id"])
}
