package notify

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShifatiRabbi/ecommerce-project/internal/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type closeEvent struct {
	ID     string
	Reason CloseReason
}

// recorder counts renderer calls and tracks what is on screen
type recorder struct {
	mu      sync.Mutex
	shown   []Notification
	closed  []closeEvent
	visible map[string]bool
}

func newRecorder() *recorder {
	return &recorder{visible: make(map[string]bool)}
}

func (r *recorder) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
	r.visible[n.ID] = true
}

func (r *recorder) Close(n Notification, reason CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, closeEvent{ID: n.ID, Reason: reason})
	delete(r.visible, n.ID)
}

func (r *recorder) visibleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visible)
}

func setupCenter(t *testing.T) (*Center, *clock.Manual, *recorder) {
	t.Helper()
	clk := clock.NewManual(epoch)
	rec := newRecorder()
	return NewCenter(WithClock(clk), WithRenderer(rec)), clk, rec
}

func TestNotifyShowsBanner(t *testing.T) {
	c, _, rec := setupCenter(t)

	n := c.Notify("Order status updated successfully!", SeveritySuccess, 0)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, n.ID, cur.ID)
	assert.Equal(t, SeveritySuccess, cur.Severity)
	assert.Equal(t, DefaultDuration, cur.Duration)
	assert.Equal(t, epoch, cur.CreatedAt)
	assert.Len(t, rec.shown, 1)
}

func TestNotifyVisibleUntilDurationElapses(t *testing.T) {
	c, clk, rec := setupCenter(t)

	c.Notify("hello", SeverityInfo, 5000*time.Millisecond)

	clk.Advance(100 * time.Millisecond)
	_, ok := c.Current()
	assert.True(t, ok, "visible at t=100ms")

	clk.Advance(4901 * time.Millisecond)
	_, ok = c.Current()
	assert.False(t, ok, "gone at t=5001ms")

	require.Len(t, rec.closed, 1)
	assert.Equal(t, ReasonExpired, rec.closed[0].Reason)
}

func TestNotifySupersedesPrevious(t *testing.T) {
	c, clk, rec := setupCenter(t)

	first := c.Notify("first", SeverityInfo, 5*time.Second)
	clk.Advance(time.Second)
	second := c.Notify("second", SeverityWarning, 5*time.Second)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
	assert.Equal(t, 1, rec.visibleCount())

	require.Len(t, rec.closed, 1)
	assert.Equal(t, closeEvent{ID: first.ID, Reason: ReasonSuperseded}, rec.closed[0])

	// The first banner's timer was cancelled and must not clear the second.
	clk.Advance(4500 * time.Millisecond)
	cur, ok = c.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)

	clk.Advance(time.Second)
	_, ok = c.Current()
	assert.False(t, ok)
}

func TestDismissCancelsTimer(t *testing.T) {
	c, clk, rec := setupCenter(t)

	n := c.Notify("bye", SeverityInfo, 5*time.Second)
	require.True(t, c.Dismiss(n.ID))
	assert.Equal(t, 0, clk.Pending())

	_, ok := c.Current()
	assert.False(t, ok)
	assert.False(t, c.Dismiss(n.ID))

	clk.Advance(10 * time.Second)
	require.Len(t, rec.closed, 1)
	assert.Equal(t, ReasonDismissed, rec.closed[0].Reason)
}

func TestDismissStaleIDIsNoop(t *testing.T) {
	c, _, _ := setupCenter(t)

	old := c.Notify("old", SeverityInfo, 0)
	latest := c.Notify("new", SeverityInfo, 0)

	assert.False(t, c.Dismiss(old.ID))
	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, latest.ID, cur.ID)
}

func TestEmptyMessageStillDisplayed(t *testing.T) {
	c, _, rec := setupCenter(t)

	c.Notify("", SeverityInfo, 0)

	require.GreaterOrEqual(t, len(rec.shown), 1)
	assert.Equal(t, 1, rec.visibleCount())
	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "", cur.Message)
}

func TestUnknownSeverityFallsBackToInfo(t *testing.T) {
	c, _, _ := setupCenter(t)

	n := c.Notify("x", Severity("purple"), 0)
	assert.Equal(t, SeverityInfo, n.Severity)
}

func TestDefaultDurationOption(t *testing.T) {
	clk := clock.NewManual(epoch)
	c := NewCenter(WithClock(clk), WithDefaultDuration(2*time.Second))

	c.Notify("short", SeveritySuccess, 0)
	clk.Advance(2001 * time.Millisecond)
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestContainerCreatedLazily(t *testing.T) {
	c := NewCenter(WithClock(clock.NewManual(epoch)))

	c.Notify("<b>disk</b> full", SeverityError, 0)

	region, ok := c.Container().(*Region)
	require.True(t, ok)
	html := region.HTML()
	assert.Contains(t, html, "alert-danger")
	assert.Contains(t, html, "fa-exclamation-triangle")
	assert.Contains(t, html, "&lt;b&gt;disk&lt;/b&gt; full")
	assert.False(t, strings.Contains(html, "<b>"))
}

func TestRegionClearsOnlyMatchingBanner(t *testing.T) {
	r := NewRegion()
	a := Notification{ID: "a", Message: "a", Severity: SeverityInfo}
	b := Notification{ID: "b", Message: "b", Severity: SeverityInfo}

	r.Show(b)
	r.Close(a, ReasonExpired)
	got, ok := r.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)

	r.Close(b, ReasonDismissed)
	_, ok = r.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, r.HTML())
}

func TestRenderersFanOut(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	c := NewCenter(WithClock(clock.NewManual(epoch)), WithRenderer(Renderers{a, b}))

	n := c.Notify("both", SeverityInfo, 0)
	c.Dismiss(n.ID)

	assert.Len(t, a.shown, 1)
	assert.Len(t, b.shown, 1)
	assert.Len(t, a.closed, 1)
	assert.Len(t, b.closed, 1)
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"success": SeveritySuccess,
		"WARN":    SeverityWarning,
		"danger":  SeverityError,
		"error":   SeverityError,
		"":        SeverityInfo,
		"other":   SeverityInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSeverity(in), "input %q", in)
	}
}

func TestConcurrentNotifyKeepsSingleBanner(t *testing.T) {
	rec := newRecorder()
	c := NewCenter(WithRenderer(rec))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Notify("parallel", SeverityInfo, time.Minute)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rec.visibleCount())
	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, rec.shown[len(rec.shown)-1].ID, cur.ID)
}
