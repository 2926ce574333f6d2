package notify

import (
	"bytes"
	"html/template"
	"sync"
)

var bannerTemplate = template.Must(template.New("banner").Parse(
	`<div class="alert {{.Style.Class}} alert-dismissible fade show slide-in" role="alert" data-id="{{.ID}}">` +
		`<i class="fas fa-{{.Style.Icon}} me-2"></i>{{.Message}}` +
		`<button type="button" class="btn-close" data-bs-dismiss="alert"></button></div>`,
))

// Region is an in-memory rendering target holding the visible banner
type Region struct {
	mu      sync.RWMutex
	current *Notification
	html    string
}

// NewRegion creates an empty region
func NewRegion() *Region {
	return &Region{}
}

// Show replaces the region's content with n
func (r *Region) Show(n Notification) {
	html := RenderHTML(n)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &n
	r.html = html
}

// Close empties the region if it still shows n
func (r *Region) Close(n Notification, _ CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.ID == n.ID {
		r.current = nil
		r.html = ""
	}
}

// Snapshot returns the banner the region currently shows
func (r *Region) Snapshot() (Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return Notification{}, false
	}
	return *r.current, true
}

// HTML returns the rendered markup, empty when nothing is shown
func (r *Region) HTML() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.html
}

// RenderHTML renders a dismissible alert for n with the message escaped
func RenderHTML(n Notification) string {
	var buf bytes.Buffer
	err := bannerTemplate.Execute(&buf, struct {
		ID      string
		Message string
		Style   Style
	}{
		ID:      n.ID,
		Message: n.Message,
		Style:   StyleFor(n.Severity),
	})
	if err != nil {
		return ""
	}
	return buf.String()
}
