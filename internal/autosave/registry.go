package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry holds the controllers of every auto-saved form on a page
type Registry struct {
	mu    sync.RWMutex
	forms map[string]*Controller
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]*Controller)}
}

// Add registers a controller under its form id
func (r *Registry) Add(c *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.forms[c.ID()]; exists {
		return fmt.Errorf("autosave: form %s already registered", c.ID())
	}
	r.forms[c.ID()] = c
	r.order = append(r.order, c.ID())
	return nil
}

// Get returns the controller for a form id
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.forms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, id)
	}
	return c, nil
}

// All returns controllers in registration order
func (r *Registry) All() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Controller, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.forms[id])
	}
	return out
}

// BeforeUnload prompts once if any form is dirty
func (r *Registry) BeforeUnload(p Prompter) bool {
	for _, c := range r.All() {
		if c.BeforeUnload(p) {
			return true
		}
	}
	return false
}

// FlushAll flushes every form, joining the errors
func (r *Registry) FlushAll(ctx context.Context) error {
	var errs []error
	for _, c := range r.All() {
		if err := c.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("form %s: %w", c.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Close tears down every controller
func (r *Registry) Close() {
	for _, c := range r.All() {
		c.Close()
	}
}
