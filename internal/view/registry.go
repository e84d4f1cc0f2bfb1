package view

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/particle"
)

// DefaultTTL is how long an idle page view is kept.
const DefaultTTL = 30 * time.Minute

// Registry tracks the live page views.
type Registry struct {
	ttl        time.Duration
	newContact func() *contact.Controller
	particles  *particle.Config

	mu    sync.RWMutex
	pages map[string]*Page
}

// NewRegistry creates a registry. newContact builds the contact form
// controller for each new page.
func NewRegistry(ttl time.Duration, newContact func() *contact.Controller, particles *particle.Config) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:        ttl,
		newContact: newContact,
		particles:  particles,
		pages:      make(map[string]*Page),
	}
}

// Open creates and registers a new page view.
func (r *Registry) Open() *Page {
	page := NewPage(uuid.New().String(), r.newContact(), r.particles)

	r.mu.Lock()
	r.pages[page.ID] = page
	r.mu.Unlock()

	return page
}

// Get returns the page with the given id and marks it active.
func (r *Registry) Get(id string) (*Page, bool) {
	r.mu.RLock()
	page, ok := r.pages[id]
	r.mu.RUnlock()

	if ok {
		page.Touch(time.Now())
	}
	return page, ok
}

// Len returns the number of live page views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// Close removes and closes a page view.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	page, ok := r.pages[id]
	delete(r.pages, id)
	r.mu.Unlock()

	if ok {
		page.Close()
	}
	return ok
}

// Sweep closes page views idle since before now-ttl. Views with a
// submission in flight or an attached event stream are kept.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)

	var expired []*Page
	r.mu.Lock()
	for id, page := range r.pages {
		if page.LastSeen().Before(cutoff) && !page.Streaming() && page.Contact.State() == contact.StateIdle {
			expired = append(expired, page)
			delete(r.pages, id)
		}
	}
	r.mu.Unlock()

	for _, page := range expired {
		page.Close()
	}
	return len(expired)
}

// Run sweeps idle views until ctx ends, then closes every view.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				zlog.Debug().Int("closed", n).Msg("Swept idle page views")
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[string]*Page)
	r.mu.Unlock()

	for _, page := range pages {
		page.Close()
	}
}
