// Package view holds the per-page-view state of the portfolio page.
package view

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/particle"
	"github.com/Zachkp/folio/internal/section"
)

// ErrClosed is returned when subscribing to a page that has been closed.
var ErrClosed = errors.New("page view closed")

// Page is the controller of one rendered page. It owns the section tracker,
// the mobile menu flag and the contact form.
type Page struct {
	ID      string
	Tracker *section.Tracker
	Contact *contact.Controller

	particles *particle.Config

	mu       sync.Mutex
	menuOpen bool
	layout   section.Offsets
	lastSeen time.Time
	closed   bool
	cancels  map[int]context.CancelFunc
	nextSub  int
}

// NewPage creates a page view. A nil particles config disables the
// particle stream.
func NewPage(id string, ctrl *contact.Controller, particles *particle.Config) *Page {
	return &Page{
		ID:        id,
		Tracker:   section.NewTracker(),
		Contact:   ctrl,
		particles: particles,
		lastSeen:  time.Now(),
		cancels:   make(map[int]context.CancelFunc),
	}
}

// MenuOpen reports whether the mobile navigation overlay is open.
func (p *Page) MenuOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.menuOpen
}

// ToggleMenu flips the mobile navigation overlay and returns the new value.
func (p *Page) ToggleMenu() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.menuOpen = !p.menuOpen
	return p.menuOpen
}

// Report feeds a scroll position and the rendered section layout to the
// tracker and returns the active section.
func (p *Page) Report(scrollY float64, layout section.Offsets) section.ID {
	p.mu.Lock()
	p.layout = layout
	p.mu.Unlock()

	return p.Tracker.Observe(scrollY, layout)
}

// ScrollTo resolves a navigation target. Unknown targets, and targets
// missing from the last reported layout, are ignored. Otherwise the mobile
// menu is closed and the caller scrolls the browser to the returned section.
func (p *Page) ScrollTo(target string) (section.ID, bool) {
	id, ok := section.Parse(target)
	if !ok {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.layout) > 0 {
		if _, present := p.layout.Lookup(id); !present {
			return "", false
		}
	}
	p.menuOpen = false
	return id, true
}

// Touch records activity on the page.
func (p *Page) Touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = now
}

// LastSeen returns the time of the last activity.
func (p *Page) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Closed reports whether Close has been called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Streaming reports whether an event stream is attached to the page.
func (p *Page) Streaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels) > 0
}

// Close ends every live subscription on the page. It is safe to call more
// than once.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancels := p.cancels
	p.cancels = make(map[int]context.CancelFunc)
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// attach registers cancel to run on Close and returns a detach func.
func (p *Page) attach(cancel context.CancelFunc) (detach func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	id := p.nextSub
	p.nextSub++
	p.cancels[id] = cancel

	return func() {
		p.mu.Lock()
		delete(p.cancels, id)
		// idle time counts from the end of the stream
		p.lastSeen = time.Now()
		p.mu.Unlock()
	}, nil
}
