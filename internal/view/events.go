package view

import (
	"context"
	"sync"

	"github.com/Zachkp/folio/internal/particle"
	"github.com/Zachkp/folio/internal/section"
)

// EventKind names an event on the page stream.
type EventKind string

const (
	EventSection         EventKind = "section"
	EventParticle        EventKind = EventKind(particle.Spawned)
	EventParticleExpired EventKind = EventKind(particle.Expired)
)

// Event is pushed to the browser over the page stream.
type Event struct {
	Kind     EventKind
	Section  section.ID
	Particle particle.Particle
}

// Data returns the payload sent with the event.
func (e Event) Data() any {
	if e.Kind == EventSection {
		return map[string]string{"active": e.Section.String()}
	}
	return e.Particle
}

const eventBuffer = 32

// Events subscribes to the page: active-section changes and, when enabled,
// the particle spawner. Both subscriptions end together when ctx ends or
// the page is closed, after which the channel is closed. Events are dropped
// when the consumer falls behind.
func (p *Page) Events(ctx context.Context) (<-chan Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	detach, err := p.attach(cancel)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Event, eventBuffer)
	var (
		mu   sync.Mutex
		done bool
	)
	send := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		select {
		case out <- ev:
		default:
		}
	}

	unsubscribe := p.Tracker.Subscribe(func(id section.ID) {
		send(Event{Kind: EventSection, Section: id})
	})

	var wg sync.WaitGroup
	if p.particles != nil {
		spawner := particle.NewSpawner(*p.particles)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = spawner.Run(ctx, func(ev particle.Event) {
				send(Event{Kind: EventKind(ev.Kind), Particle: ev.Particle})
			})
		}()
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
		wg.Wait()
		detach()

		mu.Lock()
		done = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}
