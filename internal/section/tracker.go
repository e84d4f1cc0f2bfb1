package section

import "sync"

// Tracker holds the active section for one page view.
type Tracker struct {
	mu     sync.Mutex
	active ID
	subs   map[int]func(ID)
	nextID int
}

// NewTracker returns a tracker whose active section is Home.
func NewTracker() *Tracker {
	return &Tracker{
		active: Home,
		subs:   make(map[int]func(ID)),
	}
}

// Active returns the current active section.
func (t *Tracker) Active() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Observe recomputes the active section for the given scroll offset.
// When no section matches, the previous value is kept.
func (t *Tracker) Observe(scrollY float64, layout Layout) ID {
	id, ok := Locate(scrollY, layout)

	t.mu.Lock()
	if !ok || id == t.active {
		active := t.active
		t.mu.Unlock()
		return active
	}
	t.active = id
	subs := make([]func(ID), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
	return id
}

// Subscribe registers fn to be called whenever the active section changes.
// The returned function removes the subscription.
func (t *Tracker) Subscribe(fn func(ID)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}
