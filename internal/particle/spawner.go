// Package particle drives the decorative particle background.
package particle

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Particle is one floating dot on the hero background.
type Particle struct {
	ID       uint64        `json:"id"`
	Left     float64       `json:"left"` // percent of viewport width
	Size     float64       `json:"size"` // px
	Lifetime time.Duration `json:"-"`
	Born     time.Time     `json:"-"`

	DurationMs int64 `json:"duration_ms"`
}

// EventKind tells whether a particle appeared or went away.
type EventKind string

const (
	Spawned EventKind = "particle"
	Expired EventKind = "particle-expired"
)

// Event is emitted by a Spawner.
type Event struct {
	Kind     EventKind
	Particle Particle
}

// Config controls spawn rate and population.
type Config struct {
	Interval time.Duration
	Lifetime time.Duration
	MaxLive  int
	// Seed makes positions reproducible; zero picks a random seed.
	Seed uint64
}

// DefaultConfig matches the hero animation.
func DefaultConfig() Config {
	return Config{
		Interval: 300 * time.Millisecond,
		Lifetime: 6 * time.Second,
		MaxLive:  30,
	}
}

// Spawner creates a particle every interval and removes it after its lifetime.
type Spawner struct {
	cfg Config
	rng *rand.Rand

	mu     sync.Mutex
	live   []Particle
	nextID uint64
}

// NewSpawner creates a spawner. Zero fields in cfg take DefaultConfig values.
func NewSpawner(cfg Config) *Spawner {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.MaxLive <= 0 {
		cfg.MaxLive = def.MaxLive
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Spawner{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Live returns the number of particles currently alive.
func (s *Spawner) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Run spawns and expires particles until ctx ends, calling emit for each
// change. emit is called from the Run goroutine only.
func (s *Spawner) Run(ctx context.Context, emit func(Event)) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, p := range s.expire(now) {
				emit(Event{Kind: Expired, Particle: p})
			}
			if p, ok := s.spawn(now); ok {
				emit(Event{Kind: Spawned, Particle: p})
			}
		}
	}
}

func (s *Spawner) expire(now time.Time) []Particle {
	s.mu.Lock()
	defer s.mu.Unlock()

	// live is ordered by birth and every particle shares one lifetime
	n := 0
	for n < len(s.live) && !now.Before(s.live[n].Born.Add(s.live[n].Lifetime)) {
		n++
	}
	if n == 0 {
		return nil
	}
	gone := append([]Particle(nil), s.live[:n]...)
	s.live = append(s.live[:0], s.live[n:]...)
	return gone
}

func (s *Spawner) spawn(now time.Time) (Particle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.live) >= s.cfg.MaxLive {
		return Particle{}, false
	}
	s.nextID++
	p := Particle{
		ID:         s.nextID,
		Left:       s.rng.Float64() * 100,
		Size:       2 + s.rng.Float64()*4,
		Lifetime:   s.cfg.Lifetime,
		Born:       now,
		DurationMs: s.cfg.Lifetime.Milliseconds(),
	}
	s.live = append(s.live, p)
	return p, true
}
