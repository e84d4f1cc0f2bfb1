package particle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) count(kind EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestSpawner_RespectsMaxLive(t *testing.T) {
	s := NewSpawner(Config{Interval: time.Millisecond, Lifetime: time.Hour, MaxLive: 3, Seed: 1})
	c := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, c.emit) }()

	require.Eventually(t, func() bool { return c.count(Spawned) == 3 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, c.count(Spawned))
	assert.Equal(t, 3, s.Live())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSpawner_ExpiresAfterLifetime(t *testing.T) {
	s := NewSpawner(Config{Interval: 2 * time.Millisecond, Lifetime: 10 * time.Millisecond, MaxLive: 2, Seed: 7})
	c := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, c.emit) }()

	require.Eventually(t, func() bool { return c.count(Expired) >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.LessOrEqual(t, s.Live(), 2)
	assert.Greater(t, c.count(Spawned), 2, "expired slots are reused")
}

func TestSpawner_ParticleShape(t *testing.T) {
	s := NewSpawner(Config{Seed: 42})
	p, ok := s.spawn(time.Now())
	require.True(t, ok)

	assert.Equal(t, uint64(1), p.ID)
	assert.GreaterOrEqual(t, p.Left, 0.0)
	assert.Less(t, p.Left, 100.0)
	assert.GreaterOrEqual(t, p.Size, 2.0)
	assert.Less(t, p.Size, 6.0)
	assert.Equal(t, int64(6000), p.DurationMs)
}

func TestSpawner_ExpireOrder(t *testing.T) {
	s := NewSpawner(Config{Lifetime: time.Second, MaxLive: 5, Seed: 3})
	t0 := time.Now()
	s.spawn(t0)
	s.spawn(t0.Add(500 * time.Millisecond))

	gone := s.expire(t0.Add(time.Second))
	require.Len(t, gone, 1)
	assert.Equal(t, uint64(1), gone[0].ID)
	assert.Equal(t, 1, s.Live())
}
