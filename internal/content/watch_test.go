package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samProfile = `
name: Sam Lee
initials: SL
title: Backend Engineer
about: ["Hi."]
contact:
  email: sam@example.com
`

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Profile, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(p *Profile) { changes <- p })
	}()

	var got *Profile
	require.Eventually(t, func() bool {
		// rewrite until the watcher is registered and picks it up
		_ = os.WriteFile(path, []byte(samProfile), 0o644)
		select {
		case got = <-changes:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "Sam Lee", got.Name)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samProfile), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Profile, 16)
	go func() { _ = Watch(ctx, path, func(p *Profile) { changes <- p }) }()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		_ = os.WriteFile(path, []byte("initials: X\n"), 0o644)
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case p := <-changes:
		t.Fatalf("unexpected reload: %+v", p)
	default:
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "content.yaml"), func(*Profile) {})
	assert.Error(t, err)
}
