package content

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// Watch reloads the profile at path whenever the file changes and passes
// each valid reload to onChange. A file that fails to load is logged and
// the previous profile stays in use. Watch blocks until ctx ends.
func Watch(ctx context.Context, path string, onChange func(*Profile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create content watcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			zlog.Error().Err(err).Msg("Content watcher close error")
		}
	}()

	// editors replace files by rename, so watch the directory
	name := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(name)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("Content watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			profile, err := Load(path)
			if err != nil {
				zlog.Warn().Err(err).Str("path", path).Msg("Ignoring invalid content file")
				continue
			}
			zlog.Info().Str("path", path).Msg("Content reloaded")
			onChange(profile)
		}
	}
}
