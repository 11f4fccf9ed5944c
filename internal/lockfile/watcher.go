package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type EventType string

const (
	EventAvailable EventType = "Available"
	EventRemoved   EventType = "Removed"
)

type Event struct {
	Type       EventType
	Descriptor Descriptor // set for EventAvailable
}

// Watch reports lockfile lifecycle changes for path. An Available event is
// sent right away when the file already exists. The channel is closed once
// ctx ends or the underlying watcher stops.
func Watch(ctx context.Context, path string, logger *zap.Logger) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	log := logger.Named("lockfile").With(zap.String("path", path))
	out := make(chan Event, 10)

	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()

		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if _, err := os.Stat(path); err == nil {
			if ev, ok := readAvailable(path, log); ok && !send(ev) {
				return
			}
		}

		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					log.Error("lockfile watcher stopped unexpectedly")
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}

				switch {
				case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
					// game client is running
					ev, ok := readAvailable(path, log)
					if ok && !send(ev) {
						return
					}
				case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
					// game client stopped
					if !send(Event{Type: EventRemoved}) {
						return
					}
				default:
					log.Debug("ignoring lockfile event", zap.Stringer("op", event.Op))
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					log.Error("lockfile watcher error channel closed")
					return
				}
				log.Warn("lockfile watcher error", zap.Error(err))
			}
		}
	}()

	return out, nil
}

func readAvailable(path string, log *zap.Logger) (Event, bool) {
	d, err := ReadFile(path)
	if err != nil {
		log.Error("could not load lockfile", zap.Error(err))
		return Event{}, false
	}
	return Event{Type: EventAvailable, Descriptor: d}, true
}
