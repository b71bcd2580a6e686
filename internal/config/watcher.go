package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/wterm/internal/logger"
)

// Watch reloads the store when the config file changes on disk (e.g. a
// hand edit while the server runs) and invokes onChange after each
// successful reload. It returns a stop function.
//
// Saves performed through the store itself also trip the watcher; the
// resulting reload is a harmless no-op. Events are debounced because
// editors commonly produce several writes per save.
func (s *Store) Watch(onChange func()) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors that replace the file on
	// save would otherwise drop the watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var pending *time.Timer
		reload := func() {
			if err := s.Reload(); err != nil {
				logger.Warn("config reload failed: %v", err)
				return
			}
			logger.Debug("config reloaded from %s", s.path)
			if onChange != nil {
				onChange()
			}
		}
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(200*time.Millisecond, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error: %v", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
