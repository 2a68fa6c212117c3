package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/framekit/engine/core"
)

// Watcher reloads a config file whenever it is written or replaced. Editors
// often save by renaming over the original, so the parent directory is
// watched rather than the file itself.
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher

	Reloaded chan *Config
	Errors   chan error

	done chan struct{}
	stop chan struct{}
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "config watcher")
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, errors.Wrapf(err, "watch `%s`", filepath.Dir(abs))
	}

	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		Reloaded: make(chan *Config, 1),
		Errors:   make(chan error, 1),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher: %s", err.Error())
			w.deliverError(err)

		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// removed between the event and the read; the next create reloads it
		core.LogDebug("config reload skipped: %s", err.Error())
		return
	}
	cfg := Default()
	if err := Decode(data, cfg); err != nil {
		err = errors.Wrapf(err, "reload `%s`", w.path)
		core.LogError(err.Error())
		w.deliverError(err)
		return
	}
	core.LogInfo("config `%s` reloaded", w.path)

	// keep only the newest config if nobody has read the previous one
	select {
	case <-w.Reloaded:
	default:
	}
	select {
	case w.Reloaded <- cfg:
	case <-w.stop:
	}
}

func (w *Watcher) deliverError(err error) {
	select {
	case w.Errors <- err:
	default:
		// a pending error is already waiting
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.stop:
		return nil
	default:
	}
	close(w.stop)
	err := w.fsnotify.Close()
	<-w.done
	return err
}
