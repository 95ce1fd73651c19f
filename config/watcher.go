package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"go.viam.com/painter/logging"
)

// DefaultReloadDelay is how long a config file must stay untouched before it is read again.
const DefaultReloadDelay = 250 * time.Millisecond

// Watcher re-reads a config file after it changes on disk and publishes every version that
// validates. Invalid versions are logged and skipped.
type Watcher struct {
	path      string
	logger    logging.Logger
	fs        *fsnotify.Watcher
	debounced func(func())
	configs   chan *Config

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher starts watching filePath. Bursts of writes within delay cause a single read.
func NewWatcher(filePath string, delay time.Duration, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating config watcher")
	}
	// editors often replace the file rather than write it, which drops a watch on the file itself
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		//nolint:errcheck
		fs.Close()
		return nil, errors.Wrapf(err, "watching %s", abs)
	}
	w := &Watcher{
		path:      abs,
		logger:    logger,
		fs:        fs,
		debounced: debounce.New(delay),
		configs:   make(chan *Config, 1),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Configs delivers each newly read config. Only the latest unread config is kept.
func (w *Watcher) Configs() <-chan *Config {
	return w.configs
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			w.debounced(w.reload)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	cfg, err := Read(w.path, w.logger)
	if err != nil {
		w.logger.Errorw("keeping previous config", "path", w.path, "error", err)
		return
	}
	w.logger.Infow("config changed", "path", w.path)
	select {
	case <-w.configs:
	default:
	}
	select {
	case w.configs <- cfg:
	case <-w.done:
	}
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
