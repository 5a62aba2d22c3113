package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const settleDelay = 500 * time.Millisecond

// Switch is the part of an attached hook that can change while it runs.
type Switch interface {
	SetEnabled(enabled bool) error
}

// Watcher follows a config file and drives a Switch from its hook.enabled
// setting. Everything else in the file is fixed at attach time.
type Watcher struct {
	path    string
	sw      Switch
	log     *zap.Logger
	settle  time.Duration
	enabled bool

	fsw       *fsnotify.Watcher
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts following the file at path. enabled is the state sw is
// already in; sw is only called when a reload changes it. The directory is
// watched rather than the file so that editors which replace the file on
// save are still seen.
func Watch(path string, sw Switch, enabled bool, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		sw:      sw,
		log:     log,
		settle:  settleDelay,
		enabled: enabled,
		fsw:     fsw,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()

	log.Info("watching config", zap.String("path", path), zap.Bool("enabled", enabled))
	return w, nil
}

// Close stops the watcher. It returns after any reload in flight has
// finished, so sw is never called once Close returns.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.quit)
		err = w.fsw.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	// Saves often arrive as several events; reload once they stop.
	timer := time.NewTimer(w.settle)
	timer.Stop()
	defer timer.Stop()
	var settled <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.settle)
			settled = timer.C

		case <-settled:
			settled = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch config", zap.Error(err))

		case <-w.quit:
			return
		}
	}
}

// reload reads the file and flips the switch if hook.enabled changed. A file
// that fails to load or validate leaves the switch alone.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error("reload config", zap.Error(err))
		return
	}
	if cfg.Hook.Enabled == w.enabled {
		w.log.Debug("config reloaded, hook unchanged", zap.Bool("enabled", w.enabled))
		return
	}

	if err := w.sw.SetEnabled(cfg.Hook.Enabled); err != nil {
		w.log.Warn("apply hook.enabled", zap.Bool("enabled", cfg.Hook.Enabled), zap.Error(err))
		return
	}
	w.enabled = cfg.Hook.Enabled
	w.log.Info("hook toggled by config", zap.Bool("enabled", w.enabled))
}
