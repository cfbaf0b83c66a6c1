// Package watch reruns the screening pipeline when new assemblies land in
// the input directory.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Trigger is called with the settled paths once a burst of events has been
// quiet for the debounce interval. Calls never overlap.
type Trigger func(ctx context.Context, paths []string)

// Config configures a Watcher.
type Config struct {
	Dir      string
	Suffix   string
	Debounce time.Duration // quiet period before triggering, default 2s
	Tick     time.Duration // how often pending events are checked, default 100ms
	Logger   *zap.Logger
}

// Stats counts watcher activity.
type Stats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher debounces file events in one directory into pipeline triggers.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	suffix      string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	trigger     Trigger
	logger      *zap.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// ErrNoTrigger is returned by New when trigger is nil.
var ErrNoTrigger = errors.New("watch: trigger is required")

// New creates a watcher. Call Start to begin watching.
func New(cfg Config, trigger Trigger) (*Watcher, error) {
	if trigger == nil {
		return nil, ErrNoTrigger
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		dir:         cfg.Dir,
		suffix:      cfg.Suffix,
		debounceMap: make(map[string]time.Time),
		debounceDur: cfg.Debounce,
		tick:        cfg.Tick,
		trigger:     trigger,
		logger:      cfg.Logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
		return err
	}
	w.logger.Info("watching directory", zap.String("dir", w.dir), zap.Duration("debounce", w.debounceDur))

	go w.run(ctx)
	return nil
}

// Stop ends watching and waits for an in-flight trigger to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("error closing watcher", zap.Error(err))
	}
	w.logger.Info("watcher stopped")
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(filepath.Base(event.Name), w.suffix) {
		return
	}
	// Rename reports the old name; the new name arrives as Create.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.logger.Debug("assembly event", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	now := time.Now()
	w.mu.Lock()
	w.debounceMap[event.Name] = now
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = now
	w.mu.Unlock()
}

// processDebounced fires the trigger once every pending path has been quiet
// for the debounce interval, so a batch copy produces a single rerun.
func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	if len(w.debounceMap) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, t := range w.debounceMap {
		if now.Sub(t) < w.debounceDur {
			w.mu.Unlock()
			return
		}
	}
	paths := make([]string, 0, len(w.debounceMap))
	for p := range w.debounceMap {
		paths = append(paths, p)
	}
	w.debounceMap = make(map[string]time.Time)
	w.stats.Triggers++
	w.mu.Unlock()

	sort.Strings(paths)
	w.logger.Info("new assemblies settled, rerunning", zap.Int("files", len(paths)))
	w.trigger(ctx, paths)
}
