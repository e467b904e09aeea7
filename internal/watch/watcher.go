// Package watch re-runs a callback whenever the watched task directories
// change, and on a periodic refresh.
package watch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ntuplesub/internal/logging"
)

// Reason tells the callback why it was triggered.
type Reason string

const (
	ReasonChange  Reason = "change"
	ReasonRefresh Reason = "refresh"
)

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches directories for changes. Bursts of events are debounced
// into a single trigger.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dirs        []string
	watched     map[string]bool
	onChange    func(Reason)
	debounceDur time.Duration
	refresh     time.Duration
	pending     bool
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher over dirs. A refresh of zero disables periodic
// triggers.
func New(dirs []string, debounce, refresh time.Duration, onChange func(Reason)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		watcher:     w,
		dirs:        dirs,
		watched:     make(map[string]bool),
		onChange:    onChange,
		debounceDur: debounce,
		refresh:     refresh,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.addMissing()
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
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
		logging.WatchWarn("Error closing watcher: %v", err)
	}
}

// Done is closed when the loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a snapshot of the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// addMissing watches the directories that exist and are not watched yet.
// Log directories only appear once the first job has run.
func (w *Watcher) addMissing() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range w.dirs {
		if w.watched[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			logging.WatchWarn("Failed to watch %s: %v", dir, err)
			continue
		}
		w.watched[dir] = true
		logging.WatchDebug("Watching %s", dir)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(w.debounceDur / 5)
	defer debounceTicker.Stop()

	var refreshC <-chan time.Time
	if w.refresh > 0 {
		refreshTicker := time.NewTicker(w.refresh)
		defer refreshTicker.Stop()
		refreshC = refreshTicker.C
	}

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
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastEvent = time.Now()
			w.stats.Events++
			w.stats.LastEventPath = event.Name
			w.stats.LastEventTime = w.lastEvent
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.mu.Lock()
			fire := w.pending && time.Since(w.lastEvent) >= w.debounceDur
			if fire {
				w.pending = false
			}
			w.mu.Unlock()
			if fire {
				w.trigger(ReasonChange)
			}

		case <-refreshC:
			w.addMissing()
			w.trigger(ReasonRefresh)
		}
	}
}

func (w *Watcher) trigger(reason Reason) {
	w.mu.Lock()
	w.stats.Triggers++
	w.mu.Unlock()
	logging.WatchDebug("Trigger: %s", reason)
	if w.onChange != nil {
		w.onChange(reason)
	}
}
