// Package watcher keeps directory validation current by observing the
// registered paths on disk. Changes inside a registered directory trigger a
// revalidation of that entry; paths where inotify-style watching does not
// work (network mounts, some containers) fall back to polling.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/voxhall/armory/internal/event"
	"github.com/voxhall/armory/internal/registry"
	"github.com/voxhall/armory/internal/validate"
)

// EntrySource is the registry view the watcher needs.
type EntrySource interface {
	List() []registry.Entry
	Revalidate(ctx context.Context, id string) (validate.Result, error)
}

// Service watches registered directories for filesystem changes and
// revalidates the affected entries.
type Service struct {
	source        EntrySource
	eventBus      *event.Bus
	logger        *slog.Logger
	debounce      time.Duration
	refreshPeriod time.Duration
	pollInterval  time.Duration
	probeCache    *ProbeCache
	revalLimit    rate.Limit

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	watching  map[string]string // directory path -> entry id
	dirty     map[string]struct{}
	limiters  map[string]*rate.Limiter // per-path revalidation throttle
	snapshots map[string]map[string]struct{}
	lastPoll  map[string]time.Time
}

// NewService creates a filesystem watcher over the registered directories.
func NewService(source EntrySource, eventBus *event.Bus, logger *slog.Logger, probeCache *ProbeCache) *Service {
	return &Service{
		source:        source,
		eventBus:      eventBus,
		logger:        logger.With("component", "fs-watcher"),
		debounce:      2 * time.Second,
		refreshPeriod: 5 * time.Minute,
		pollInterval:  time.Minute,
		probeCache:    probeCache,
		revalLimit:    rate.Every(30 * time.Second),
		watching:      make(map[string]string),
		dirty:         make(map[string]struct{}),
		limiters:      make(map[string]*rate.Limiter),
		snapshots:     make(map[string]map[string]struct{}),
		lastPoll:      make(map[string]time.Time),
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetRevalidateLimit overrides the per-path revalidation rate (for testing).
func (s *Service) SetRevalidateLimit(l rate.Limit) {
	s.revalLimit = l
}

// Start blocks until ctx is canceled. It creates an fsnotify watcher over
// the registered directory paths and dispatches revalidations. If fsnotify
// is unavailable, the service still runs with poll-only support.
func (s *Service) Start(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, running poll-only", "error", err)
	} else {
		defer w.Close() //nolint:errcheck
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
	}
	s.refreshPaths()
	s.logger.Info("filesystem watcher starting")

	refreshTicker := time.NewTicker(s.refreshPeriod)
	defer refreshTicker.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	// Debounce timer coalescing bursts of events into one revalidation
	// pass. Starts stopped; reset on each event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	// When fsnotify is unavailable, use nil channels (never receive).
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if w != nil {
		eventCh = w.Events
		errCh = w.Errors
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if s.handleFSEvent(ev) {
				resetTimer(debounceTimer, s.debounce)
			}

		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			s.revalidateDirty(ctx)

		case <-pollTicker.C:
			if s.pollDirectories() {
				resetTimer(debounceTimer, s.debounce)
			}

		case <-refreshTicker.C:
			s.refreshPaths()
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// handleFSEvent marks the owning directory dirty. It reports whether a
// revalidation should be scheduled.
func (s *Service) handleFSEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
		return false
	}

	// Events arrive for direct children of watched roots, or for the root
	// itself when it is removed out from under us.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, root := range []string{filepath.Dir(ev.Name), ev.Name} {
		if _, ok := s.watching[root]; ok {
			s.dirty[root] = struct{}{}
			return true
		}
	}
	return false
}

// revalidateDirty revalidates every entry whose path accumulated changes
// since the last pass. Revalidation is rate limited per path so a noisy
// directory (an unpacking archive, a copy in progress) cannot hammer the
// validator; skipped paths stay dirty for the next pass.
func (s *Service) revalidateDirty(ctx context.Context) {
	s.mu.Lock()
	pending := make(map[string]string, len(s.dirty))
	for path := range s.dirty {
		id, ok := s.watching[path]
		if !ok {
			delete(s.dirty, path)
			continue
		}
		if !s.limiterLocked(path).Allow() {
			continue
		}
		pending[path] = id
		delete(s.dirty, path)
	}
	s.mu.Unlock()

	for path, id := range pending {
		result, err := s.source.Revalidate(ctx, id)
		if err != nil {
			s.logger.Error("revalidation after fs change failed",
				"path", path, "error", err)
			continue
		}
		s.logger.Info("directory revalidated after fs change",
			"path", path, "valid", result.Valid)

		if s.eventBus != nil {
			s.eventBus.Publish(event.Event{
				Type: event.FSChanged,
				Data: map[string]any{
					"directory_id": id,
					"path":         path,
					"valid":        result.Valid,
				},
			})
		}
	}
}

func (s *Service) limiterLocked(path string) *rate.Limiter {
	l, ok := s.limiters[path]
	if !ok {
		l = rate.NewLimiter(s.revalLimit, 1)
		s.limiters[path] = l
	}
	return l
}

// refreshPaths synchronizes the watched and polled path sets with the
// current registry. Paths where the probe says fsnotify does not deliver
// events are polled instead of watched.
func (s *Service) refreshPaths() {
	entries := s.source.List()

	watchWanted := make(map[string]string)
	pollWanted := make(map[string]string)
	for _, e := range entries {
		info, err := os.Stat(e.Path)
		if err != nil || !info.IsDir() {
			continue
		}
		supported := s.watcherAvailable()
		if supported && s.probeCache != nil {
			if ok, probed := s.probeCache.Get(e.Path); probed && !ok {
				supported = false
			}
		}
		if supported {
			watchWanted[e.Path] = e.ID
		} else {
			pollWanted[e.Path] = e.ID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for path := range s.watching {
		if _, ok := watchWanted[path]; !ok {
			if s.watcher != nil {
				if err := s.watcher.Remove(path); err != nil {
					s.logger.Warn("failed to remove watch", "path", path, "error", err)
				}
			}
			delete(s.watching, path)
			delete(s.dirty, path)
			delete(s.limiters, path)
			s.logger.Info("stopped watching directory", "path", path)
		}
	}
	for path, id := range watchWanted {
		if _, ok := s.watching[path]; ok {
			s.watching[path] = id
			continue
		}
		if err := s.watcher.Add(path); err != nil {
			s.logger.Error("failed to watch directory", "path", path, "error", err)
			continue
		}
		s.watching[path] = id
		s.logger.Info("watching directory", "path", path)
	}

	// Polled paths share the watching map so dirty marks resolve to ids.
	for path := range s.snapshots {
		if _, ok := pollWanted[path]; !ok {
			delete(s.snapshots, path)
			delete(s.lastPoll, path)
			if _, watched := watchWanted[path]; !watched {
				delete(s.watching, path)
			}
		}
	}
	for path, id := range pollWanted {
		s.watching[path] = id
		if _, ok := s.snapshots[path]; !ok {
			if snap := readDirSnapshot(path); snap != nil {
				s.snapshots[path] = snap
				s.lastPoll[path] = time.Now()
				s.logger.Info("polling directory", "path", path, "entries", len(snap))
			}
		}
	}
}

func (s *Service) watcherAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil
}

// pollDirectories diffs the polled paths against their last snapshot and
// marks changed ones dirty. It reports whether anything changed.
func (s *Service) pollDirectories() bool {
	s.mu.Lock()
	paths := make([]string, 0, len(s.snapshots))
	for p := range s.snapshots {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	changed := false
	now := time.Now()

	for _, path := range paths {
		s.mu.Lock()
		last := s.lastPoll[path]
		oldSnap := s.snapshots[path]
		s.mu.Unlock()

		if now.Sub(last) < s.pollInterval {
			continue
		}

		newSnap := readDirSnapshot(path)
		if newSnap == nil {
			// The directory itself went away; that is a change too.
			newSnap = map[string]struct{}{}
		}

		if !sameSnapshot(oldSnap, newSnap) {
			s.logger.Info("poll detected change", "path", path)
			s.mu.Lock()
			s.dirty[path] = struct{}{}
			s.mu.Unlock()
			changed = true
		}

		s.mu.Lock()
		s.snapshots[path] = newSnap
		s.lastPoll[path] = now
		s.mu.Unlock()
	}

	return changed
}

func sameSnapshot(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			return false
		}
	}
	return true
}

// readDirSnapshot returns the set of entry names directly under path.
func readDirSnapshot(path string) map[string]struct{} {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	snap := make(map[string]struct{})
	for _, e := range entries {
		snap[e.Name()] = struct{}{}
	}
	return snap
}
