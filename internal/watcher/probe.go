package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voxhall/armory/internal/registry"
)

// ProbeCache caches the results of fsnotify support probes per directory path.
type ProbeCache struct {
	mu      sync.RWMutex
	results map[string]bool
}

// NewProbeCache creates an empty probe cache.
func NewProbeCache() *ProbeCache {
	return &ProbeCache{
		results: make(map[string]bool),
	}
}

// Get returns whether fsnotify is supported for the given path.
// The second return value is false if the path has not been probed.
func (pc *ProbeCache) Get(path string) (supported bool, ok bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	supported, ok = pc.results[path]
	return
}

// Set stores a probe result for the given path.
func (pc *ProbeCache) Set(path string, supported bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.results[path] = supported
}

// ProbeFSNotify tests whether fsnotify delivers events for the given path.
// It creates a temporary directory inside path, watches for the Create event,
// and returns true if the event arrives within the timeout.
func ProbeFSNotify(path string, timeout time.Duration) bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(path); err != nil {
		return false
	}

	probeName := fmt.Sprintf(".armory_probe_%d", rand.Int63()) //nolint:gosec // G404: not security-sensitive
	probeDir := filepath.Join(path, probeName)

	if err := os.Mkdir(probeDir, 0o750); err != nil {
		return false
	}
	defer os.Remove(probeDir) //nolint:errcheck

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return false
			}
			if ev.Has(fsnotify.Create) && filepath.Base(ev.Name) == probeName {
				return true
			}
		case <-w.Errors:
			return false
		case <-timer.C:
			return false
		}
	}
}

// ProbeAll probes every registered directory path and populates the cache.
// Called synchronously at startup before the watcher goroutine starts.
func (pc *ProbeCache) ProbeAll(ctx context.Context, entries []registry.Entry, logger *slog.Logger) {
	for _, e := range entries {
		info, err := os.Stat(e.Path)
		if err != nil || !info.IsDir() {
			pc.Set(e.Path, false)
			logger.Warn("directory not accessible for probe", "path", e.Path)
			continue
		}

		supported := ProbeFSNotify(e.Path, 2*time.Second)
		pc.Set(e.Path, supported)
		logger.Info("fsnotify probe result",
			"path", e.Path,
			"supported", supported,
		)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
