// Package scan orchestrates batch scans across the configured directories.
// One batch runs at a time; directories are processed sequentially so that
// progress shows a single current path with strictly increasing completion,
// and so the resource-heavy gateway calls never fan out unbounded.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhall/armory/internal/cache"
	"github.com/voxhall/armory/internal/event"
	"github.com/voxhall/armory/internal/gamedata"
	"github.com/voxhall/armory/internal/registry"
)

// Precondition errors reported by scan operations.
var (
	ErrScanInProgress     = errors.New("a scan is already in progress")
	ErrNoValidDirectories = errors.New("no valid active directories to scan")
)

// DirectorySource is the registry view the coordinator needs.
type DirectorySource interface {
	ValidDirectories() []registry.Entry
	Get(id string) (registry.Entry, bool)
	RecordScanSuccess(ctx context.Context, id string, weaponCount, itemCount int, at time.Time) error
	RecordScanFailure(ctx context.Context, id, message string) error
}

// Gateway performs the content scans for one directory.
type Gateway interface {
	ScanWeapons(ctx context.Context, path string) (*gamedata.WeaponScanResult, error)
	ScanItems(ctx context.Context, path string) (*gamedata.ItemScanResult, error)
}

// Coordinator owns the batch scan state machine. It is the only writer of
// the Progress singleton.
type Coordinator struct {
	source   DirectorySource
	gateway  Gateway
	cache    *cache.Store
	logger   *slog.Logger
	eventBus *event.Bus
	history  *History

	mu       sync.Mutex
	progress Progress
	cancel   context.CancelFunc // non-nil while a batch is running
}

// NewCoordinator creates a scan coordinator in the idle state.
func NewCoordinator(source DirectorySource, gateway Gateway, cacheStore *cache.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		source:  source,
		gateway: gateway,
		cache:   cacheStore,
		logger:  logger.With(slog.String("component", "scan-coordinator")),
		progress: Progress{
			State:  StateIdle,
			Errors: map[string]string{},
		},
	}
}

// SetEventBus sets the bus progress updates are announced on.
func (c *Coordinator) SetEventBus(bus *event.Bus) {
	c.eventBus = bus
}

// SetHistory sets the recorder finished batches are written to.
func (c *Coordinator) SetHistory(h *History) {
	c.history = h
}

// RunAll starts a batch over every eligible directory, snapshotted at call
// time. It returns the initial progress immediately; the batch continues in
// the background and outlives the caller's request.
func (c *Coordinator) RunAll(ctx context.Context) (Progress, error) {
	eligible := c.source.ValidDirectories()
	if len(eligible) == 0 {
		return Progress{}, ErrNoValidDirectories
	}
	return c.start(ctx, eligible)
}

// RunOne starts a batch containing the single directory id. The entry must
// be valid; it does not need to be active.
func (c *Coordinator) RunOne(ctx context.Context, id string) (Progress, error) {
	entry, ok := c.source.Get(id)
	if !ok {
		return Progress{}, registry.ErrNotFound
	}
	if entry.Status != registry.StatusValid {
		return Progress{}, ErrNoValidDirectories
	}
	return c.start(ctx, []registry.Entry{entry})
}

// Cancel requests cancellation of the running batch. It is cooperative:
// the directory currently in flight finishes (or fails) first, and results
// already merged stay in the cache.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Status returns a snapshot of the current or most recent batch progress.
func (c *Coordinator) Status() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.snapshot()
}

func (c *Coordinator) start(ctx context.Context, entries []registry.Entry) (Progress, error) {
	c.mu.Lock()
	if c.progress.State == StateScanning {
		c.mu.Unlock()
		return Progress{}, ErrScanInProgress
	}

	now := time.Now().UTC()
	c.progress = Progress{
		Total:     len(entries),
		State:     StateScanning,
		Errors:    map[string]string{},
		StartedAt: &now,
	}

	// The batch must not die with the triggering request, so cancellation
	// is detached from the caller's context and owned by Cancel.
	batchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	snapshot := c.progress.snapshot()
	c.mu.Unlock()

	go c.run(batchCtx, entries)

	return snapshot, nil
}

func (c *Coordinator) run(ctx context.Context, entries []registry.Entry) {
	c.logger.Info("batch scan started", slog.Int("directories", len(entries)))

	var weaponTotal, itemTotal int
	for _, entry := range entries {
		c.update(func(p *Progress) { p.CurrentPath = entry.Path })

		weapons, items, err := c.scanDirectory(ctx, entry)
		if err != nil {
			c.update(func(p *Progress) { p.Errors[entry.Path] = err.Error() })
			if rerr := c.source.RecordScanFailure(context.WithoutCancel(ctx), entry.ID, err.Error()); rerr != nil {
				c.logger.Error("recording scan failure", "path", entry.Path, "error", rerr)
			}
			c.logger.Warn("directory scan failed", slog.String("path", entry.Path), slog.Any("error", err))
		} else {
			weaponTotal += weapons
			itemTotal += items
		}

		c.update(func(p *Progress) { p.Completed++ })

		// Cooperative cancellation, checked at the directory boundary only.
		if ctx.Err() != nil {
			c.finish(StateCancelled, weaponTotal, itemTotal)
			return
		}
	}

	c.mu.Lock()
	failed := len(c.progress.Errors)
	c.mu.Unlock()

	if failed == 0 {
		c.finish(StateCompleted, weaponTotal, itemTotal)
	} else {
		c.finish(StatePartial, weaponTotal, itemTotal)
	}
}

// scanDirectory runs both gateway calls for one directory and merges the
// results. The in-flight calls are never preempted by Cancel, so a
// directory either merges completely or not at all.
func (c *Coordinator) scanDirectory(ctx context.Context, entry registry.Entry) (int, int, error) {
	// Detached so an in-flight directory completes even after Cancel.
	callCtx := context.WithoutCancel(ctx)

	weapons, err := c.gateway.ScanWeapons(callCtx, entry.Path)
	if err != nil {
		return 0, 0, fmt.Errorf("scanning weapons: %w", err)
	}
	items, err := c.gateway.ScanItems(callCtx, entry.Path)
	if err != nil {
		return 0, 0, fmt.Errorf("scanning items: %w", err)
	}

	// Upsert: this directory's records replace its previous ones and
	// nothing else.
	c.cache.PutWeapons(entry.ID, weapons.Weapons)
	c.cache.PutItems(entry.ID, items.Items)

	now := time.Now().UTC()
	if err := c.source.RecordScanSuccess(callCtx, entry.ID, len(weapons.Weapons), len(items.Items), now); err != nil {
		c.logger.Error("recording scan success", "path", entry.Path, "error", err)
	}

	c.logger.Debug("directory scanned",
		slog.String("path", entry.Path),
		slog.Int("weapons", len(weapons.Weapons)),
		slog.Int("items", len(items.Items)),
	)
	return len(weapons.Weapons), len(items.Items), nil
}

// update applies fn to the progress under the lock and publishes the new
// snapshot, keeping observed updates in the exact order they are produced.
func (c *Coordinator) update(fn func(*Progress)) {
	c.mu.Lock()
	fn(&c.progress)
	snapshot := c.progress.snapshot()
	c.mu.Unlock()

	c.publishProgress(snapshot)
}

func (c *Coordinator) finish(state string, weaponTotal, itemTotal int) {
	c.mu.Lock()
	now := time.Now().UTC()
	c.progress.State = state
	c.progress.CurrentPath = ""
	c.progress.CompletedAt = &now
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	snapshot := c.progress.snapshot()
	c.mu.Unlock()

	if c.history != nil {
		if err := c.history.Record(context.Background(), snapshot, weaponTotal, itemTotal); err != nil {
			c.logger.Error("recording scan history", "error", err)
		}
	}

	if c.eventBus != nil {
		c.eventBus.Publish(event.Event{
			Type: event.ScanCompleted,
			Data: map[string]any{
				"state":     snapshot.State,
				"total":     snapshot.Total,
				"completed": snapshot.Completed,
				"errors":    len(snapshot.Errors),
			},
		})
	}

	c.logger.Info("batch scan finished",
		slog.String("state", state),
		slog.Int("completed", snapshot.Completed),
		slog.Int("total", snapshot.Total),
		slog.Int("errors", len(snapshot.Errors)),
	)
}

func (c *Coordinator) publishProgress(p Progress) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(event.Event{
		Type: event.ScanProgressed,
		Data: map[string]any{
			"state":        p.State,
			"total":        p.Total,
			"completed":    p.Completed,
			"current_path": p.CurrentPath,
		},
	})
}
