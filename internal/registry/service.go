// Package registry owns the authoritative list of configured scan
// directories and their validation state. It is the single writer of entry
// fields; the persisted settings document is rewritten in full after every
// mutation, so the latest write always supersedes earlier ones.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxhall/armory/internal/cache"
	"github.com/voxhall/armory/internal/event"
	"github.com/voxhall/armory/internal/settings"
	"github.com/voxhall/armory/internal/validate"
)

// settingsKey is where the registry document lives in the settings store.
const settingsKey = "scan.directories"

// CodeDuplicateDirectory is the validation error code returned when an add
// targets an already-registered path.
const CodeDuplicateDirectory = "duplicate_directory"

// Validator checks a path against filesystem and content rules.
type Validator interface {
	Validate(ctx context.Context, path string) validate.Result
}

// Service manages the configured scan directories.
type Service struct {
	validator Validator
	store     *settings.Store
	cache     *cache.Store
	logger    *slog.Logger
	eventBus  *event.Bus

	mu         sync.RWMutex
	entries    []Entry
	selectedID string
	validating map[string]bool // path -> validation in flight
}

// NewService creates a directory registry.
func NewService(validator Validator, store *settings.Store, cacheStore *cache.Store, logger *slog.Logger) *Service {
	return &Service{
		validator:  validator,
		store:      store,
		cache:      cacheStore,
		logger:     logger.With(slog.String("component", "registry")),
		validating: make(map[string]bool),
	}
}

// SetEventBus sets the bus mutations are announced on.
func (s *Service) SetEventBus(bus *event.Bus) {
	s.eventBus = bus
}

// Load reads the persisted document into memory. Entries interrupted
// mid-validation by a crash are reset to pending.
func (s *Service) Load(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, settingsKey)
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}
	if !ok {
		return nil
	}

	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decoding registry document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = doc.Directories
	s.selectedID = doc.SelectedDirectoryID
	for i := range s.entries {
		if s.entries[i].Status == StatusValidating || s.entries[i].Status == StatusPending {
			s.entries[i].Status = StatusPending
		}
	}
	s.logger.Info("registry loaded", slog.Int("directories", len(s.entries)))
	return nil
}

// Add validates path and registers it. A path that fails validation is
// kept as an invalid entry so its error stays visible; it is never
// eligible for scans. Duplicate paths are rejected without a gateway call.
func (s *Service) Add(ctx context.Context, path string) (validate.Result, error) {
	if path == "" {
		return validate.Result{Valid: false, ErrorCode: validate.CodeEmptyPath, Message: "path is empty"}, ErrEmptyPath
	}

	s.mu.Lock()
	if s.hasPathLocked(path) {
		s.mu.Unlock()
		return validate.Result{
			Valid:     false,
			ErrorCode: CodeDuplicateDirectory,
			Message:   fmt.Sprintf("directory %s is already registered", path),
		}, ErrDuplicate
	}
	s.validating[path] = true
	s.mu.Unlock()

	result := s.validator.Validate(ctx, path)

	s.mu.Lock()
	delete(s.validating, path)

	// A concurrent add for the same path may have resolved first.
	if s.hasPathLocked(path) {
		s.mu.Unlock()
		return validate.Result{
			Valid:     false,
			ErrorCode: CodeDuplicateDirectory,
			Message:   fmt.Sprintf("directory %s is already registered", path),
		}, ErrDuplicate
	}

	entry := Entry{
		ID:     uuid.New().String(),
		Path:   path,
		Active: true,
	}
	if result.Valid {
		entry.Status = StatusValid
	} else {
		entry.Status = StatusInvalid
		entry.LastError = result.Message
	}
	s.entries = append(s.entries, entry)
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(event.DirectoryAdded, map[string]any{
		"id":     entry.ID,
		"path":   entry.Path,
		"status": entry.Status,
	})
	s.logger.Info("directory added",
		slog.String("id", entry.ID),
		slog.String("path", path),
		slog.String("status", entry.Status),
	)

	return result, persistErr
}

// Remove deletes the entry and purges every cached record tagged with its
// id.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	removed := s.entries[idx]
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	if s.selectedID == id {
		s.selectedID = ""
	}
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.cache.RemoveDirectory(id)

	s.publish(event.DirectoryRemoved, map[string]any{
		"id":   removed.ID,
		"path": removed.Path,
	})
	s.logger.Info("directory removed", slog.String("id", id), slog.String("path", removed.Path))
	return persistErr
}

// Validate runs the gateway against a path without touching the registry.
// Used to preview a path before adding it.
func (s *Service) Validate(ctx context.Context, path string) validate.Result {
	if path == "" {
		return validate.Result{Valid: false, ErrorCode: validate.CodeEmptyPath, Message: "path is empty"}
	}

	s.mu.Lock()
	s.validating[path] = true
	s.mu.Unlock()

	result := s.validator.Validate(ctx, path)

	s.mu.Lock()
	delete(s.validating, path)
	s.mu.Unlock()

	return result
}

// Revalidate re-runs validation for an existing entry. Unlike Add, an
// entry that turns invalid is kept so the user's configuration survives a
// moved or emptied directory.
func (s *Service) Revalidate(ctx context.Context, id string) (validate.Result, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return validate.Result{}, ErrNotFound
	}
	path := s.entries[idx].Path
	s.entries[idx].Status = StatusValidating
	s.validating[path] = true
	s.mu.Unlock()

	result := s.validator.Validate(ctx, path)

	s.mu.Lock()
	delete(s.validating, path)
	var persistErr error
	var status string
	if idx = s.indexLocked(id); idx >= 0 { // entry may have been removed meanwhile
		if result.Valid {
			s.entries[idx].Status = StatusValid
			s.entries[idx].LastError = ""
		} else {
			s.entries[idx].Status = StatusInvalid
			s.entries[idx].LastError = result.Message
		}
		status = s.entries[idx].Status
		persistErr = s.persistLocked(ctx)
	}
	s.mu.Unlock()

	if status != "" {
		s.publish(event.DirectoryValidated, map[string]any{
			"id":     id,
			"path":   path,
			"status": status,
			"valid":  result.Valid,
		})
	}
	return result, persistErr
}

// ToggleActive flips the entry's active flag. Inactive entries are skipped
// by batch scans but stay in the list and keep their counts.
func (s *Service) ToggleActive(ctx context.Context, id string) (Entry, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Entry{}, ErrNotFound
	}
	s.entries[idx].Active = !s.entries[idx].Active
	entry := s.entries[idx]
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(event.DirectoryUpdated, map[string]any{
		"id":     entry.ID,
		"path":   entry.Path,
		"active": entry.Active,
	})
	return entry, persistErr
}

// SetSelected marks one entry as the UI's selected directory. An empty id
// clears the selection.
func (s *Service) SetSelected(ctx context.Context, id string) error {
	s.mu.Lock()
	if id != "" && s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.selectedID = id
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(event.DirectoryUpdated, map[string]any{"selected_directory_id": id})
	return persistErr
}

// RecordScanSuccess stores the results of a successful scan of the entry.
func (s *Service) RecordScanSuccess(ctx context.Context, id string, weaponCount, itemCount int, at time.Time) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.entries[idx].WeaponCount = weaponCount
	s.entries[idx].ItemCount = itemCount
	s.entries[idx].LastScannedAt = &at
	s.entries[idx].LastError = ""
	entry := s.entries[idx]
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(event.DirectoryUpdated, map[string]any{
		"id":           entry.ID,
		"path":         entry.Path,
		"weapon_count": entry.WeaponCount,
		"item_count":   entry.ItemCount,
	})
	return persistErr
}

// RecordScanFailure stores the error of a failed scan. Counts and the last
// successful scan time are left untouched.
func (s *Service) RecordScanFailure(ctx context.Context, id, message string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.entries[idx].LastError = message
	entry := s.entries[idx]
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(event.DirectoryUpdated, map[string]any{
		"id":         entry.ID,
		"path":       entry.Path,
		"last_error": message,
	})
	return persistErr
}

// Get returns a snapshot of the entry with the given id.
func (s *Service) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.entries[idx], true
	}
	return Entry{}, false
}

// Has reports whether path is already registered (exact match).
func (s *Service) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPathLocked(path)
}

// List returns a snapshot of all entries in configuration order.
func (s *Service) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Selected returns the selected directory id, or "".
func (s *Service) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// ValidDirectories returns the entries eligible for a batch scan: valid
// and active.
func (s *Service) ValidDirectories() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Status == StatusValid && e.Active {
			out = append(out, e)
		}
	}
	return out
}

// TotalWeaponCount sums weapon counts over all entries, inactive included,
// so historical totals are not hidden by deactivation.
func (s *Service) TotalWeaponCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, e := range s.entries {
		total += e.WeaponCount
	}
	return total
}

// TotalItemCount sums item counts over all entries, inactive included.
func (s *Service) TotalItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, e := range s.entries {
		total += e.ItemCount
	}
	return total
}

// Validating returns a snapshot of the paths with a validation in flight.
func (s *Service) Validating() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.validating))
	for k, v := range s.validating {
		out[k] = v
	}
	return out
}

// persistLocked writes the whole document. The caller holds s.mu, so
// writes are strictly serialized and never interleave. On failure the
// in-memory change is kept; the registry favors being correct in memory
// over durable on every write.
func (s *Service) persistLocked(ctx context.Context) error {
	doc := document{Directories: s.entries, SelectedDirectoryID: s.selectedID}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding document: %v", ErrStorage, err)
	}
	if err := s.store.Set(ctx, settingsKey, string(raw)); err != nil {
		s.logger.Error("persisting registry", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *Service) hasPathLocked(path string) bool {
	for _, e := range s.entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

func (s *Service) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) publish(t event.Type, data map[string]any) {
	if s.eventBus != nil {
		s.eventBus.Publish(event.Event{Type: t, Data: data})
	}
}
