// Package cache holds scanned game data in memory, keyed by content type
// and tagged with the source directory id. Mutations are directory-scoped
// upserts: a new scan of a directory replaces everything previously cached
// for that directory and nothing else.
package cache

import (
	"sort"
	"sync"

	"github.com/voxhall/armory/internal/gamedata"
)

// Store is the in-memory result cache.
type Store struct {
	mu      sync.RWMutex
	weapons map[string][]gamedata.WeaponRecord // directory id -> records
	items   map[string][]gamedata.ItemRecord
}

// NewStore creates an empty result cache.
func NewStore() *Store {
	return &Store{
		weapons: make(map[string][]gamedata.WeaponRecord),
		items:   make(map[string][]gamedata.ItemRecord),
	}
}

// PutWeapons replaces all weapon records tagged with directoryID. Each
// record is tagged before storage.
func (s *Store) PutWeapons(directoryID string, records []gamedata.WeaponRecord) {
	tagged := make([]gamedata.WeaponRecord, len(records))
	for i, r := range records {
		r.SourceDirectoryID = directoryID
		tagged[i] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.weapons[directoryID] = tagged
}

// PutItems replaces all item records tagged with directoryID.
func (s *Store) PutItems(directoryID string, records []gamedata.ItemRecord) {
	tagged := make([]gamedata.ItemRecord, len(records))
	for i, r := range records {
		r.SourceDirectoryID = directoryID
		tagged[i] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[directoryID] = tagged
}

// RemoveDirectory drops every cached record tagged with directoryID.
func (s *Store) RemoveDirectory(directoryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.weapons, directoryID)
	delete(s.items, directoryID)
}

// Weapons returns all cached weapons across directories, ordered by key.
func (s *Store) Weapons() []gamedata.WeaponRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []gamedata.WeaponRecord
	for _, recs := range s.weapons {
		out = append(out, recs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].SourceDirectoryID < out[j].SourceDirectoryID
	})
	return out
}

// Items returns all cached items across directories, ordered by key.
func (s *Store) Items() []gamedata.ItemRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []gamedata.ItemRecord
	for _, recs := range s.items {
		out = append(out, recs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].SourceDirectoryID < out[j].SourceDirectoryID
	})
	return out
}

// WeaponsByDirectory returns the cached weapons for one directory.
func (s *Store) WeaponsByDirectory(directoryID string) []gamedata.WeaponRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.weapons[directoryID]
	out := make([]gamedata.WeaponRecord, len(recs))
	copy(out, recs)
	return out
}

// ItemsByDirectory returns the cached items for one directory.
func (s *Store) ItemsByDirectory(directoryID string) []gamedata.ItemRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.items[directoryID]
	out := make([]gamedata.ItemRecord, len(recs))
	copy(out, recs)
	return out
}

// HasDirectory reports whether any record is cached for directoryID.
func (s *Store) HasDirectory(directoryID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, w := s.weapons[directoryID]
	_, i := s.items[directoryID]
	return w || i
}
