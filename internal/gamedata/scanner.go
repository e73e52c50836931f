// Package gamedata scans game/mod directories for weapon and carry-item
// XML definitions.
package gamedata

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scanner parses weapon and item definitions from a game directory tree.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a gamedata scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger.With(slog.String("component", "gamedata"))}
}

// ScanWeapons walks dir for *.weapon files and parses each one. Per-file
// parse failures are collected into the result; only a failure to walk the
// tree itself is returned as an error.
func (s *Scanner) ScanWeapons(ctx context.Context, dir string) (*WeaponScanResult, error) {
	result := &WeaponScanResult{
		Weapons:       []WeaponRecord{},
		Errors:        []string{},
		DuplicateKeys: []string{},
	}

	paths, err := collectFiles(ctx, dir, ".weapon")
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	seen := make(map[string]bool, len(paths))
	dupes := make(map[string]bool)

	for _, path := range paths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rec, err := s.parseWeapon(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		if rec == nil {
			// Base template without its own identity; referenced by
			// concrete definitions via the file attribute.
			continue
		}

		if seen[rec.Key] {
			dupes[rec.Key] = true
		}
		seen[rec.Key] = true
		result.Weapons = append(result.Weapons, *rec)
	}

	for key := range dupes {
		result.DuplicateKeys = append(result.DuplicateKeys, key)
	}
	sort.Strings(result.DuplicateKeys)

	s.logger.Debug("weapon scan finished",
		slog.String("dir", dir),
		slog.Int("weapons", len(result.Weapons)),
		slog.Int("errors", len(result.Errors)),
		slog.Int("duplicates", len(result.DuplicateKeys)),
	)
	return result, nil
}

// ScanItems walks dir for *.carry_item files and parses each one.
func (s *Scanner) ScanItems(ctx context.Context, dir string) (*ItemScanResult, error) {
	result := &ItemScanResult{
		Items:  []ItemRecord{},
		Errors: []string{},
	}

	paths, err := collectFiles(ctx, dir, ".carry_item")
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rec, err := s.parseItem(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		result.Items = append(result.Items, *rec)
	}

	s.logger.Debug("item scan finished",
		slog.String("dir", dir),
		slog.Int("items", len(result.Items)),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// collectFiles returns all files under dir with the given extension, in a
// stable order. Hidden directories are skipped.
func collectFiles(ctx context.Context, dir, ext string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) == ext {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// XML shapes for weapon and item definition files.

type weaponXML struct {
	XMLName xml.Name `xml:"weapon"`
	File    string   `xml:"file,attr"`
	Key     string   `xml:"key,attr"`
	Tag     struct {
		Name string `xml:"name,attr"`
	} `xml:"tag"`
	Specification struct {
		Name          string   `xml:"name,attr"`
		Class         *int     `xml:"class,attr"`
		RetriggerTime *float64 `xml:"retrigger_time,attr"`
		MagazineSize  *int     `xml:"magazine_size,attr"`
		Suppressed    *int     `xml:"suppressed,attr"`
	} `xml:"specification"`
	HudIcon struct {
		Filename string `xml:"filename,attr"`
	} `xml:"hud_icon"`
	Inventory struct {
		Encumbrance *float64 `xml:"encumbrance,attr"`
		Price       *float64 `xml:"price,attr"`
	} `xml:"inventory"`
	Commonness struct {
		CanRespawnWith *int `xml:"can_respawn_with,attr"`
	} `xml:"commonness"`
	Projectile struct {
		Result struct {
			KillProbability *float64 `xml:"kill_probability,attr"`
		} `xml:"result"`
	} `xml:"projectile"`
	Stances []struct {
		StateKey string  `xml:"state_key,attr"`
		Accuracy float64 `xml:"accuracy,attr"`
	} `xml:"stance"`
}

type itemXML struct {
	XMLName xml.Name `xml:"carry_item"`
	Key     string   `xml:"key,attr"`
	Name    string   `xml:"name,attr"`
	Slot    int      `xml:"slot,attr"`
	HudIcon struct {
		Filename string `xml:"filename,attr"`
	} `xml:"hud_icon"`
	Inventory struct {
		Encumbrance *float64 `xml:"encumbrance,attr"`
		Price       *float64 `xml:"price,attr"`
	} `xml:"inventory"`
}

// parseWeapon reads and decodes a single weapon file, resolving one level
// of base-template inheritance via the file attribute. Returns (nil, nil)
// for pure templates that declare no key and no display name of their own.
func (s *Scanner) parseWeapon(path string) (*WeaponRecord, error) {
	w, err := decodeWeapon(path)
	if err != nil {
		return nil, err
	}

	if w.File != "" {
		base, err := decodeWeapon(filepath.Join(filepath.Dir(path), w.File))
		if err != nil {
			s.logger.Warn("base template unreadable", "weapon", path, "base", w.File, "error", err)
		} else {
			mergeWeapon(w, base)
		}
	}

	if w.Key == "" && w.Specification.Name == "" {
		return nil, nil
	}

	key := w.Key
	if key == "" {
		key = filepath.Base(path)
	}

	rec := &WeaponRecord{
		Key:      key,
		Name:     w.Specification.Name,
		Tag:      w.Tag.Name,
		HudIcon:  w.HudIcon.Filename,
		FilePath: path,
	}
	if w.Specification.Class != nil {
		rec.Class = *w.Specification.Class
	}
	if w.Specification.RetriggerTime != nil {
		rec.RetriggerTime = *w.Specification.RetriggerTime
	}
	if w.Specification.MagazineSize != nil {
		rec.MagazineSize = *w.Specification.MagazineSize
	}
	if w.Specification.Suppressed != nil {
		rec.Suppressed = *w.Specification.Suppressed != 0
	}
	if w.Inventory.Encumbrance != nil {
		rec.Encumbrance = *w.Inventory.Encumbrance
	}
	if w.Inventory.Price != nil {
		rec.Price = *w.Inventory.Price
	}
	if w.Commonness.CanRespawnWith != nil {
		rec.CanRespawnWith = *w.Commonness.CanRespawnWith != 0
	}
	if w.Projectile.Result.KillProbability != nil {
		rec.KillProbability = *w.Projectile.Result.KillProbability
	}
	for _, st := range w.Stances {
		rec.StanceAccuracies = append(rec.StanceAccuracies, StanceAccuracy{
			Stance:   st.StateKey,
			Accuracy: st.Accuracy,
		})
	}
	return rec, nil
}

// mergeWeapon fills fields w leaves unset from its base template.
func mergeWeapon(w, base *weaponXML) {
	if w.Tag.Name == "" {
		w.Tag.Name = base.Tag.Name
	}
	if w.Specification.Name == "" {
		w.Specification.Name = base.Specification.Name
	}
	if w.Specification.Class == nil {
		w.Specification.Class = base.Specification.Class
	}
	if w.Specification.RetriggerTime == nil {
		w.Specification.RetriggerTime = base.Specification.RetriggerTime
	}
	if w.Specification.MagazineSize == nil {
		w.Specification.MagazineSize = base.Specification.MagazineSize
	}
	if w.Specification.Suppressed == nil {
		w.Specification.Suppressed = base.Specification.Suppressed
	}
	if w.HudIcon.Filename == "" {
		w.HudIcon.Filename = base.HudIcon.Filename
	}
	if w.Inventory.Encumbrance == nil {
		w.Inventory.Encumbrance = base.Inventory.Encumbrance
	}
	if w.Inventory.Price == nil {
		w.Inventory.Price = base.Inventory.Price
	}
	if w.Commonness.CanRespawnWith == nil {
		w.Commonness.CanRespawnWith = base.Commonness.CanRespawnWith
	}
	if w.Projectile.Result.KillProbability == nil {
		w.Projectile.Result.KillProbability = base.Projectile.Result.KillProbability
	}
	if len(w.Stances) == 0 {
		w.Stances = base.Stances
	}
}

func decodeWeapon(path string) (*weaponXML, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from walking a user-configured directory
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var w weaponXML
	if err := xml.NewDecoder(f).Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding weapon xml: %w", err)
	}
	return &w, nil
}

func (s *Scanner) parseItem(path string) (*ItemRecord, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from walking a user-configured directory
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var it itemXML
	if err := xml.NewDecoder(f).Decode(&it); err != nil {
		return nil, fmt.Errorf("decoding carry_item xml: %w", err)
	}

	key := it.Key
	if key == "" {
		key = filepath.Base(path)
	}

	rec := &ItemRecord{
		Key:      key,
		Name:     it.Name,
		Slot:     it.Slot,
		HudIcon:  it.HudIcon.Filename,
		FilePath: path,
	}
	if it.Inventory.Encumbrance != nil {
		rec.Encumbrance = *it.Inventory.Encumbrance
	}
	if it.Inventory.Price != nil {
		rec.Price = *it.Inventory.Price
	}
	return rec, nil
}
