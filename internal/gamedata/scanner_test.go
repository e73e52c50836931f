package gamedata

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const ak47XML = `<weapon file="base_primary.weapon" key="ak47.weapon">
	<tag name="assault" />
	<specification class="0" name="AK47" retrigger_time="0.085" magazine_size="30" suppressed="0" />
	<hud_icon filename="hud_ak47.png" />
	<inventory encumbrance="10.0" price="120.0" />
	<commonness can_respawn_with="1" />
	<projectile><result kill_probability="0.55" /></projectile>
	<stance state_key="running" accuracy="0.5" />
	<stance state_key="crouching" accuracy="0.9" />
</weapon>`

const basePrimaryXML = `<weapon>
	<specification retrigger_time="0.1" magazine_size="20" />
	<hud_icon filename="hud_generic.png" />
</weapon>`

func TestScanWeapons(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "weapons/ak47.weapon", ak47XML)
	writeFile(t, dir, "weapons/base_primary.weapon", basePrimaryXML)

	s := NewScanner(testLogger())
	result, err := s.ScanWeapons(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanWeapons: %v", err)
	}

	if len(result.Weapons) != 1 {
		t.Fatalf("got %d weapons, want 1 (template excluded)", len(result.Weapons))
	}
	w := result.Weapons[0]
	if w.Key != "ak47.weapon" {
		t.Errorf("Key = %q", w.Key)
	}
	if w.Name != "AK47" {
		t.Errorf("Name = %q", w.Name)
	}
	// tag and class are separate fields
	if w.Tag != "assault" {
		t.Errorf("Tag = %q, want assault", w.Tag)
	}
	if w.Class != 0 {
		t.Errorf("Class = %d, want 0", w.Class)
	}
	if w.HudIcon != "hud_ak47.png" {
		t.Errorf("HudIcon = %q", w.HudIcon)
	}
	if w.MagazineSize != 30 {
		t.Errorf("MagazineSize = %d, want 30 (own value beats template)", w.MagazineSize)
	}
	if w.RetriggerTime != 0.085 {
		t.Errorf("RetriggerTime = %v", w.RetriggerTime)
	}
	if w.KillProbability != 0.55 {
		t.Errorf("KillProbability = %v", w.KillProbability)
	}
	if !w.CanRespawnWith {
		t.Error("CanRespawnWith = false, want true")
	}
	if w.Suppressed {
		t.Error("Suppressed = true, want false")
	}
	if w.Encumbrance != 10.0 || w.Price != 120.0 {
		t.Errorf("Encumbrance/Price = %v/%v", w.Encumbrance, w.Price)
	}
	if len(w.StanceAccuracies) != 2 || w.StanceAccuracies[0].Stance != "running" {
		t.Errorf("StanceAccuracies = %v", w.StanceAccuracies)
	}
	if len(result.Errors) != 0 || len(result.DuplicateKeys) != 0 {
		t.Errorf("unexpected errors %v or duplicates %v", result.Errors, result.DuplicateKeys)
	}
}

func TestScanWeaponsTemplateInheritance(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base_primary.weapon", basePrimaryXML)
	writeFile(t, dir, "mp5.weapon",
		`<weapon file="base_primary.weapon" key="mp5.weapon"><specification name="MP5" suppressed="1" /></weapon>`)

	s := NewScanner(testLogger())
	result, err := s.ScanWeapons(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanWeapons: %v", err)
	}
	if len(result.Weapons) != 1 {
		t.Fatalf("got %d weapons, want 1", len(result.Weapons))
	}
	w := result.Weapons[0]
	if w.MagazineSize != 20 {
		t.Errorf("MagazineSize = %d, want 20 inherited from template", w.MagazineSize)
	}
	if w.RetriggerTime != 0.1 {
		t.Errorf("RetriggerTime = %v, want 0.1 inherited", w.RetriggerTime)
	}
	if w.HudIcon != "hud_generic.png" {
		t.Errorf("HudIcon = %q, want inherited icon", w.HudIcon)
	}
	if !w.Suppressed {
		t.Error("Suppressed = false, want own value true")
	}
}

func TestScanWeaponsDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/ak47.weapon", `<weapon key="ak47.weapon"><specification name="AK47" /></weapon>`)
	writeFile(t, dir, "b/ak47.weapon", `<weapon key="ak47.weapon"><specification name="AK47 Copy" /></weapon>`)

	s := NewScanner(testLogger())
	result, err := s.ScanWeapons(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanWeapons: %v", err)
	}
	if len(result.Weapons) != 2 {
		t.Errorf("got %d weapons, want 2", len(result.Weapons))
	}
	if len(result.DuplicateKeys) != 1 || result.DuplicateKeys[0] != "ak47.weapon" {
		t.Errorf("DuplicateKeys = %v, want [ak47.weapon]", result.DuplicateKeys)
	}
}

func TestScanWeaponsBadFileCollected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.weapon", `<weapon key="good.weapon"><specification name="Good" /></weapon>`)
	writeFile(t, dir, "broken.weapon", `<weapon key="broken.weapon"><specification`)

	s := NewScanner(testLogger())
	result, err := s.ScanWeapons(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanWeapons: %v", err)
	}
	if len(result.Weapons) != 1 {
		t.Errorf("got %d weapons, want 1", len(result.Weapons))
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry for broken.weapon", result.Errors)
	}
}

func TestScanWeaponsMissingDir(t *testing.T) {
	s := NewScanner(testLogger())
	if _, err := s.ScanWeapons(context.Background(), filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestScanWeaponsCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.weapon", `<weapon key="a"><specification name="A" /></weapon>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(testLogger())
	if _, err := s.ScanWeapons(ctx, dir); err == nil {
		t.Fatal("expected context error")
	}
}

func TestScanItems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items/medikit.carry_item",
		`<carry_item key="medikit.carry_item" name="Medikit" slot="1">
			<hud_icon filename="hud_medikit.png" />
			<inventory encumbrance="5.0" price="50.0" />
		</carry_item>`)
	writeFile(t, dir, "items/broken.carry_item", `<carry_item`)

	s := NewScanner(testLogger())
	result, err := s.ScanItems(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanItems: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(result.Items))
	}
	it := result.Items[0]
	if it.Key != "medikit.carry_item" || it.Name != "Medikit" || it.Slot != 1 {
		t.Errorf("item = %+v", it)
	}
	if it.HudIcon != "hud_medikit.png" || it.Encumbrance != 5.0 || it.Price != 50.0 {
		t.Errorf("item fields = %+v", it)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", result.Errors)
	}
}
