package registry

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/voxhall/armory/internal/cache"
	"github.com/voxhall/armory/internal/database"
	"github.com/voxhall/armory/internal/gamedata"
	"github.com/voxhall/armory/internal/settings"
	"github.com/voxhall/armory/internal/validate"
)

// fakeValidator returns scripted results per path, valid by default.
type fakeValidator struct {
	mu      sync.Mutex
	results map[string]validate.Result
	calls   int
	onCall  func(path string)
}

func (f *fakeValidator) Validate(_ context.Context, path string) validate.Result {
	f.mu.Lock()
	f.calls++
	onCall := f.onCall
	r, ok := f.results[path]
	f.mu.Unlock()
	if onCall != nil {
		onCall(path)
	}
	if ok {
		return r
	}
	return validate.Result{Valid: true}
}

func (f *fakeValidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupService(t *testing.T) (*Service, *fakeValidator, *settings.Store, *cache.Store) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := settings.NewStore(db)
	cacheStore := cache.NewStore()
	fv := &fakeValidator{results: make(map[string]validate.Result)}
	return NewService(fv, store, cacheStore, testLogger()), fv, store, cacheStore
}

func TestAddValidDirectory(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	result, err := svc.Add(ctx, "/games/main")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !result.Valid {
		t.Fatalf("result = %+v, want valid", result)
	}

	entries := svc.List()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID == "" {
		t.Error("expected generated id")
	}
	if e.Path != "/games/main" || e.Status != StatusValid || !e.Active {
		t.Errorf("entry = %+v", e)
	}
	if !svc.Has("/games/main") {
		t.Error("Has should report the path")
	}
}

func TestAddInvalidDirectoryKeptWithError(t *testing.T) {
	svc, fv, _, _ := setupService(t)
	fv.results["/bad"] = validate.Result{Valid: false, ErrorCode: validate.CodeMissingGameData, Message: "no game data"}

	result, err := svc.Add(context.Background(), "/bad")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}

	// The failed entry stays visible with its error, but is never eligible.
	entries := svc.List()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Status != StatusInvalid || entries[0].LastError != "no game data" {
		t.Errorf("entry = %+v", entries[0])
	}
	if len(svc.ValidDirectories()) != 0 {
		t.Error("invalid entry must not be eligible")
	}
}

func TestAddDuplicateRejectedWithoutGatewayCall(t *testing.T) {
	svc, fv, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/x"); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	callsAfterFirst := fv.callCount()

	result, err := svc.Add(ctx, "/x")
	if err != ErrDuplicate {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if result.Valid || result.ErrorCode != CodeDuplicateDirectory {
		t.Errorf("result = %+v, want duplicate_directory", result)
	}
	if fv.callCount() != callsAfterFirst {
		t.Error("duplicate add must not call the validator gateway")
	}
	if len(svc.List()) != 1 {
		t.Errorf("registry length changed on duplicate add")
	}
}

func TestAddEmptyPath(t *testing.T) {
	svc, fv, _, _ := setupService(t)

	result, err := svc.Add(context.Background(), "")
	if err != ErrEmptyPath {
		t.Fatalf("err = %v, want ErrEmptyPath", err)
	}
	if result.Valid || result.ErrorCode != validate.CodeEmptyPath {
		t.Errorf("result = %+v", result)
	}
	if fv.callCount() != 0 {
		t.Error("empty path must not reach the gateway")
	}
}

func TestRemovePurgesCache(t *testing.T) {
	svc, _, _, cacheStore := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/games/main"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID
	cacheStore.PutWeapons(id, []gamedata.WeaponRecord{{Key: "ak47.weapon"}})

	if err := svc.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := svc.Get(id); ok {
		t.Error("entry should be gone")
	}
	if cacheStore.HasDirectory(id) {
		t.Error("cached records tagged with the id must be purged")
	}
}

func TestRemoveUnknown(t *testing.T) {
	svc, _, _, _ := setupService(t)
	if err := svc.Remove(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveClearsSelection(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID
	if err := svc.SetSelected(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := svc.Remove(ctx, id); err != nil {
		t.Fatal(err)
	}
	if svc.Selected() != "" {
		t.Error("selection should clear when the selected entry is removed")
	}
}

func TestValidateIsStateless(t *testing.T) {
	svc, _, _, _ := setupService(t)

	result := svc.Validate(context.Background(), "/somewhere")
	if !result.Valid {
		t.Fatalf("result = %+v", result)
	}
	if len(svc.List()) != 0 {
		t.Error("Validate must not mutate the registry")
	}
	if len(svc.Validating()) != 0 {
		t.Error("validating flag must clear when the call resolves")
	}
}

func TestValidatingFlagVisibleDuringCall(t *testing.T) {
	svc, fv, _, _ := setupService(t)
	fv.onCall = func(path string) {
		if !svc.Validating()[path] {
			t.Errorf("validating flag for %s should be set during the gateway call", path)
		}
	}
	svc.Validate(context.Background(), "/slow")
}

func TestRevalidateKeepsTurnedInvalidEntry(t *testing.T) {
	svc, fv, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/games/main"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID

	// Directory later loses its content.
	fv.mu.Lock()
	fv.results["/games/main"] = validate.Result{Valid: false, ErrorCode: validate.CodeMissingGameData, Message: "gone"}
	fv.mu.Unlock()

	result, err := svc.Revalidate(ctx, id)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}

	e, ok := svc.Get(id)
	if !ok {
		t.Fatal("entry must be kept after turning invalid")
	}
	if e.Status != StatusInvalid || e.LastError != "gone" {
		t.Errorf("entry = %+v", e)
	}
}

func TestRevalidateRecovers(t *testing.T) {
	svc, fv, _, _ := setupService(t)
	ctx := context.Background()

	fv.results["/fixable"] = validate.Result{Valid: false, ErrorCode: validate.CodePathNotFound, Message: "missing"}
	if _, err := svc.Add(ctx, "/fixable"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID

	fv.mu.Lock()
	delete(fv.results, "/fixable")
	fv.mu.Unlock()

	if _, err := svc.Revalidate(ctx, id); err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	e, _ := svc.Get(id)
	if e.Status != StatusValid || e.LastError != "" {
		t.Errorf("entry = %+v, want valid with cleared error", e)
	}
}

func TestRevalidateUnknown(t *testing.T) {
	svc, _, _, _ := setupService(t)
	if _, err := svc.Revalidate(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleActiveAffectsEligibility(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID

	if len(svc.ValidDirectories()) != 1 {
		t.Fatal("expected one eligible directory")
	}

	e, err := svc.ToggleActive(ctx, id)
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if e.Active {
		t.Error("expected inactive after toggle")
	}
	if len(svc.ValidDirectories()) != 0 {
		t.Error("inactive entry must not be eligible")
	}

	if _, err := svc.ToggleActive(ctx, id); err != nil {
		t.Fatal(err)
	}
	if len(svc.ValidDirectories()) != 1 {
		t.Error("re-activated entry must be eligible again")
	}
}

func TestTotalsIncludeInactive(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Add(ctx, "/b"); err != nil {
		t.Fatal(err)
	}
	entries := svc.List()
	now := time.Now().UTC()
	if err := svc.RecordScanSuccess(ctx, entries[0].ID, 10, 5, now); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordScanSuccess(ctx, entries[1].ID, 3, 2, now); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ToggleActive(ctx, entries[1].ID); err != nil {
		t.Fatal(err)
	}

	if got := svc.TotalWeaponCount(); got != 13 {
		t.Errorf("TotalWeaponCount = %d, want 13 (inactive included)", got)
	}
	if got := svc.TotalItemCount(); got != 7 {
		t.Errorf("TotalItemCount = %d, want 7", got)
	}
}

func TestRecordScanSuccessClearsError(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID
	if err := svc.RecordScanFailure(ctx, id, "scan blew up"); err != nil {
		t.Fatal(err)
	}
	e, _ := svc.Get(id)
	if e.LastError != "scan blew up" {
		t.Fatalf("LastError = %q", e.LastError)
	}
	if e.LastScannedAt != nil || e.WeaponCount != 0 {
		t.Error("failure must not touch counts or timestamp")
	}

	now := time.Now().UTC()
	if err := svc.RecordScanSuccess(ctx, id, 4, 2, now); err != nil {
		t.Fatal(err)
	}
	e, _ = svc.Get(id)
	if e.LastError != "" || e.WeaponCount != 4 || e.ItemCount != 2 || e.LastScannedAt == nil {
		t.Errorf("entry = %+v", e)
	}
}

func TestPersistenceRoundtrip(t *testing.T) {
	svc, fv, store, cacheStore := setupService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Add(ctx, "/b"); err != nil {
		t.Fatal(err)
	}
	id := svc.List()[0].ID
	if err := svc.SetSelected(ctx, id); err != nil {
		t.Fatal(err)
	}

	// A fresh service over the same store sees the persisted document.
	reloaded := NewService(fv, store, cacheStore, testLogger())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries := reloaded.List()
	if len(entries) != 2 {
		t.Fatalf("got %d entries after reload, want 2", len(entries))
	}
	if entries[0].Path != "/a" || entries[1].Path != "/b" {
		t.Errorf("order not preserved: %+v", entries)
	}
	if reloaded.Selected() != id {
		t.Errorf("Selected = %q, want %q", reloaded.Selected(), id)
	}
}

func TestSetSelectedUnknown(t *testing.T) {
	svc, _, _, _ := setupService(t)
	if err := svc.SetSelected(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	// Clearing with "" always succeeds.
	if err := svc.SetSelected(context.Background(), ""); err != nil {
		t.Errorf("clearing selection: %v", err)
	}
}

func TestNoDuplicatePathsEver(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	paths := []string{"/a", "/b", "/a", "/c", "/b", "/a"}
	for _, p := range paths {
		_, _ = svc.Add(ctx, p)
	}

	seen := make(map[string]bool)
	for _, e := range svc.List() {
		if seen[e.Path] {
			t.Fatalf("duplicate path %s in registry", e.Path)
		}
		seen[e.Path] = true
	}
	if len(svc.List()) != 3 {
		t.Errorf("got %d entries, want 3", len(svc.List()))
	}
}
