package scan

import (
	"context"
	"testing"
	"time"

	"github.com/voxhall/armory/internal/database"
)

func setupHistory(t *testing.T) *History {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewHistory(db)
}

func TestHistoryRecordAndList(t *testing.T) {
	h := setupHistory(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	p := Progress{
		Total:       3,
		Completed:   3,
		State:       StatePartial,
		Errors:      map[string]string{"/mods/broken": "permission denied"},
		StartedAt:   &started,
		CompletedAt: &completed,
	}
	if err := h.Record(ctx, p, 42, 7); err != nil {
		t.Fatalf("Record: %v", err)
	}

	batches, err := h.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	b := batches[0]
	if b.ID == "" {
		t.Error("batch id is empty")
	}
	if b.State != StatePartial || b.Total != 3 || b.Completed != 3 {
		t.Errorf("unexpected batch: %+v", b)
	}
	if b.WeaponCount != 42 || b.ItemCount != 7 {
		t.Errorf("counts = %d/%d, want 42/7", b.WeaponCount, b.ItemCount)
	}
	if !b.StartedAt.Equal(started) || !b.CompletedAt.Equal(completed) {
		t.Errorf("timestamps = %v/%v", b.StartedAt, b.CompletedAt)
	}
	if b.Errors["/mods/broken"] != "permission denied" {
		t.Errorf("errors = %v", b.Errors)
	}
}

func TestHistoryListNewestFirst(t *testing.T) {
	h := setupHistory(t)
	ctx := context.Background()

	for i := range 3 {
		started := time.Date(2026, 3, 1+i, 10, 0, 0, 0, time.UTC)
		completed := started.Add(time.Minute)
		p := Progress{
			Total: 1, Completed: 1, State: StateCompleted,
			Errors:    map[string]string{},
			StartedAt: &started, CompletedAt: &completed,
		}
		if err := h.Record(ctx, p, i, 0); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	batches, err := h.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2 (limit applied)", len(batches))
	}
	if !batches[0].StartedAt.After(batches[1].StartedAt) {
		t.Errorf("batches not newest first: %v then %v", batches[0].StartedAt, batches[1].StartedAt)
	}
	if batches[0].WeaponCount != 2 {
		t.Errorf("newest batch weapon count = %d, want 2", batches[0].WeaponCount)
	}
}
