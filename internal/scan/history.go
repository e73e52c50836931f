package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Batch summarizes one finished batch scan.
type Batch struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	State       string            `json:"state"`
	Total       int               `json:"total"`
	Completed   int               `json:"completed"`
	WeaponCount int               `json:"weapon_count"`
	ItemCount   int               `json:"item_count"`
	Errors      map[string]string `json:"errors"`
}

// History records finished batches for later inspection.
type History struct {
	db *sql.DB
}

// NewHistory creates a scan history recorder.
func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Record writes one finished batch.
func (h *History) Record(ctx context.Context, p Progress, weaponCount, itemCount int) error {
	errJSON, err := json.Marshal(p.Errors)
	if err != nil {
		return fmt.Errorf("encoding batch errors: %w", err)
	}

	started := time.Now().UTC()
	if p.StartedAt != nil {
		started = *p.StartedAt
	}
	completed := time.Now().UTC()
	if p.CompletedAt != nil {
		completed = *p.CompletedAt
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO scan_history (id, started_at, completed_at, state, total, completed, weapon_count, item_count, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(),
		started.Format(time.RFC3339),
		completed.Format(time.RFC3339),
		p.State, p.Total, p.Completed,
		weaponCount, itemCount, string(errJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting scan history: %w", err)
	}
	return nil
}

// List returns the most recent batches, newest first.
func (h *History) List(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, state, total, completed, weapon_count, item_count, errors
		FROM scan_history ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var batches []Batch
	for rows.Next() {
		var b Batch
		var started, completed, errJSON string
		if err := rows.Scan(&b.ID, &started, &completed, &b.State, &b.Total, &b.Completed,
			&b.WeaponCount, &b.ItemCount, &errJSON); err != nil {
			return nil, fmt.Errorf("scanning scan history row: %w", err)
		}
		b.StartedAt, _ = time.Parse(time.RFC3339, started)
		b.CompletedAt, _ = time.Parse(time.RFC3339, completed)
		if err := json.Unmarshal([]byte(errJSON), &b.Errors); err != nil {
			b.Errors = map[string]string{}
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
