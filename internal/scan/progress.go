package scan

import "time"

// Batch scan states.
const (
	StateIdle      = "idle"
	StateScanning  = "scanning"
	StateCompleted = "completed"
	StatePartial   = "partial"
	StateCancelled = "cancelled"
)

// Progress is the single process-wide state of the current or most recent
// batch scan. Completed is monotonically increasing within a batch and
// never exceeds Total.
type Progress struct {
	Total       int               `json:"total"`
	Completed   int               `json:"completed"`
	CurrentPath string            `json:"current_path,omitempty"`
	State       string            `json:"state"`
	Errors      map[string]string `json:"errors"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// snapshot returns a deep copy safe to hand to readers.
func (p Progress) snapshot() Progress {
	out := p
	out.Errors = make(map[string]string, len(p.Errors))
	for k, v := range p.Errors {
		out.Errors[k] = v
	}
	return out
}
