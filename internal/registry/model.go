package registry

import "time"

// Entry status values.
const (
	StatusPending    = "pending"
	StatusValidating = "validating"
	StatusValid      = "valid"
	StatusInvalid    = "invalid"
)

// Entry is one configured scan directory. Counts reflect only the most
// recent successful scan of the directory.
type Entry struct {
	ID            string     `json:"id"`
	Path          string     `json:"path"`
	Status        string     `json:"status"`
	Active        bool       `json:"active"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	ItemCount     int        `json:"item_count"`
	WeaponCount   int        `json:"weapon_count"`
	LastError     string     `json:"last_error,omitempty"`
}

// document is the persisted shape of the registry: the full ordered entry
// list plus the selected directory. It is written whole after every
// mutation and read whole at startup.
type document struct {
	Directories         []Entry `json:"directories"`
	SelectedDirectoryID string  `json:"selected_directory_id,omitempty"`
}
