package gamedata

// StanceAccuracy is the accuracy multiplier a weapon has in one stance.
type StanceAccuracy struct {
	Stance   string  `json:"stance"`
	Accuracy float64 `json:"accuracy"`
}

// WeaponRecord is one parsed weapon definition.
//
// Tag and Class are distinct fields: Tag comes from the <tag name> element
// and Class from the <specification class> attribute.
type WeaponRecord struct {
	Key               string           `json:"key"`
	Name              string           `json:"name"`
	Tag               string           `json:"tag"`
	Class             int              `json:"class"`
	HudIcon           string           `json:"hud_icon,omitempty"`
	MagazineSize      int              `json:"magazine_size"`
	RetriggerTime     float64          `json:"retrigger_time"`
	KillProbability   float64          `json:"kill_probability"`
	Suppressed        bool             `json:"suppressed"`
	Encumbrance       float64          `json:"encumbrance"`
	Price             float64          `json:"price"`
	CanRespawnWith    bool             `json:"can_respawn_with"`
	StanceAccuracies  []StanceAccuracy `json:"stance_accuracies,omitempty"`
	FilePath          string           `json:"file_path"`
	SourceDirectoryID string           `json:"source_directory_id,omitempty"`
}

// ItemRecord is one parsed carry-item definition.
type ItemRecord struct {
	Key               string  `json:"key"`
	Name              string  `json:"name"`
	Slot              int     `json:"slot"`
	HudIcon           string  `json:"hud_icon,omitempty"`
	Encumbrance       float64 `json:"encumbrance"`
	Price             float64 `json:"price"`
	FilePath          string  `json:"file_path"`
	SourceDirectoryID string  `json:"source_directory_id,omitempty"`
}

// WeaponScanResult is the outcome of scanning one directory for weapons.
type WeaponScanResult struct {
	Weapons       []WeaponRecord `json:"weapons"`
	Errors        []string       `json:"errors"`
	DuplicateKeys []string       `json:"duplicate_keys"`
}

// ItemScanResult is the outcome of scanning one directory for items.
type ItemScanResult struct {
	Items  []ItemRecord `json:"items"`
	Errors []string     `json:"errors"`
}
