package domain

// VariationStatus enumerates the lifecycle of a named creative direction.
type VariationStatus string

const (
	VariationIdle       VariationStatus = "idle"
	VariationGenerating VariationStatus = "generating"
	VariationCompleted  VariationStatus = "completed"
	VariationError      VariationStatus = "error"
)

// Variation is an independently named creative direction with its own mini
// edit chain. It starts idle with an empty chain; the first successful
// generation seeds the root. Later edits mark IsRegenerating instead of a
// per-version processing entry, and completion is surfaced via HasNewVersion
// rather than moving the cursor.
type Variation struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Status          VariationStatus  `json:"status"`
	Chain           VersionChain     `json:"chain"`
	IsRegenerating  bool             `json:"is_regenerating,omitempty"`
	HasNewVersion   bool             `json:"has_new_version,omitempty"`
	IsArchived      bool             `json:"is_archived,omitempty"`
	ResizedVersions []ResizedVersion `json:"resized_versions,omitempty"`
}

// DisplayedImageURL returns the image of the version under the cursor, empty
// when the variation has not completed its first generation.
func (v *Variation) DisplayedImageURL() string {
	cur := v.Chain.CurrentVersion()
	if cur == nil {
		return ""
	}
	return cur.ImageURL
}

// Active reports whether the variation belongs in the default listing and in
// bulk-download counts.
func (v *Variation) Active() bool { return !v.IsArchived }
