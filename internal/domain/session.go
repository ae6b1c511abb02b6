package domain

import "time"

// UploadedImage describes the single image a session operates on.
type UploadedImage struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ImageAnalysis is the structured description returned by the analysis
// collaborator. It is prompt context only; nothing in the state machine
// depends on it structurally.
type ImageAnalysis struct {
	Product     string   `json:"product,omitempty"`
	Mood        string   `json:"mood,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ReferenceImageType scopes a reference image to the tool that uses it.
type ReferenceImageType string

const (
	ReferenceBackground ReferenceImageType = "background"
	ReferenceModel      ReferenceImageType = "model"
	ReferenceEdit       ReferenceImageType = "edit"
)

// ReferenceImage is a session-scoped attachment with no lifecycle beyond
// add/remove. At most one may be selected per tool at a time.
type ReferenceImage struct {
	ID       string             `json:"id"`
	URL      string             `json:"url"`
	Base64   string             `json:"base64,omitempty"`
	MimeType string             `json:"mime_type"`
	Name     string             `json:"name,omitempty"`
	Type     ReferenceImageType `json:"type"`
}

// ToolState captures the transient tool and preset selections the UI renders
// from. Preset content is opaque here; only the selection mechanism matters.
type ToolState struct {
	ActiveTool         string            `json:"active_tool,omitempty"`
	SelectedPresets    []string          `json:"selected_presets,omitempty"`
	SelectedReferences map[string]string `json:"selected_references,omitempty"`
}

// ModelSettings records the model and quality choices driving edits, plus
// whether compare mode fans the same edit out to every selected model.
type ModelSettings struct {
	Models         []string `json:"models"`
	Quality        string   `json:"quality,omitempty"`
	CompareEnabled bool     `json:"compare_enabled,omitempty"`
}

// Comparison pins one version index as a stable reference (left) and lets a
// second (right) move freely within the same chain. It is transient and never
// survives a context change.
type Comparison struct {
	Active     bool `json:"active,omitempty"`
	LeftIndex  int  `json:"left_index,omitempty"`
	RightIndex int  `json:"right_index,omitempty"`
}

// State is the full observable state of one editing session. It is the one
// root object every mutation goes through and the input to snapshot capture.
type State struct {
	SessionID           string           `json:"session_id"`
	Uploaded            *UploadedImage   `json:"uploaded,omitempty"`
	Analysis            *ImageAnalysis   `json:"analysis,omitempty"`
	Bases               []BaseVersion    `json:"bases,omitempty"`
	ActiveBaseID        string           `json:"active_base_id,omitempty"`
	Variations          []Variation      `json:"variations,omitempty"`
	SelectedVariationID string           `json:"selected_variation_id,omitempty"`
	ReferenceImages     []ReferenceImage `json:"reference_images,omitempty"`
	Tool                ToolState        `json:"tool"`
	Models              ModelSettings    `json:"models"`
	Comparison          Comparison       `json:"comparison"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Base returns the base version with the given ID, or nil.
func (s *State) Base(id string) *BaseVersion {
	for i := range s.Bases {
		if s.Bases[i].ID == id {
			return &s.Bases[i]
		}
	}
	return nil
}

// ActiveBase returns the currently active base version, or nil before upload.
func (s *State) ActiveBase() *BaseVersion {
	return s.Base(s.ActiveBaseID)
}

// Variation returns the variation with the given ID, or nil.
func (s *State) Variation(id string) *Variation {
	for i := range s.Variations {
		if s.Variations[i].ID == id {
			return &s.Variations[i]
		}
	}
	return nil
}

// ActiveVariations lists the variations included in default listings and
// bulk-download counts.
func (s *State) ActiveVariations() []Variation {
	var out []Variation
	for i := range s.Variations {
		if s.Variations[i].Active() {
			out = append(out, s.Variations[i])
		}
	}
	return out
}
