package image

import "strings"

// ModelID identifies one generative image model. The set is closed: user
// input is normalized through Lookup rather than compared as free strings.
type ModelID string

const (
	ModelGeminiFlashImage ModelID = "gemini-2.5-flash-image"
	ModelGeminiProImage   ModelID = "gemini-2.5-pro-image"
	ModelQwenImageEdit    ModelID = "qwen-image-edit"
	ModelQwenImagePlus    ModelID = "qwen-image-plus"
)

// Family groups models by provider so wiring can share one client per
// family.
type Family string

const (
	FamilyGemini Family = "gemini"
	FamilyQwen   Family = "qwen"
)

// Capability describes what a model needs and supports.
type Capability struct {
	ID                ModelID
	DisplayName       string
	Family            Family
	CredentialEnv     string
	SupportsReference bool
	SupportsQuality   bool
}

var catalog = []Capability{
	{
		ID:                ModelGeminiFlashImage,
		DisplayName:       "Gemini Flash Image",
		Family:            FamilyGemini,
		CredentialEnv:     "GEMINI_API_KEY",
		SupportsReference: true,
		SupportsQuality:   true,
	},
	{
		ID:                ModelGeminiProImage,
		DisplayName:       "Gemini Pro Image",
		Family:            FamilyGemini,
		CredentialEnv:     "GEMINI_API_KEY",
		SupportsReference: true,
		SupportsQuality:   true,
	},
	{
		ID:            ModelQwenImageEdit,
		DisplayName:   "Qwen Image Edit",
		Family:        FamilyQwen,
		CredentialEnv: "DASHSCOPE_API_KEY",
	},
	{
		ID:            ModelQwenImagePlus,
		DisplayName:   "Qwen Image Plus",
		Family:        FamilyQwen,
		CredentialEnv: "DASHSCOPE_API_KEY",
	},
}

// Catalog lists every known model.
func Catalog() []Capability {
	out := make([]Capability, len(catalog))
	copy(out, catalog)
	return out
}

// DefaultModel is used when the client does not pick one.
func DefaultModel() ModelID { return ModelGeminiFlashImage }

// Lookup resolves a free-form model string to its capability entry.
func Lookup(id string) (Capability, bool) {
	needle := ModelID(strings.ToLower(strings.TrimSpace(id)))
	for _, cap := range catalog {
		if cap.ID == needle {
			return cap, true
		}
	}
	return Capability{}, false
}

// DisplayName returns the human label for a model, falling back to the raw
// ID for unknown models so prompt labels stay readable.
func DisplayName(id ModelID) string {
	if cap, ok := Lookup(string(id)); ok {
		return cap.DisplayName
	}
	return string(id)
}
