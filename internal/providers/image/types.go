package image

import "context"

// EditRequest describes a normalized edit passed to any image provider: the
// source image, the instruction, and the surrounding context.
type EditRequest struct {
	Image           []byte
	MimeType        string
	Instruction     string
	AnalysisContext string
	AspectRatio     string
	Edit            bool
	Model           ModelID
	Quality         string
	RequestID       string
	Locale          string
	ReferenceImage  []byte
	ReferenceMime   string
}

// ResizeRequest adapts an image to a target aspect ratio. It is keyed by the
// ratio label and independent of the main version chain.
type ResizeRequest struct {
	Image           []byte
	MimeType        string
	TargetWidth     int
	TargetHeight    int
	RatioLabel      string
	OriginalWidth   int
	OriginalHeight  int
	AnalysisContext string
	RequestID       string
}

// Asset represents a generated or edited image.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Edit(ctx context.Context, req EditRequest) (*Asset, error)
}

// Resizer adapts an image to a new aspect ratio.
type Resizer interface {
	Resize(ctx context.Context, req ResizeRequest) (*Asset, error)
}
