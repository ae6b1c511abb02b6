package image

import (
	"context"
	"fmt"

	"studio/internal/providers/genai"
)

// GeminiGenerator adapts the genai client to the provider contract.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator wires a Gemini client.
func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Edit fulfils the Generator interface.
func (g *GeminiGenerator) Edit(ctx context.Context, req EditRequest) (*Asset, error) {
	asset, err := g.client.EditImage(ctx, genai.EditRequest{
		Image:           req.Image,
		MimeType:        req.MimeType,
		Instruction:     req.Instruction,
		AnalysisContext: req.AnalysisContext,
		AspectRatio:     req.AspectRatio,
		Edit:            req.Edit,
		Quality:         req.Quality,
		RequestID:       req.RequestID,
		Locale:          req.Locale,
		ReferenceImage:  req.ReferenceImage,
		ReferenceMime:   req.ReferenceMime,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{
		URL:    asset.URL,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

// Resize fulfils the Resizer interface by asking the model to re-frame the
// image for the target ratio.
func (g *GeminiGenerator) Resize(ctx context.Context, req ResizeRequest) (*Asset, error) {
	instruction := fmt.Sprintf(
		"Adapt this image to a %s aspect ratio (%dx%d). Extend or crop the scene naturally; keep the subject centered and intact.",
		req.RatioLabel, req.TargetWidth, req.TargetHeight,
	)
	asset, err := g.client.EditImage(ctx, genai.EditRequest{
		Image:           req.Image,
		MimeType:        req.MimeType,
		Instruction:     instruction,
		AnalysisContext: req.AnalysisContext,
		AspectRatio:     req.RatioLabel,
		Edit:            true,
		RequestID:       req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{
		URL:    asset.URL,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

var (
	_ Generator = (*GeminiGenerator)(nil)
	_ Resizer   = (*GeminiGenerator)(nil)
)
