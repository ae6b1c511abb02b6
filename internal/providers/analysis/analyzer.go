package analysis

import (
	"context"

	"studio/internal/providers/genai"
)

// Result is the structured description of an uploaded image. It feeds prompt
// context only; the state machine never depends on it.
type Result struct {
	Product     string
	Mood        string
	Colors      []string
	Description string
}

// Analyzer produces a structured description of an image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType, extraContext, requestID string) (*Result, error)
}

// GeminiAnalyzer runs analysis through the shared Gemini client.
type GeminiAnalyzer struct {
	client *genai.Client
}

// NewGeminiAnalyzer wires the analyzer.
func NewGeminiAnalyzer(client *genai.Client) *GeminiAnalyzer {
	return &GeminiAnalyzer{client: client}
}

// Analyze fulfils the Analyzer interface.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, image []byte, mimeType, extraContext, requestID string) (*Result, error) {
	out, err := a.client.AnalyzeImage(ctx, genai.AnalyzeRequest{
		Image:     image,
		MimeType:  mimeType,
		Context:   extraContext,
		RequestID: requestID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Product:     out.Product,
		Mood:        out.Mood,
		Colors:      out.Colors,
		Description: out.Description,
	}, nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
