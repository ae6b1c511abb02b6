package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studio/internal/providers/qwen"
)

type qwenEditClient interface {
	EditImage(context.Context, qwen.EditRequest) (*qwen.ImageAsset, error)
	HasCredentials() bool
	Model() string
}

// QwenGenerator orchestrates calls to DashScope's Qwen image-edit model and
// falls back to another generator (e.g. synthetic Gemini) when credentials
// are missing or the remote call cannot succeed.
type QwenGenerator struct {
	client   qwenEditClient
	fallback Generator
}

// NewQwenGenerator wires a Qwen client with an optional fallback generator.
func NewQwenGenerator(client qwenEditClient, fallback Generator) *QwenGenerator {
	return &QwenGenerator{client: client, fallback: fallback}
}

// Edit fulfils the Generator interface.
func (g *QwenGenerator) Edit(ctx context.Context, req EditRequest) (*Asset, error) {
	if g == nil || g.client == nil {
		if g != nil && g.fallback != nil {
			return g.fallback.Edit(ctx, req)
		}
		return nil, fmt.Errorf("qwen generator not configured")
	}
	if !g.client.HasCredentials() {
		if g.fallback != nil {
			return g.fallback.Edit(ctx, req)
		}
		return nil, fmt.Errorf("qwen generator missing credentials")
	}

	asset, err := g.client.EditImage(ctx, qwen.EditRequest{
		Prompt:    buildQwenPrompt(req),
		Image:     req.Image,
		MimeType:  req.MimeType,
		Size:      AspectRatioSize(req.AspectRatio),
		RequestID: req.RequestID,
	})
	if err != nil {
		if shouldFallback(err) && g.fallback != nil {
			return g.fallback.Edit(ctx, req)
		}
		return nil, err
	}
	return &Asset{
		URL:    asset.URL,
		Format: normalizeFormat(asset.Format),
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

func (g *QwenGenerator) String() string {
	if g == nil || g.client == nil {
		return "qwen"
	}
	return g.client.Model()
}

var _ Generator = (*QwenGenerator)(nil)

func buildQwenPrompt(req EditRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Instruction))
	if ctx := strings.TrimSpace(req.AnalysisContext); ctx != "" {
		b.WriteString("\nImage context: ")
		b.WriteString(ctx)
	}
	return b.String()
}

func shouldFallback(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, qwen.ErrMissingAPIKey) {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") {
		return true
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "unavailable") {
		return true
	}
	return false
}

func normalizeFormat(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		if strings.HasPrefix(mime, "image/") {
			return mime
		}
		return "image/png"
	}
}

// AspectRatioSize maps an aspect ratio label to the DashScope size token.
func AspectRatioSize(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "9:16":
		return "928*1664"
	case "4:5":
		return "1140*1424"
	case "3:2":
		return "1584*1056"
	case "1:1", "":
		return "1328*1328"
	default:
		return "1328*1328"
	}
}
