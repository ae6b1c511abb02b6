package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Synthetic is a deterministic in-process generator used in tests and as the
// terminal fallback when no provider credentials are configured at all.
type Synthetic struct{}

// NewSynthetic constructs the fallback generator.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Edit produces a stable URL derived from the request so repeated runs are
// reproducible.
func (s *Synthetic) Edit(ctx context.Context, req EditRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(req.RequestID + "|" + req.Instruction + "|" + string(req.Model)))
	key := hex.EncodeToString(sum[:8])
	return &Asset{
		URL:    fmt.Sprintf("https://cdn.example.com/synthetic/%s/%s.png", req.Model, key),
		Format: "image/png",
		Width:  1024,
		Height: 1024,
	}, nil
}

// Resize mirrors Edit for the resize path.
func (s *Synthetic) Resize(ctx context.Context, req ResizeRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(req.RequestID + "|" + req.RatioLabel))
	key := hex.EncodeToString(sum[:8])
	return &Asset{
		URL:    fmt.Sprintf("https://cdn.example.com/synthetic/resize/%s-%s.png", key, req.RatioLabel),
		Format: "image/png",
		Width:  req.TargetWidth,
		Height: req.TargetHeight,
	}, nil
}

var (
	_ Generator = (*Synthetic)(nil)
	_ Resizer   = (*Synthetic)(nil)
)
