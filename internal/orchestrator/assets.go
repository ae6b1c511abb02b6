package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"studio/internal/domain"
	"studio/internal/providers/image"
	"studio/internal/studio"
)

// OwnerKind selects whether a resize targets a base version or a variation.
type OwnerKind string

const (
	OwnerBase      OwnerKind = "base"
	OwnerVariation OwnerKind = "variation"
)

// ResizeTarget addresses the owner of a resize slot.
type ResizeTarget struct {
	Kind OwnerKind
	ID   string
}

// StartResize adapts the owner's currently displayed image to the given
// aspect-ratio label. One resize per size label may be in flight; regenerating
// a finished size overwrites its slot.
func (o *Orchestrator) StartResize(ctx context.Context, s *studio.Session, target ResizeTarget, size string) error {
	width, height, err := parseRatio(size)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}

	var (
		sessionID string
		sourceURL string
		promptCtx string
	)
	err = s.Apply(func(st *domain.State) error {
		sessionID = st.SessionID
		promptCtx = analysisPromptContext(st.Analysis)

		// Pin the owner now so the result cannot follow a later base switch.
		if target.Kind == OwnerBase && target.ID == "" {
			target.ID = st.ActiveBaseID
		}

		list, cur, findErr := resizeSlots(st, target)
		if findErr != nil {
			return findErr
		}
		if cur == "" {
			return domain.ErrInvalidTarget
		}
		sourceURL = cur

		next, beginErr := domain.BeginResize(*list, size)
		if beginErr != nil {
			return beginErr
		}
		*list = next
		return nil
	})
	if err != nil {
		return err
	}

	o.submit(func(jobCtx context.Context) {
		jobCtx, cancel := context.WithTimeout(jobCtx, o.timeout)
		defer cancel()

		url, resizeErr := o.executeResize(jobCtx, sessionID, sourceURL, promptCtx, size, width, height)

		settleErr := s.Apply(func(st *domain.State) error {
			list, _, findErr := resizeSlots(st, target)
			if findErr != nil {
				return domain.ErrStaleTarget
			}
			return domain.FinishResize(*list, size, url, resizeErr != nil)
		})
		if resizeErr != nil {
			o.logger.Warn().Err(resizeErr).
				Str("session_id", sessionID).
				Str("size", size).
				Msg("orchestrator: resize failed")
		}
		if settleErr != nil && !errors.Is(settleErr, domain.ErrStaleTarget) {
			o.logger.Error().Err(settleErr).
				Str("session_id", sessionID).
				Msg("orchestrator: settle resize")
		}
	})
	return nil
}

func (o *Orchestrator) executeResize(ctx context.Context, sessionID, sourceURL, promptCtx, size string, width, height int) (string, error) {
	if o.resizer == nil {
		return "", errors.New("no resizer configured")
	}
	source, mime, err := o.loadImage(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("load source: %w", err)
	}
	asset, err := o.resizer.Resize(ctx, image.ResizeRequest{
		Image:           source,
		MimeType:        mime,
		TargetWidth:     width,
		TargetHeight:    height,
		RatioLabel:      size,
		AnalysisContext: promptCtx,
		RequestID:       "resize:" + size,
	})
	if err != nil {
		return "", err
	}
	return o.persistAsset(ctx, sessionID, asset)
}

// resizeSlots resolves the resize list and displayed image for a target.
func resizeSlots(st *domain.State, target ResizeTarget) (*[]domain.ResizedVersion, string, error) {
	switch target.Kind {
	case OwnerBase:
		id := target.ID
		if id == "" {
			id = st.ActiveBaseID
		}
		base := st.Base(id)
		if base == nil {
			return nil, "", domain.ErrNotFound
		}
		cur := ""
		if v := base.Chain.CurrentVersion(); v != nil {
			cur = v.ImageURL
		}
		return &base.ResizedVersions, cur, nil
	case OwnerVariation:
		v := st.Variation(target.ID)
		if v == nil {
			return nil, "", domain.ErrNotFound
		}
		return &v.ResizedVersions, v.DisplayedImageURL(), nil
	default:
		return nil, "", domain.ErrInvalidTarget
	}
}

// parseRatio turns a "W:H" label into pixel dimensions scaled around a
// 1024px budget.
func parseRatio(label string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size label %q", label)
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size label %q", label)
	}
	const budget = 1024
	if w >= h {
		return budget, budget * h / w, nil
	}
	return budget * w / h, budget, nil
}

// StartRemoveBackground cuts the subject out of the currently displayed
// version of the active base. The cutout lands as a new version in the chain,
// reserved up front like any edit. Progress callbacks surface through the
// logger.
func (o *Orchestrator) StartRemoveBackground(ctx context.Context, s *studio.Session) (PendingVersion, error) {
	if o.remover == nil {
		return PendingVersion{}, errors.New("no background remover configured")
	}

	var (
		pv        PendingVersion
		sessionID string
		baseID    string
		sourceURL string
	)
	err := s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		if base == nil {
			return domain.ErrNotFound
		}
		cur := base.Chain.CurrentVersion()
		if cur == nil {
			return domain.ErrInvalidTarget
		}
		if cur.Status == domain.VersionProcessing {
			return domain.ErrVersionProcessing
		}
		if cur.Status == domain.VersionError {
			return domain.ErrInvalidTarget
		}
		sessionID = st.SessionID
		baseID = base.ID
		sourceURL = cur.ImageURL
		idx, vid, appendErr := base.Chain.Append("Remove background", "", base.Chain.Current)
		if appendErr != nil {
			return appendErr
		}
		pv = PendingVersion{Index: idx, VersionID: vid}
		return nil
	})
	if err != nil {
		return PendingVersion{}, err
	}

	o.submit(func(jobCtx context.Context) {
		jobCtx, cancel := context.WithTimeout(jobCtx, o.timeout)
		defer cancel()

		url, remErr := o.executeRemoveBackground(jobCtx, sessionID, sourceURL)

		settleErr := s.Apply(func(st *domain.State) error {
			base := st.Base(baseID)
			if base == nil {
				return domain.ErrStaleTarget
			}
			if remErr != nil {
				return base.Chain.Fail(pv.VersionID)
			}
			return base.Chain.Resolve(pv.VersionID, url)
		})
		if remErr != nil {
			o.logger.Warn().Err(remErr).
				Str("session_id", sessionID).
				Msg("orchestrator: background removal failed")
		}
		if settleErr != nil && !errors.Is(settleErr, domain.ErrStaleTarget) {
			o.logger.Error().Err(settleErr).
				Str("session_id", sessionID).
				Msg("orchestrator: settle background removal")
		}
	})
	return pv, nil
}

func (o *Orchestrator) executeRemoveBackground(ctx context.Context, sessionID, sourceURL string) (string, error) {
	source, mime, err := o.loadImage(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("load source: %w", err)
	}
	cutout, outMime, err := o.remover.Remove(ctx, source, mime, func(phase string, progress int) {
		o.logger.Debug().
			Str("session_id", sessionID).
			Str("phase", phase).
			Int("progress", progress).
			Msg("orchestrator: background removal progress")
	})
	if err != nil {
		return "", err
	}
	return o.persistAsset(ctx, sessionID, &image.Asset{Data: cutout, Format: outMime})
}

// Analyze runs the analysis collaborator over the uploaded image and stores
// the result as prompt context. It is synchronous; analysis never blocks the
// editing state machine.
func (o *Orchestrator) Analyze(ctx context.Context, s *studio.Session, extraContext string) (*domain.ImageAnalysis, error) {
	if o.analyzer == nil {
		return nil, errors.New("no analyzer configured")
	}

	var uploadedURL string
	s.View(func(st *domain.State) {
		if st.Uploaded != nil {
			uploadedURL = st.Uploaded.URL
		}
	})
	if uploadedURL == "" {
		return nil, domain.ErrNotFound
	}

	data, mime, err := o.loadImage(ctx, uploadedURL)
	if err != nil {
		return nil, fmt.Errorf("load upload: %w", err)
	}
	result, err := o.analyzer.Analyze(ctx, data, mime, extraContext, "analyze:"+s.ID())
	if err != nil {
		return nil, err
	}
	out := domain.ImageAnalysis{
		Product:     result.Product,
		Mood:        result.Mood,
		Colors:      result.Colors,
		Description: result.Description,
	}
	if err := s.SetAnalysis(out); err != nil {
		return nil, err
	}
	return &out, nil
}
