package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"studio/internal/domain"
	"studio/internal/providers/image"
	"studio/internal/studio"
)

// VariationParams carries the optional knobs shared by variation operations.
type VariationParams struct {
	Model     string
	Quality   string
	Locale    string
	RequestID string
}

// StartVariationGeneration kicks off the first render of an idle or errored
// variation. The variation's title and description become the instruction;
// the source is the active base's currently displayed image. Failures leave
// no version behind, the variation simply returns to the error state for a
// retry.
func (o *Orchestrator) StartVariationGeneration(ctx context.Context, s *studio.Session, variationID string, p VariationParams) error {
	if err := s.BeginVariationGeneration(variationID); err != nil {
		return err
	}

	var (
		sessionID string
		sourceURL string
		prompt    string
		promptCtx string
		quality   string
		model     image.ModelID
	)
	s.View(func(st *domain.State) {
		sessionID = st.SessionID
		if v := st.Variation(variationID); v != nil {
			prompt = variationPrompt(v)
		}
		if base := st.ActiveBase(); base != nil {
			if cur := base.Chain.CurrentVersion(); cur != nil {
				sourceURL = cur.ImageURL
			}
		}
		promptCtx = analysisPromptContext(st.Analysis)
		quality = p.Quality
		if quality == "" {
			quality = st.Models.Quality
		}
		model = pickModel(p.Model, st.Models)
	})
	if sourceURL == "" {
		_ = s.FailVariationGeneration(variationID)
		return domain.ErrInvalidTarget
	}

	o.submit(func(jobCtx context.Context) {
		jobCtx, cancel := context.WithTimeout(jobCtx, o.timeout)
		defer cancel()

		url, genErr := o.generateImage(jobCtx, sessionID, model, generateInput{
			prompt:    prompt,
			sourceURL: sourceURL,
			promptCtx: promptCtx,
			quality:   quality,
			locale:    p.Locale,
			requestID: requestID(p.RequestID, "variation", variationID),
		})

		var settleErr error
		if genErr != nil {
			settleErr = s.FailVariationGeneration(variationID)
			o.logger.Warn().Err(genErr).
				Str("session_id", sessionID).
				Str("variation_id", variationID).
				Msg("orchestrator: variation generation failed")
		} else {
			settleErr = s.CompleteVariationGeneration(variationID, url)
		}
		if settleErr != nil && !errors.Is(settleErr, domain.ErrStaleTarget) {
			o.logger.Error().Err(settleErr).
				Str("session_id", sessionID).
				Msg("orchestrator: settle variation generation")
		}
	})
	return nil
}

// GenerateAllVariations starts generation for every idle variation and
// reports how many were admitted.
func (o *Orchestrator) GenerateAllVariations(ctx context.Context, s *studio.Session, p VariationParams) (int, error) {
	var ids []string
	s.View(func(st *domain.State) {
		for i := range st.Variations {
			v := &st.Variations[i]
			if !v.IsArchived && (v.Status == domain.VariationIdle || v.Status == domain.VariationError) {
				ids = append(ids, v.ID)
			}
		}
	})

	started := 0
	for _, id := range ids {
		if err := o.StartVariationGeneration(ctx, s, id, p); err != nil {
			if errors.Is(err, domain.ErrVariationBusy) {
				continue
			}
			return started, err
		}
		started++
	}
	return started, nil
}

// StartVariationEdit refines a completed variation with a prompt. The parent
// index is captured before the provider call so navigation during the request
// cannot redirect the result; failed edits append nothing.
func (o *Orchestrator) StartVariationEdit(ctx context.Context, s *studio.Session, variationID, prompt string, p VariationParams) error {
	if prompt == "" {
		return domain.ErrInvalidTarget
	}

	parentIndex, err := s.BeginVariationEdit(variationID)
	if err != nil {
		return err
	}

	var (
		sessionID string
		sourceURL string
		promptCtx string
		quality   string
		model     image.ModelID
	)
	s.View(func(st *domain.State) {
		sessionID = st.SessionID
		promptCtx = analysisPromptContext(st.Analysis)
		quality = p.Quality
		if quality == "" {
			quality = st.Models.Quality
		}
		model = pickModel(p.Model, st.Models)
		if v := st.Variation(variationID); v != nil && parentIndex >= 0 && parentIndex < v.Chain.Len() {
			sourceURL = v.Chain.Versions[parentIndex].ImageURL
		}
	})
	if sourceURL == "" {
		_ = s.FailVariationEdit(variationID)
		return domain.ErrInvalidTarget
	}

	o.submit(func(jobCtx context.Context) {
		jobCtx, cancel := context.WithTimeout(jobCtx, o.timeout)
		defer cancel()

		url, genErr := o.generateImage(jobCtx, sessionID, model, generateInput{
			prompt:    prompt,
			sourceURL: sourceURL,
			promptCtx: promptCtx,
			quality:   quality,
			locale:    p.Locale,
			requestID: requestID(p.RequestID, "variation-edit", variationID),
		})

		var settleErr error
		if genErr != nil {
			settleErr = s.FailVariationEdit(variationID)
			o.logger.Warn().Err(genErr).
				Str("session_id", sessionID).
				Str("variation_id", variationID).
				Msg("orchestrator: variation edit failed")
		} else {
			settleErr = s.CompleteVariationEdit(variationID, prompt, string(model), url, parentIndex)
		}
		if settleErr != nil && !errors.Is(settleErr, domain.ErrStaleTarget) {
			o.logger.Error().Err(settleErr).
				Str("session_id", sessionID).
				Msg("orchestrator: settle variation edit")
		}
	})
	return nil
}

type generateInput struct {
	prompt    string
	sourceURL string
	promptCtx string
	quality   string
	locale    string
	requestID string
}

func (o *Orchestrator) generateImage(ctx context.Context, sessionID string, model image.ModelID, in generateInput) (string, error) {
	gen, err := o.generatorFor(model)
	if err != nil {
		return "", err
	}
	source, mime, err := o.loadImage(ctx, in.sourceURL)
	if err != nil {
		return "", fmt.Errorf("load source: %w", err)
	}
	asset, err := gen.Edit(ctx, image.EditRequest{
		Image:           source,
		MimeType:        mime,
		Instruction:     in.prompt,
		AnalysisContext: in.promptCtx,
		Edit:            true,
		Model:           model,
		Quality:         in.quality,
		RequestID:       in.requestID,
		Locale:          in.locale,
	})
	if err != nil {
		return "", err
	}
	return o.persistAsset(ctx, sessionID, asset)
}

func variationPrompt(v *domain.Variation) string {
	if v.Description == "" {
		return v.Title
	}
	return v.Title + ": " + v.Description
}

func pickModel(requested string, settings domain.ModelSettings) image.ModelID {
	if cap, ok := image.Lookup(requested); ok {
		return cap.ID
	}
	for _, m := range settings.Models {
		if cap, ok := image.Lookup(m); ok {
			return cap.ID
		}
	}
	return image.DefaultModel()
}

func requestID(explicit, kind, id string) string {
	if explicit != "" {
		return explicit
	}
	return kind + ":" + id
}
