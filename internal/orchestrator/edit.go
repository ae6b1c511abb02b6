package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"studio/internal/domain"
	"studio/internal/providers/image"
	"studio/internal/studio"
)

// EditParams describes one edit request from the client.
type EditParams struct {
	Prompt      string
	Models      []string
	Quality     string
	AspectRatio string
	Locale      string
	RequestID   string
}

// PendingVersion identifies one reserved slot an edit will settle into.
type PendingVersion struct {
	Index     int    `json:"index"`
	VersionID string `json:"version_id"`
	Model     string `json:"model"`
}

// capturedRef is a reference image snapshot taken at reservation time so a
// later removal cannot affect an in-flight request.
type capturedRef struct {
	url      string
	base64   string
	mimeType string
}

// StartEdit reserves one processing version per selected model on the active
// base chain and launches the provider calls. All reservations share the
// parent captured at call time; each settles independently by its stable ID,
// so results landing in any order, or after navigation or deletion, are
// reconciled correctly.
func (o *Orchestrator) StartEdit(ctx context.Context, s *studio.Session, p EditParams) ([]PendingVersion, error) {
	if p.Prompt == "" {
		return nil, domain.ErrInvalidTarget
	}
	if p.RequestID == "" {
		p.RequestID = "edit"
	}

	var (
		pending     []PendingVersion
		baseID      string
		sessionID   string
		sourceURL   string
		parentIndex int
		promptCtx   string
		quality     string
		ref         *capturedRef
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
		switch cur.Status {
		case domain.VersionProcessing:
			return domain.ErrVersionProcessing
		case domain.VersionError:
			return domain.ErrInvalidTarget
		}

		models := resolveModels(p.Models, st.Models)
		if len(models) == 0 {
			return domain.ErrInvalidTarget
		}

		baseID = base.ID
		sessionID = st.SessionID
		sourceURL = cur.ImageURL
		parentIndex = base.Chain.Current
		promptCtx = analysisPromptContext(st.Analysis)
		quality = p.Quality
		if quality == "" {
			quality = st.Models.Quality
		}
		ref = captureSelectedReference(st)

		for _, m := range models {
			label := p.Prompt
			if len(models) >= 2 {
				label = fmt.Sprintf("%s (%s)", p.Prompt, image.DisplayName(m))
			}
			idx, vid, err := base.Chain.Append(label, string(m), parentIndex)
			if err != nil {
				return err
			}
			pending = append(pending, PendingVersion{Index: idx, VersionID: vid, Model: string(m)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, pv := range pending {
		pv := pv
		o.submit(func(jobCtx context.Context) {
			o.runEdit(jobCtx, s, sessionID, baseID, pv, editJob{
				prompt:      p.Prompt,
				sourceURL:   sourceURL,
				promptCtx:   promptCtx,
				quality:     quality,
				aspectRatio: p.AspectRatio,
				locale:      p.Locale,
				requestID:   p.RequestID,
				ref:         ref,
			})
		})
	}
	return pending, nil
}

type editJob struct {
	prompt      string
	sourceURL   string
	promptCtx   string
	quality     string
	aspectRatio string
	locale      string
	requestID   string
	ref         *capturedRef
}

func (o *Orchestrator) runEdit(ctx context.Context, s *studio.Session, sessionID, baseID string, pv PendingVersion, job editJob) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	url, err := o.executeEdit(ctx, sessionID, pv, job)
	settleErr := s.Apply(func(st *domain.State) error {
		base := st.Base(baseID)
		if base == nil {
			return domain.ErrStaleTarget
		}
		if err != nil {
			return base.Chain.Fail(pv.VersionID)
		}
		return base.Chain.Resolve(pv.VersionID, url)
	})

	switch {
	case errors.Is(settleErr, domain.ErrStaleTarget):
		o.logger.Debug().
			Str("session_id", sessionID).
			Str("version_id", pv.VersionID).
			Msg("orchestrator: dropping stale edit result")
	case settleErr != nil:
		o.logger.Error().Err(settleErr).
			Str("session_id", sessionID).
			Msg("orchestrator: settle edit")
	case err != nil:
		o.logger.Warn().Err(err).
			Str("session_id", sessionID).
			Str("model", pv.Model).
			Msg("orchestrator: edit failed")
	}
}

// executeEdit runs the provider call for one reservation and returns the
// stored asset URL.
func (o *Orchestrator) executeEdit(ctx context.Context, sessionID string, pv PendingVersion, job editJob) (string, error) {
	gen, err := o.generatorFor(image.ModelID(pv.Model))
	if err != nil {
		return "", err
	}

	source, mime, err := o.loadImage(ctx, job.sourceURL)
	if err != nil {
		return "", fmt.Errorf("load source: %w", err)
	}

	req := image.EditRequest{
		Image:           source,
		MimeType:        mime,
		Instruction:     job.prompt,
		AnalysisContext: job.promptCtx,
		AspectRatio:     job.aspectRatio,
		Edit:            true,
		Model:           image.ModelID(pv.Model),
		Quality:         job.quality,
		RequestID:       job.requestID + ":" + pv.VersionID,
		Locale:          job.locale,
	}
	if job.ref != nil {
		data, refMime, refErr := o.loadReference(ctx, job.ref)
		if refErr != nil {
			o.logger.Warn().Err(refErr).Str("session_id", sessionID).Msg("orchestrator: skipping unreadable reference image")
		} else {
			req.ReferenceImage = data
			req.ReferenceMime = refMime
		}
	}

	asset, err := gen.Edit(ctx, req)
	if err != nil {
		return "", err
	}
	return o.persistAsset(ctx, sessionID, asset)
}

func (o *Orchestrator) loadReference(ctx context.Context, ref *capturedRef) ([]byte, string, error) {
	if ref.base64 != "" {
		data, err := base64.StdEncoding.DecodeString(ref.base64)
		if err != nil {
			return nil, "", fmt.Errorf("decode reference: %w", err)
		}
		mime := ref.mimeType
		if mime == "" {
			mime = "image/png"
		}
		return data, mime, nil
	}
	if ref.url == "" {
		return nil, "", errors.New("reference has no payload")
	}
	return o.loadImage(ctx, ref.url)
}

// resolveModels normalizes the request's model list against the catalog,
// falling back to the session settings and then the default model. Without
// compare enabled only the first model is used.
func resolveModels(requested []string, settings domain.ModelSettings) []image.ModelID {
	raw := requested
	if len(raw) == 0 {
		raw = settings.Models
	}

	var out []image.ModelID
	seen := map[image.ModelID]bool{}
	for _, r := range raw {
		cap, ok := image.Lookup(r)
		if !ok || seen[cap.ID] {
			continue
		}
		seen[cap.ID] = true
		out = append(out, cap.ID)
	}
	if len(out) == 0 {
		out = []image.ModelID{image.DefaultModel()}
	}
	if !settings.CompareEnabled && len(out) > 1 {
		out = out[:1]
	}
	return out
}

func analysisPromptContext(a *domain.ImageAnalysis) string {
	if a == nil {
		return ""
	}
	return analysisContext(a.Product, a.Mood, a.Description, a.Colors)
}

func captureSelectedReference(st *domain.State) *capturedRef {
	if st.Tool.ActiveTool == "" || len(st.Tool.SelectedReferences) == 0 {
		return nil
	}
	id, ok := st.Tool.SelectedReferences[st.Tool.ActiveTool]
	if !ok {
		return nil
	}
	for i := range st.ReferenceImages {
		if st.ReferenceImages[i].ID == id {
			return &capturedRef{
				url:      st.ReferenceImages[i].URL,
				base64:   st.ReferenceImages[i].Base64,
				mimeType: st.ReferenceImages[i].MimeType,
			}
		}
	}
	return nil
}
