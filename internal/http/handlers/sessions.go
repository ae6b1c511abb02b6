package handlers

import (
	"fmt"
	"net/http"

	"studio/internal/domain"
	"studio/internal/storage"
)

// CreateSession opens a fresh editing session.
func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.Manager.Create()
	if a.Saver != nil {
		a.Saver.Track(s)
	}
	a.json(w, http.StatusCreated, map[string]string{"session_id": s.ID()})
}

// GetSession returns the full session state.
func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.state(w, http.StatusOK, s)
}

// DeleteSession drops the live session and its persisted snapshot.
func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	id := s.ID()
	if a.Saver != nil {
		a.Saver.Untrack(id)
	}
	a.Manager.Remove(id)
	if a.Store != nil {
		if err := a.Store.Clear(r.Context(), id); err != nil {
			a.Logger.Warn().Err(err).Str("session_id", id).Msg("handlers: clear snapshot")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadRequest struct {
	Image string `json:"image"`
	Name  string `json:"name,omitempty"`
}

// Upload seeds the session workspace from a data-URL image. The payload is
// persisted to asset storage and the original base chain is rooted at it.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req uploadRequest
	if !a.decode(w, r, &req) {
		return
	}
	mime, data, err := storage.DecodeDataURL(req.Image)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid image payload")
		return
	}

	key := fmt.Sprintf("sessions/%s/upload.%s", s.ID(), storage.ExtensionForMime(mime))
	stored, err := a.Files.Write(r.Context(), key, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: store upload")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
		return
	}

	if err := s.Initialize(domain.UploadedImage{
		URL:      a.Files.URL(stored),
		MimeType: mime,
		Name:     req.Name,
	}); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type analyzeRequest struct {
	Context string `json:"context,omitempty"`
}

// Analyze runs image analysis over the upload and stores the result as
// prompt context.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req analyzeRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}
	analysis, err := a.Orchestrator.Analyze(r.Context(), s, req.Context)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, analysis)
}

type toolRequest struct {
	Tool string `json:"tool"`
}

// SetActiveTool records a tool switch.
func (a *App) SetActiveTool(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req toolRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := s.SetActiveTool(req.Tool); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type presetsRequest struct {
	Presets []string `json:"presets"`
}

// SetPresets replaces the selected presets.
func (a *App) SetPresets(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req presetsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := s.SetPresets(req.Presets); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type modelSettingsRequest struct {
	Models         []string `json:"models"`
	Quality        string   `json:"quality,omitempty"`
	CompareEnabled bool     `json:"compare_enabled,omitempty"`
}

// SetModelSettings replaces the model and quality selections.
func (a *App) SetModelSettings(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req modelSettingsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := s.SetModelSettings(domain.ModelSettings{
		Models:         req.Models,
		Quality:        req.Quality,
		CompareEnabled: req.CompareEnabled,
	}); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type referenceRequest struct {
	Image string `json:"image"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
}

// AddReference attaches a reference image to the session.
func (a *App) AddReference(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req referenceRequest
	if !a.decode(w, r, &req) {
		return
	}
	mime, data, err := storage.DecodeDataURL(req.Image)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid image payload")
		return
	}
	switch domain.ReferenceImageType(req.Type) {
	case domain.ReferenceBackground, domain.ReferenceModel, domain.ReferenceEdit:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown reference type")
		return
	}

	key := fmt.Sprintf("sessions/%s/refs/%s.%s", s.ID(), req.Type, storage.ExtensionForMime(mime))
	stored, err := a.Files.Write(r.Context(), key, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: store reference")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
		return
	}

	id, err := s.AddReferenceImage(domain.ReferenceImage{
		URL:      a.Files.URL(stored),
		MimeType: mime,
		Name:     req.Name,
		Type:     domain.ReferenceImageType(req.Type),
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"reference_id": id})
}

// RemoveReference detaches a reference image.
func (a *App) RemoveReference(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.RemoveReferenceImage(urlParam(r, "ref_id")); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type selectReferenceRequest struct {
	Tool        string `json:"tool"`
	ReferenceID string `json:"reference_id"`
}

// SelectReference marks a reference as selected for a tool; an empty
// reference_id clears the selection.
func (a *App) SelectReference(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req selectReferenceRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Tool == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "tool required")
		return
	}
	if err := s.SelectReference(req.Tool, req.ReferenceID); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}
