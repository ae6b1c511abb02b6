package handlers

import (
	"net/http"
	"strconv"

	"studio/internal/middleware"
	"studio/internal/orchestrator"
)

type createVariationRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CreateVariation registers a new creative direction in the idle state.
func (a *App) CreateVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req createVariationRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title required")
		return
	}
	id, err := s.CreateVariation(req.Title, req.Description)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"variation_id": id})
}

type variationJobRequest struct {
	Model   string `json:"model,omitempty"`
	Quality string `json:"quality,omitempty"`
}

func (a *App) variationParams(r *http.Request, req variationJobRequest) orchestrator.VariationParams {
	return orchestrator.VariationParams{
		Model:     req.Model,
		Quality:   req.Quality,
		Locale:    middleware.LocaleFromContext(r.Context()),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}
}

// GenerateVariation starts the first render of a variation.
func (a *App) GenerateVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req variationJobRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}
	if err := a.Orchestrator.StartVariationGeneration(r.Context(), s, urlParam(r, "variation_id"), a.variationParams(r, req)); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusAccepted, s)
}

// GenerateAllVariations starts every idle variation at once.
func (a *App) GenerateAllVariations(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req variationJobRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}
	started, err := a.Orchestrator.GenerateAllVariations(r.Context(), s, a.variationParams(r, req))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]int{"started": started})
}

type variationEditRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// EditVariation refines a completed variation with a prompt.
func (a *App) EditVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req variationEditRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	params := a.variationParams(r, variationJobRequest{Model: req.Model, Quality: req.Quality})
	if err := a.Orchestrator.StartVariationEdit(r.Context(), s, urlParam(r, "variation_id"), req.Prompt, params); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusAccepted, s)
}

// SelectVariation makes a variation the current selection; an empty body or
// id clears it.
func (a *App) SelectVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.SelectVariation(urlParam(r, "variation_id")); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// DeselectVariation clears the variation selection, falling back to the
// active base.
func (a *App) DeselectVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.SelectVariation(""); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// NavigateVariation moves a variation chain's cursor.
func (a *App) NavigateVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(urlParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "index must be an integer")
		return
	}
	if err := s.NavigateVariation(urlParam(r, "variation_id"), index); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// ViewLatestVariation jumps to the newest version of a variation.
func (a *App) ViewLatestVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.ViewLatestVariation(urlParam(r, "variation_id")); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// ArchiveVariation soft-deletes a variation.
func (a *App) ArchiveVariation(w http.ResponseWriter, r *http.Request) {
	a.setVariationArchived(w, r, true)
}

// RestoreVariation brings an archived variation back.
func (a *App) RestoreVariation(w http.ResponseWriter, r *http.Request) {
	a.setVariationArchived(w, r, false)
}

func (a *App) setVariationArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.SetVariationArchived(urlParam(r, "variation_id"), archived); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type duplicateVariationRequest struct {
	Title string `json:"title,omitempty"`
}

// DuplicateVariation copies a variation's displayed image into a fresh one.
func (a *App) DuplicateVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req duplicateVariationRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}
	id, err := s.DuplicateVariation(urlParam(r, "variation_id"), req.Title)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"variation_id": id})
}

// DeleteVariation removes a variation permanently.
func (a *App) DeleteVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.DeleteVariation(urlParam(r, "variation_id")); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}
