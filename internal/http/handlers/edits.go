package handlers

import (
	"net/http"
	"strconv"

	"studio/internal/middleware"
	"studio/internal/orchestrator"
)

type editRequest struct {
	Prompt      string   `json:"prompt"`
	Models      []string `json:"models,omitempty"`
	Quality     string   `json:"quality,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

type editResponse struct {
	Pending []orchestrator.PendingVersion `json:"pending"`
}

// Edit starts an edit on the active base chain. With compare mode on and
// several models selected, one processing version is reserved per model; the
// response lists every reservation.
func (a *App) Edit(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}

	pending, err := a.Orchestrator.StartEdit(r.Context(), s, orchestrator.EditParams{
		Prompt:      req.Prompt,
		Models:      req.Models,
		Quality:     req.Quality,
		AspectRatio: req.AspectRatio,
		Locale:      middleware.LocaleFromContext(r.Context()),
		RequestID:   middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, editResponse{Pending: pending})
}

// Navigate moves the active base chain's cursor to the index in the path.
func (a *App) Navigate(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(urlParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "index must be an integer")
		return
	}
	if err := s.Navigate(index); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// DeleteVersion removes one version from the active base chain.
func (a *App) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(urlParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "index must be an integer")
		return
	}
	if err := s.DeleteVersion(index); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// RemoveBackground starts a background cutout of the displayed version.
func (a *App) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	pending, err := a.Orchestrator.StartRemoveBackground(r.Context(), s)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, pending)
}
