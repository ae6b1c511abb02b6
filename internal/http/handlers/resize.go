package handlers

import (
	"net/http"

	"studio/internal/orchestrator"
)

type resizeRequest struct {
	Size string `json:"size"`
}

// ResizeBase starts a size adaptation of the base's displayed image. The
// {base_id} segment "active" targets the current base.
func (a *App) ResizeBase(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req resizeRequest
	if !a.decode(w, r, &req) {
		return
	}
	id := urlParam(r, "base_id")
	if id == "active" {
		id = ""
	}
	target := orchestrator.ResizeTarget{Kind: orchestrator.OwnerBase, ID: id}
	if err := a.Orchestrator.StartResize(r.Context(), s, target, req.Size); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusAccepted, s)
}

// ResizeVariation starts a size adaptation of a variation's displayed image.
func (a *App) ResizeVariation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req resizeRequest
	if !a.decode(w, r, &req) {
		return
	}
	target := orchestrator.ResizeTarget{Kind: orchestrator.OwnerVariation, ID: urlParam(r, "variation_id")}
	if err := a.Orchestrator.StartResize(r.Context(), s, target, req.Size); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusAccepted, s)
}
