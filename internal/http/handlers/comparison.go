package handlers

import (
	"net/http"
	"strconv"
)

// EnterComparison opens compare mode on the active base chain.
func (a *App) EnterComparison(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.EnterComparison(); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

type comparisonSelectRequest struct {
	Index int `json:"index"`
}

// SelectComparisonRight points the movable side at a specific version.
func (a *App) SelectComparisonRight(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req comparisonSelectRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := s.SelectComparisonRight(req.Index); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// MoveComparisonRight steps the movable side by the signed delta in the
// path, skipping over the pinned side.
func (a *App) MoveComparisonRight(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	delta, err := strconv.Atoi(urlParam(r, "delta"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "delta must be an integer")
		return
	}
	if err := s.MoveComparisonRight(delta); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// ExitComparison leaves compare mode.
func (a *App) ExitComparison(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.ExitComparison(); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}
