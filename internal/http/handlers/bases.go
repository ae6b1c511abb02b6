package handlers

import (
	"net/http"

	"studio/internal/domain"
	"studio/internal/studio"
)

type createBaseRequest struct {
	ImageURL    string `json:"image_url,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`
}

// CreateBase snapshots an image into a new base version. Without an explicit
// image URL the currently displayed image of the active context is used.
func (a *App) CreateBase(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req createBaseRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}
	imageURL := req.ImageURL
	if imageURL == "" {
		imageURL = displayedImage(s)
	}

	id, err := s.CreateBase(imageURL, req.SourceLabel)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"base_id": id})
}

// ActivateBase switches the active base version.
func (a *App) ActivateBase(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.SetActiveBase(urlParam(r, "base_id")); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// DeleteBase removes a base version; deleting the original when it is the
// only content resets the workspace.
func (a *App) DeleteBase(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.DeleteBase(urlParam(r, "base_id")); err != nil {
		a.domainError(w, err)
		return
	}
	a.state(w, http.StatusOK, s)
}

// displayedImage resolves the image the user is currently looking at: the
// selected variation's displayed version, or the active base's current one.
func displayedImage(s *studio.Session) string {
	var out string
	s.View(func(st *domain.State) {
		if st.SelectedVariationID != "" {
			if v := st.Variation(st.SelectedVariationID); v != nil {
				out = v.DisplayedImageURL()
				return
			}
		}
		if base := st.ActiveBase(); base != nil {
			if cur := base.Chain.CurrentVersion(); cur != nil {
				out = cur.ImageURL
			}
		}
	})
	return out
}
