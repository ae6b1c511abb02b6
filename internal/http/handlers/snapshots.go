package handlers

import (
	"errors"
	"net/http"

	"studio/internal/domain"
	"studio/internal/snapshot"
)

// SnapshotExists reports whether a persisted snapshot is available for the
// session ID in the path, with its metadata, without touching live sessions.
func (a *App) SnapshotExists(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return
	}
	rec, err := a.Store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{"exists": false})
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: snapshot exists")
		a.error(w, http.StatusInternalServerError, "internal", "snapshot store unavailable")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"exists":        true,
		"saved_at":      rec.UpdatedAt,
		"size":          len(rec.Data),
		"thumbnail_url": snapshotThumbnail(rec.Data),
	})
}

// snapshotThumbnail picks a representative image URL from snapshot bytes.
// Returns empty on any decode problem; the caller treats it as optional.
func snapshotThumbnail(data []byte) string {
	s, err := snapshot.Restore(data)
	if err != nil {
		return ""
	}
	var url string
	s.View(func(st *domain.State) {
		if base := st.ActiveBase(); base != nil {
			if v := base.Chain.CurrentVersion(); v != nil && v.ImageURL != "" {
				url = v.ImageURL
				return
			}
			if base.BaseImageURL != "" {
				url = base.BaseImageURL
				return
			}
		}
		if st.Uploaded != nil {
			url = st.Uploaded.URL
		}
	})
	return url
}

// RestoreSession rehydrates a live session from its persisted snapshot and
// registers it, replacing any live session with the same ID.
func (a *App) RestoreSession(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return
	}
	rec, err := a.Store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no snapshot for session")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: snapshot load")
		a.error(w, http.StatusInternalServerError, "internal", "snapshot store unavailable")
		return
	}

	s, err := snapshot.Restore(rec.Data)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.Manager.Put(s)
	if a.Saver != nil {
		a.Saver.Track(s)
	}
	a.state(w, http.StatusOK, s)
}

// FlushSession persists the live session immediately, bypassing the
// debounce.
func (a *App) FlushSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := a.Saver.Flush(r.Context(), s); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: snapshot flush")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearSnapshot drops the persisted snapshot but keeps the live session.
func (a *App) ClearSnapshot(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return
	}
	if err := a.Store.Clear(r.Context(), id); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: snapshot clear")
		a.error(w, http.StatusInternalServerError, "internal", "failed to clear snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSnapshots summarizes every persisted session.
func (a *App) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	metas, err := a.Store.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: snapshot list")
		a.error(w, http.StatusInternalServerError, "internal", "snapshot store unavailable")
		return
	}
	if metas == nil {
		metas = []snapshot.Meta{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": metas})
}
