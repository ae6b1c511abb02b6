package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/orchestrator"
	"studio/internal/snapshot"
	"studio/internal/storage"
	"studio/internal/studio"
)

// App bundles the handler dependencies.
type App struct {
	Manager      *studio.Manager
	Orchestrator *orchestrator.Orchestrator
	Saver        *snapshot.Saver
	Store        snapshot.Store
	Files        *storage.FileStore
	Config       *infra.Config
	Logger       infra.Logger
	HTTPClient   *http.Client
}

// NewApp wires an App.
func NewApp(manager *studio.Manager, orch *orchestrator.Orchestrator, saver *snapshot.Saver, store snapshot.Store, files *storage.FileStore, cfg *infra.Config, logger infra.Logger) *App {
	return &App{
		Manager:      manager,
		Orchestrator: orch,
		Saver:        saver,
		Store:        store,
		Files:        files,
		Config:       cfg,
		Logger:       logger,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, msg string) {
	a.json(w, code, map[string]string{"error": slug, "message": msg})
}

// domainError translates state machine sentinels into HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrStaleTarget):
		a.error(w, http.StatusConflict, "stale_target", err.Error())
	case errors.Is(err, domain.ErrVersionProcessing),
		errors.Is(err, domain.ErrVariationBusy),
		errors.Is(err, domain.ErrResizeInFlight):
		a.error(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, domain.ErrVersionReferenced),
		errors.Is(err, domain.ErrLockedRoot),
		errors.Is(err, domain.ErrBaseProtected):
		a.error(w, http.StatusConflict, "protected", err.Error())
	case errors.Is(err, domain.ErrRestoreFailed):
		a.error(w, http.StatusUnprocessableEntity, "restore_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrNotCompleted),
		errors.Is(err, domain.ErrComparisonBounds),
		errors.Is(err, domain.ErrComparisonSame):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// session resolves the {id} route parameter to a live session, writing the
// error response itself when the session is unknown.
func (a *App) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return nil, false
	}
	s, err := a.Manager.Get(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return s, true
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// state renders the full session state. Marshaling happens under the session
// lock so concurrent mutations never produce a torn response.
func (a *App) state(w http.ResponseWriter, code int, s *studio.Session) {
	var payload []byte
	var err error
	s.View(func(st *domain.State) { payload, err = json.Marshal(st) })
	if err != nil {
		a.domainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}
