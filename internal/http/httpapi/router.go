package httpapi

import (
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(allowedOrigins),
		middleware.I18N("en"),
	)
	if app.Config != nil && app.Config.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Get("/", app.ListSnapshots)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)

			r.Post("/upload", app.Upload)
			r.Post("/analyze", app.Analyze)

			r.Post("/edits", app.Edit)
			r.Post("/background/remove", app.RemoveBackground)
			r.Post("/navigate/{index}", app.Navigate)
			r.Delete("/versions/{index}", app.DeleteVersion)

			r.Route("/bases", func(r chi.Router) {
				r.Post("/", app.CreateBase)
				r.Post("/{base_id}/activate", app.ActivateBase)
				r.Post("/{base_id}/resize", app.ResizeBase)
				r.Delete("/{base_id}", app.DeleteBase)
			})

			r.Route("/variations", func(r chi.Router) {
				r.Post("/", app.CreateVariation)
				r.Post("/generate-all", app.GenerateAllVariations)
				r.Post("/deselect", app.DeselectVariation)

				r.Route("/{variation_id}", func(r chi.Router) {
					r.Post("/generate", app.GenerateVariation)
					r.Post("/edits", app.EditVariation)
					r.Post("/select", app.SelectVariation)
					r.Post("/navigate/{index}", app.NavigateVariation)
					r.Post("/view-latest", app.ViewLatestVariation)
					r.Post("/archive", app.ArchiveVariation)
					r.Post("/restore", app.RestoreVariation)
					r.Post("/duplicate", app.DuplicateVariation)
					r.Post("/resize", app.ResizeVariation)
					r.Delete("/", app.DeleteVariation)
				})
			})

			r.Route("/comparison", func(r chi.Router) {
				r.Post("/enter", app.EnterComparison)
				r.Post("/right", app.SelectComparisonRight)
				r.Post("/move/{delta}", app.MoveComparisonRight)
				r.Post("/exit", app.ExitComparison)
			})

			r.Route("/references", func(r chi.Router) {
				r.Post("/", app.AddReference)
				r.Post("/select", app.SelectReference)
				r.Delete("/{ref_id}", app.RemoveReference)
			})

			r.Post("/tool", app.SetActiveTool)
			r.Post("/presets", app.SetPresets)
			r.Post("/models", app.SetModelSettings)

			r.Get("/snapshot", app.SnapshotExists)
			r.Post("/snapshot/restore", app.RestoreSession)
			r.Post("/snapshot/flush", app.FlushSession)
			r.Delete("/snapshot", app.ClearSnapshot)

			r.Get("/export.zip", app.ExportZip)
		})
	})

	if app.Files != nil && app.Files.BasePath() != "" {
		fileServer(r, "/static", stdhttp.Dir(app.Files.BasePath()))
	}

	return r
}

// fileServer serves stored assets under the given prefix.
func fileServer(r chi.Router, path string, root stdhttp.FileSystem) {
	if path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	r.Get(path+"/*", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		fs := stdhttp.StripPrefix(path, stdhttp.FileServer(root))
		fs.ServeHTTP(w, req)
	})
}
