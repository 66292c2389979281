package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"producer/internal/http/handlers"
	"producer/internal/infra"
	mw "producer/internal/middleware"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	App            *handlers.App
	Logger         infra.Logger
	AllowedOrigins []string
	// ArtifactDir, when set, is served read-only under /static for local
	// artifact delivery.
	ArtifactDir string
}

func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.CORS(opts.AllowedOrigins),
		mw.Logger(opts.Logger),
	)

	app := opts.App

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/batches", func(r chi.Router) {
		// Batch creation fans out into provider calls; bound it per client.
		r.With(mw.RateLimit(10, time.Minute)).Post("/", app.StartBatch)
		r.Get("/", app.ListBatches)
		r.Route("/{batch_id}", func(r chi.Router) {
			r.Get("/", app.GetBatch)
			r.Delete("/", app.DeleteBatch)
			r.Post("/headlines/approve", app.ApproveHeadlines)
			r.Post("/scripts/approve", app.ApproveScripts)
			r.Post("/production", app.StartProduction)
			r.Post("/items/{item_id}/regenerate", app.RegenerateItem)
		})
	})

	if opts.ArtifactDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.ArtifactDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
