// Package httpapi assembles the chi router: middleware chain, API routes, and
// static serving of generated and uploaded images.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*app.Logger),
		middleware.CORS(app.Config.CORSOrigins),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	r.Get("/health", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload/single", app.UploadSingle)
		r.Post("/upload", app.UploadBatch)
		r.Get("/brands", app.ListBrands)
		r.Post("/analyze-product", app.AnalyzeProduct)
		r.Post("/generate-brand-prompt", app.GenerateBrandPrompt)
		r.Post("/generate-brand-images", app.GenerateBrandImages)
		r.Post("/combine-images", app.CombineImages)
	})

	uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.Store.BasePath())))
	r.Get("/uploads/*", staticHeaders(uploads).ServeHTTP)

	return r
}

// staticHeaders makes generated images cacheable and embeddable from the
// frontend origin.
func staticHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
