// Package api exposes the backup core over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/imedwei/workspace-backups/internal/api/handlers"
)

// Options configures the API router.
type Options struct {
	// AllowedOrigins enables CORS for the dashboard; empty disables it.
	AllowedOrigins []string
	DefaultMaxKeep int
	Logger         *slog.Logger
}

// NewRouter creates the /api router. Mount it at "/api".
func NewRouter(catalog handlers.Catalog, pruner handlers.Pruner, lifecycle handlers.Lifecycle, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	backupHandler := handlers.NewBackupHandler(catalog, pruner, lifecycle, opts.DefaultMaxKeep, opts.Logger)

	r.Get("/health", backupHandler.Health)
	r.Get("/backups", backupHandler.List)
	r.Get("/stats", backupHandler.Stats)
	r.Get("/restore/{label}/{timestamp}", backupHandler.Restore)

	r.Route("/backup", func(r chi.Router) {
		r.Post("/", backupHandler.Create)
		r.Post("/prune", backupHandler.Prune)
		r.Delete("/{label}/{timestamp}", backupHandler.Delete)
	})

	return r
}

// RequestLogger logs one line per request through logger.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}
				logger.LogAttrs(r.Context(), level, "HTTP request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
