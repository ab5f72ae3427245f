/*
Package handler provides the HTTP handlers and routing setup for the label bot.

This file defines the main Router, applying logging, CORS and recovery middleware
before delegating to the webhook callback, static assets and the admin API.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"labelbot/internal/app/publish"
	"labelbot/internal/app/storage"
	"labelbot/internal/configs"
	"labelbot/internal/pkg/auth/jwt"
	"labelbot/internal/pkg/logx"
)

// OverlayRoutePrefix serves overlay previews shown on label-change cards.
const OverlayRoutePrefix = "/imgs/"

// Router sets up the main HTTP routing table (chi.Router) for the application.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	// The platform posts to the configured webhook URL; "/" is kept for
	// channels still registered with the bare host.
	r.Post("/callback", HandleWebhook(deps))
	r.Post("/", HandleWebhook(deps))

	r.Handle(OverlayRoutePrefix+"*", staticFiles(OverlayRoutePrefix, deps.Config.OverlayDir, nil))
	if deps.Config.StorageBackend == configs.StorageLocal {
		r.Handle(storage.LocalRoutePrefix+"*", staticFiles(storage.LocalRoutePrefix, deps.Config.LocalStorageDir, publish.IsKey))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(c.Handler)
		if deps.APILimiter != nil {
			api.Use(deps.APILimiter.Middleware)
		}
		api.Use(jwt.RequireAdmin(deps.Config.AdminJWTSecret))

		api.Get("/inquiries", HandleListInquiries(deps))
	})

	return r
}

// staticFiles serves files below dir without directory listings. When allow is
// set, only paths it accepts (relative to prefix) are served.
func staticFiles(prefix, dir string, allow func(string) bool) http.Handler {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)
		if strings.HasSuffix(r.URL.Path, "/") || (allow != nil && !allow(name)) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}
