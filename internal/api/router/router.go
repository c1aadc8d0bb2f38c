// Package router assembles the HTTP surface of the availability service.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/staffcal/staffcal/internal/http/handlers"
	httpmiddleware "github.com/staffcal/staffcal/internal/http/middleware"
	"github.com/staffcal/staffcal/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger       *logging.Logger
	Availability *handlers.AvailabilityHandler

	// PortalJWTSecret enables bearer auth on the availability routes when
	// set. Empty leaves them open (local development).
	PortalJWTSecret string

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Availability != nil {
		r.Group(func(portal chi.Router) {
			if cfg.PortalJWTSecret != "" {
				portal.Use(httpmiddleware.PortalJWT(cfg.PortalJWTSecret))
			}
			cfg.Availability.Routes(portal)
		})
	}

	return r
}
