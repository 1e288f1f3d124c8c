package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/heartmatch/core/internal/config"
)

// NewRouter assembles the HTTP surface: common middleware, identity
// resolution, and every service's routes mounted under /v1.
func NewRouter(resolver AccountResolver, registrars ...Registrar) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(Identity(resolver))
		for _, reg := range registrars {
			reg.Register(v1)
		}
	})

	return r
}

// StartHTTPServer boots the HTTP server with all provided services registered.
func StartHTTPServer(cfg *config.Config, resolver AccountResolver, registrars ...Registrar) error {
	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	return http.ListenAndServe(addr, NewRouter(resolver, registrars...))
}

// RespondJSON writes v as a JSON response body with the given status code.
func RespondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
