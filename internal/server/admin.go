package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/nexusgate/llm-gateway/internal/gateway"
)

// NewAdminMux builds the secondary health/introspection listener using
// chi+cors: an operator-facing mux kept separate from the gin data-plane
// router so a CORS misconfig on the admin surface can never affect the v1
// ingress routes.
func NewAdminMux(state *gateway.AppState) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/upstreams", func(w http.ResponseWriter, r *http.Request) {
		type upstreamView struct {
			Name      string   `json:"name"`
			Provider  string   `json:"provider"`
			Models    []string `json:"models"`
			IsDefault bool     `json:"is_default"`
			FCMode    string   `json:"fc_mode"`
		}
		views := make([]upstreamView, len(state.Upstreams))
		for i, u := range state.Upstreams {
			views[i] = upstreamView{
				Name:      u.Name,
				Provider:  string(u.Provider),
				Models:    u.Models,
				IsDefault: u.IsDefault,
				FCMode:    string(u.FCMode),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(views)
	})

	return r
}
