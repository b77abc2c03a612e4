package httpsrv

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/termhub/chat-relay-service/internal/handler/ws"
)

// NewRouter assembles the public HTTP surface. The chat endpoints are
// CORS-open: the browser front end is served from anywhere and authenticates
// with nothing beyond its self-chosen client identifier.
func NewRouter(h *ChatHandler, wsh *ws.WSHandler, promReg *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/stream", h.Stream)
	r.Post("/action", h.Action)
	r.Get("/ws", wsh.ServeHTTP)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return r
}
