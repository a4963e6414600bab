package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full middleware chain and route table. Recovery sits
// outermost so a panic anywhere below still produces a JSON 500.
func NewRouter(h *Handler, verifier TokenVerifier, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(RequestTime)
	r.Use(ClientMetadata)
	r.Use(Logger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(verifier, logger))

		r.Post("/attendance/voucher", h.handleIssueVoucher)
		r.Post("/attendance/mark", h.handleMark)
		r.Post("/biometric/register", h.handleRegisterFace)
		r.Get("/security/alerts", h.handleListAlerts)
	})

	return r
}
