package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"evalprof/internal/session"
)

func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	// Cache APIs
	r.HandleFunc("/cache/{key}", h.SetKey).Methods(http.MethodPut)
	r.HandleFunc("/cache/{key}", h.GetKey).Methods(http.MethodGet)
	r.HandleFunc("/cache/{key}", h.DeleteKey).Methods(http.MethodDelete)

	requireSession := session.Require(h.sessions)

	// Rate limit APIs
	r.HandleFunc("/ratelimit/check", h.CheckLimit).Methods(http.MethodPost)
	r.Handle("/ratelimit/{key}", requireSession(http.HandlerFunc(h.ResetOwnLimit))).Methods(http.MethodDelete)

	// Device identity
	r.HandleFunc("/device/fingerprint", h.Fingerprint).Methods(http.MethodPost)
	r.HandleFunc("/device/id", h.DeviceID).Methods(http.MethodPost)
	r.HandleFunc("/device/info", h.DeviceInfo).Methods(http.MethodPost)

	// Session and evaluation flow
	r.HandleFunc("/session", h.Login).Methods(http.MethodPost)
	evals := r.PathPrefix("/evaluations").Subrouter()
	evals.Use(mux.MiddlewareFunc(requireSession))
	evals.HandleFunc("/precheck", h.PrecheckEvaluation).Methods(http.MethodPost)
	evals.HandleFunc("/submitted/{slug}", h.EvaluationSubmitted).Methods(http.MethodPost)

	// Admin APIs
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(session.RequireAdmin(h.adminToken)))
	admin.HandleFunc("/cache/stats", h.CacheStats).Methods(http.MethodGet)
	admin.HandleFunc("/cache/clear-expired", h.ClearExpired).Methods(http.MethodPost)
	admin.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodPost)
	admin.HandleFunc("/cache/invalidate/{slug}", h.InvalidateProfessor).Methods(http.MethodPost)
	admin.HandleFunc("/ratelimit", h.ClearLimits).Methods(http.MethodDelete)
	admin.HandleFunc("/ratelimit/{key}", h.ResetLimit).Methods(http.MethodDelete)

	// Observability APIs
	r.HandleFunc("/metrics", h.GetMetrics).Methods(http.MethodGet)
	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)

	// Middlewares
	return Chain(
		r,
		RecoveryMiddleware(h.logger),
		LoggingMiddleware(h.logger),
	)
}
