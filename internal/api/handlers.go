package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"evalprof/internal/cache"
	"evalprof/internal/device"
	"evalprof/internal/health"
	"evalprof/internal/logs"
	"evalprof/internal/metrics"
	"evalprof/internal/ratelimit"
	"evalprof/internal/session"
)

// maxBody bounds every JSON request body.
const maxBody = 64 << 10

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cache         *cache.Cache
	limiter       *ratelimit.Limiter
	identity      *device.Identity
	sessions      *session.Manager
	policies      map[string]ratelimit.Policy
	metrics       *metrics.Registry
	analyzer      *health.Analyzer
	logger        *logs.Logger
	secureCookies bool
	adminToken    string
}

// NewHandler creates a new API handler. Policies missing from policies
// fall back to ratelimit.DefaultPolicies.
func NewHandler(
	c *cache.Cache,
	limiter *ratelimit.Limiter,
	identity *device.Identity,
	sessions *session.Manager,
	policies map[string]ratelimit.Policy,
	metricsRegistry *metrics.Registry,
	logger *logs.Logger,
) *Handler {
	merged := ratelimit.DefaultPolicies()
	for name, p := range policies {
		merged[name] = p
	}

	return &Handler{
		cache:    c,
		limiter:  limiter,
		identity: identity,
		sessions: sessions,
		policies: merged,
		metrics:  metricsRegistry,
		analyzer: health.NewAnalyzer(metricsRegistry, logger).WithLimiter(limiter),
		logger:   logger.With("api"),
	}
}

// WithStorageUsage reports the store footprint at /health.
func (h *Handler) WithStorageUsage(u health.StorageUsage) *Handler {
	h.analyzer.WithStorage(u)
	return h
}

// WithAdminToken enables the /admin routes for callers presenting token.
func (h *Handler) WithAdminToken(token string) *Handler {
	h.adminToken = token
	return h
}

// WithSecureCookies marks the device cookie Secure.
func (h *Handler) WithSecureCookies() *Handler {
	h.secureCookies = true
	return h
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Analyze())
}

/* ---------------- helpers ---------------- */

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads the request body into dst. An empty body is accepted
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid json body")
	return false
}
