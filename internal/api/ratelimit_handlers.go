package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"evalprof/internal/ratelimit"
	"evalprof/internal/session"
)

/* ---------------- POST /ratelimit/check ---------------- */

// checkRequest names either a configured policy or an explicit budget.
type checkRequest struct {
	Key         string `json:"key"`
	Policy      string `json:"policy,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	WindowMs    int64  `json:"window_ms,omitempty"`
}

func (h *Handler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}

	var p ratelimit.Policy
	if req.Policy != "" {
		known, ok := h.policies[req.Policy]
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown policy")
			return
		}
		p = known
	} else {
		p = ratelimit.Policy{
			MaxAttempts: req.MaxAttempts,
			Window:      time.Duration(req.WindowMs) * time.Millisecond,
		}
	}
	if p.MaxAttempts <= 0 || p.Window <= 0 {
		writeError(w, http.StatusBadRequest, "max_attempts and window_ms must be positive")
		return
	}

	res := h.limiter.Check(req.Key, p)
	writeJSON(w, limitStatus(res), res)
}

/* ---------------- DELETE /ratelimit/{key} ---------------- */

// ResetOwnLimit lets a session clear the login attempts of its own device.
// Evaluation and report budgets can only be reset through the admin API.
func (h *Handler) ResetOwnLimit(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	if mux.Vars(r)["key"] != ratelimit.LoginKey(id.DeviceID) {
		writeError(w, http.StatusForbidden, "key does not belong to this session")
		return
	}
	h.limiter.Reset(ratelimit.LoginKey(id.DeviceID))
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- DELETE /admin/ratelimit/{key} ---------------- */

func (h *Handler) ResetLimit(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	h.limiter.Reset(key)
	h.logger.Infof("rate limit reset for %s", key)
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- DELETE /admin/ratelimit ---------------- */

func (h *Handler) ClearLimits(w http.ResponseWriter, r *http.Request) {
	h.limiter.ClearAll()
	h.logger.Info("rate limits cleared")
	w.WriteHeader(http.StatusNoContent)
}

func limitStatus(res ratelimit.Result) int {
	if res.Allowed {
		return http.StatusOK
	}
	return http.StatusTooManyRequests
}
