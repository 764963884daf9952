package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"evalprof/internal/device"
	"evalprof/internal/ratelimit"
	"evalprof/internal/session"
	"evalprof/internal/validate"
)

type limitedResponse struct {
	ratelimit.Result
	Message string `json:"message"`
}

/* ---------------- POST /session ---------------- */

type loginRequest struct {
	validate.LoginForm
	Report *device.ClientReport `json:"report,omitempty"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  session.Identity `json:"identity"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if errs := req.LoginForm.Validate(); !errs.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid form", Fields: errs})
		return
	}

	deviceID := h.deviceID(w, r, device.NewRequestProbe(r, req.Report))

	res := h.limiter.Check(ratelimit.LoginKey(deviceID), h.policies[ratelimit.PolicyLogin])
	if !res.Allowed {
		writeJSON(w, http.StatusTooManyRequests, limitedResponse{
			Result:  res,
			Message: fmt.Sprintf("Demasiados intentos. Espera %d segundos e intenta nuevamente.", res.ResetIn),
		})
		return
	}

	token, id, err := h.sessions.Issue(strings.TrimSpace(req.Username), deviceID)
	if err != nil {
		h.logger.Errorf("cannot issue session: %v", err)
		writeError(w, http.StatusInternalServerError, "cannot issue session")
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{Token: token, ExpiresAt: id.ExpiresAt, Identity: id})
}

/* ---------------- POST /evaluations/precheck ---------------- */

type precheckResponse struct {
	ratelimit.Result
	Form validate.EvaluationForm `json:"form"`
}

// PrecheckEvaluation validates the form and consumes one attempt of the
// evaluation budget of the logged-in user on this device.
func (h *Handler) PrecheckEvaluation(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var form validate.EvaluationForm
	if !decodeJSON(w, r, &form, false) {
		return
	}
	form = form.Sanitized()

	if errs := form.Validate(); !errs.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid form", Fields: errs})
		return
	}

	p := h.policies[ratelimit.PolicyEvaluation]
	res := h.limiter.Check(ratelimit.EvaluationKey(id.Username, id.DeviceID), p)
	if !res.Allowed {
		writeJSON(w, http.StatusTooManyRequests, limitedResponse{
			Result: res,
			Message: fmt.Sprintf(
				"Límite de evaluaciones alcanzado. Solo puedes enviar %d evaluaciones cada %s. Espera %d segundos e intenta nuevamente.",
				p.MaxAttempts, p.Window, res.ResetIn,
			),
		})
		return
	}

	writeJSON(w, http.StatusOK, precheckResponse{Result: res, Form: form})
}

/* ---------------- POST /evaluations/submitted/{slug} ---------------- */

func (h *Handler) EvaluationSubmitted(w http.ResponseWriter, r *http.Request) {
	if !h.cache.InvalidateAfterEvaluation(r.Context(), mux.Vars(r)["slug"]) {
		writeError(w, http.StatusInternalServerError, "invalidation incomplete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
