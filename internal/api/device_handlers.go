package api

import (
	"net/http"
	"time"

	"evalprof/internal/device"
)

// probe reads the optional client report from the body.
func (h *Handler) probe(w http.ResponseWriter, r *http.Request) (*device.RequestProbe, bool) {
	var report device.ClientReport
	if !decodeJSON(w, r, &report, true) {
		return nil, false
	}
	return device.NewRequestProbe(r, &report), true
}

func (h *Handler) deviceID(w http.ResponseWriter, r *http.Request, p device.Probe) string {
	return h.identity.GetOrCreateDeviceID(r.Context(), newCookieStore(w, r, h.secureCookies), p)
}

/* ---------------- POST /device/fingerprint ---------------- */

type fingerprintResponse struct {
	ID               string    `json:"id"`
	CollectedAt      time.Time `json:"collected_at"`
	AvailableSignals int       `json:"available_signals"`
}

func (h *Handler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	p, ok := h.probe(w, r)
	if !ok {
		return
	}

	env := p.Environment()
	fp := h.identity.Fingerprint(device.ProbeFunc(func() device.Environment { return env }))
	writeJSON(w, http.StatusOK, fingerprintResponse{
		ID:               fp.ID,
		CollectedAt:      fp.CollectedAt,
		AvailableSignals: env.AvailableCount(),
	})
}

/* ---------------- POST /device/id ---------------- */

func (h *Handler) DeviceID(w http.ResponseWriter, r *http.Request) {
	p, ok := h.probe(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"device_id": h.deviceID(w, r, p)})
}

/* ---------------- POST /device/info ---------------- */

func (h *Handler) DeviceInfo(w http.ResponseWriter, r *http.Request) {
	p, ok := h.probe(w, r)
	if !ok {
		return
	}
	id := h.deviceID(w, r, p)
	writeJSON(w, http.StatusOK, h.identity.UserInfo(id, p))
}
