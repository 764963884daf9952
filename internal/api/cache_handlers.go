package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

/* ---------------- PUT /cache/{key} ---------------- */

type setRequest struct {
	Value json.RawMessage `json:"value"`
	TTLms int64           `json:"ttl_ms,omitempty"`
}

func (h *Handler) SetKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req setRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, "missing value")
		return
	}
	if req.TTLms < 0 {
		writeError(w, http.StatusBadRequest, "ttl_ms must not be negative")
		return
	}

	ttl := time.Duration(req.TTLms) * time.Millisecond
	if !h.cache.Set(r.Context(), key, req.Value, ttl) {
		writeError(w, http.StatusInsufficientStorage, "cache write failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- GET /cache/{key} ---------------- */

type getResponse struct {
	Value json.RawMessage `json:"value"`
}

func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	value, ok := h.cache.Get(r.Context(), mux.Vars(r)["key"])
	if !ok {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	writeJSON(w, http.StatusOK, getResponse{Value: value})
}

/* ---------------- DELETE /cache/{key} ---------------- */

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Remove(r.Context(), mux.Vars(r)["key"]) {
		writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- admin ---------------- */

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.cache.Stats(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ClearExpired(w http.ResponseWriter, r *http.Request) {
	removed := h.cache.ClearExpired(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if !h.cache.ClearAll(r.Context()) {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) InvalidateProfessor(w http.ResponseWriter, r *http.Request) {
	if !h.cache.InvalidateProfessor(r.Context(), mux.Vars(r)["slug"]) {
		writeError(w, http.StatusInternalServerError, "invalidation incomplete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
