package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/tbayops/stormdesk/internal/agents"
	"github.com/tbayops/stormdesk/internal/collab"
	"github.com/tbayops/stormdesk/internal/ops"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type handlers struct {
	store        store.Store
	executor     *ops.Executor
	orchestrator *collab.Orchestrator
	log          *zap.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -- store resources --

func (h *handlers) listIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.store.Incidents(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (h *handlers) getIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.store.Incident(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type createIncidentRequest struct {
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	Priority      string  `json:"priority"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Address       string  `json:"address"`
	AffectedCount int     `json:"affected_count"`
}

// createIncident routes through the executor so the command lands in the
// audit log and observers are notified.
func (h *handlers) createIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action := h.executor.Submit(r.Context(), ops.KindCreateIncident, map[string]any{
		"type":           req.Type,
		"description":    req.Description,
		"priority":       req.Priority,
		"latitude":       req.Latitude,
		"longitude":      req.Longitude,
		"address":        req.Address,
		"affected_count": req.AffectedCount,
	}, ops.SourceOperator, true)

	if action.Status != ops.StatusExecuted {
		writeError(w, http.StatusUnprocessableEntity, action.Error)
		return
	}

	id, _ := action.Result["incident_id"].(string)
	inc, err := h.store.Incident(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (h *handlers) deleteIncident(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serverError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.store.Assets(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handlers) getAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Asset(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Summary(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) weather(w http.ResponseWriter, r *http.Request) {
	wthr, err := h.store.Weather(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no weather snapshot")
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wthr)
}

// -- actions --

type submitActionRequest struct {
	Kind        string         `json:"kind"`
	Params      map[string]any `json:"params"`
	Source      string         `json:"source"`
	AutoExecute *bool          `json:"auto_execute"`
}

func (h *handlers) submitAction(w http.ResponseWriter, r *http.Request) {
	var req submitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	source := ops.Source(req.Source)
	switch source {
	case ops.SourceOperator, ops.SourceAIAgent, ops.SourceSystem:
	case "":
		source = ops.SourceOperator
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source: %s", req.Source))
		return
	}

	autoExecute := true
	if req.AutoExecute != nil {
		autoExecute = *req.AutoExecute
	}

	action := h.executor.Submit(r.Context(), ops.Kind(req.Kind), req.Params, source, autoExecute)
	writeJSON(w, http.StatusOK, action)
}

func (h *handlers) actionLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.executor.Log(queryInt(r, "limit", 50)))
}

func (h *handlers) pendingActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.executor.Pending())
}

func (h *handlers) approveAction(w http.ResponseWriter, r *http.Request) {
	action, err := h.executor.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *ops.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *handlers) rejectAction(w http.ResponseWriter, r *http.Request) {
	action, err := h.executor.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *ops.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// -- collaboration --

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.StartSession())
}

func (h *handlers) stopSession(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.StopSession()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *handlers) sessionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.SessionStats())
}

func (h *handlers) recentMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.orchestrator.RecentMessages(queryInt(r, "limit", 20))
	if msgs == nil {
		msgs = []agents.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// collaborate runs one round and streams its events as SSE frames.
func (h *handlers) collaborate(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range h.orchestrator.RunRound(r.Context()) {
		data, err := ev.Encode()
		if err != nil {
			h.log.Error("Failed to encode stream event", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// Client went away; the round itself still finishes.
			return
		}
		flusher.Flush()
	}
}

// -- helpers --

func (h *handlers) serverError(w http.ResponseWriter, err error) {
	h.log.Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
