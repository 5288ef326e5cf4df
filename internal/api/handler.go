package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/database"
	"github.com/charlie0129/activity-monitor-go/internal/models"
	"github.com/charlie0129/activity-monitor-go/internal/monitor"
)

type Handler struct {
	controller *monitor.Controller
	db         *database.DB
	hub        *SSEHub
}

func NewHandler(controller *monitor.Controller, db *database.DB, hub *SSEHub) *Handler {
	return &Handler{
		controller: controller,
		db:         db,
		hub:        hub,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Sampling control
	mux.HandleFunc("POST /api/v1/tracking/window/start", h.startWindowTracking)
	mux.HandleFunc("POST /api/v1/tracking/window/stop", h.stopWindowTracking)
	mux.HandleFunc("POST /api/v1/tracking/browser/start", h.startBrowserTracking)
	mux.HandleFunc("POST /api/v1/tracking/browser/stop", h.stopBrowserTracking)
	mux.HandleFunc("POST /api/v1/tracking/reset", h.resetTracking)
	mux.HandleFunc("GET /api/v1/tracking/window", h.getWindowState)
	mux.HandleFunc("GET /api/v1/tracking/browser", h.getBrowserState)

	// Idle monitor
	mux.HandleFunc("POST /api/v1/idle/start", h.startIdleMonitor)
	mux.HandleFunc("POST /api/v1/idle/stop", h.stopIdleMonitor)
	mux.HandleFunc("POST /api/v1/idle/signal", h.idleSignal)
	mux.HandleFunc("GET /api/v1/idle", h.getIdleState)

	// Focus sessions
	mux.HandleFunc("POST /api/v1/focus/start", h.startFocusSession)
	mux.HandleFunc("POST /api/v1/focus/pause", h.pauseFocusSession)
	mux.HandleFunc("POST /api/v1/focus/resume", h.resumeFocusSession)
	mux.HandleFunc("POST /api/v1/focus/end", h.endFocusSession)
	mux.HandleFunc("GET /api/v1/focus", h.getFocusSession)

	// Productivity
	mux.HandleFunc("GET /api/v1/productivity", h.getProductivityStats)
	mux.HandleFunc("GET /api/v1/productivity/rules", h.getRules)
	mux.HandleFunc("PUT /api/v1/productivity/rules", h.updateRules)

	// Uploads
	mux.HandleFunc("POST /api/v1/uploads", h.submitUpload)
	mux.HandleFunc("POST /api/v1/uploads/config", h.configureUpload)
	mux.HandleFunc("DELETE /api/v1/uploads/{id}", h.cancelUpload)
	mux.HandleFunc("GET /api/v1/uploads/status", h.getQueueStatus)

	// Event stream + history
	mux.Handle("GET /api/v1/events", h.hub)
	mux.HandleFunc("GET /api/v1/events/recent", h.getRecentEvents)

	// Rollups
	mux.HandleFunc("GET /api/v1/rollups", h.getRollups)

	// Health check
	mux.HandleFunc("GET /health", h.healthCheck)
}

// --- Response helpers ---

type APIResponse struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Error: message})
}

// decodeBody parses a JSON request body. An empty body is allowed and leaves
// v with its defaults.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// --- Sampling handlers ---

type intervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// startWindowTracking begins window sampling
// POST /api/v1/tracking/window/start {"interval_seconds": 10}
func (h *Handler) startWindowTracking(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.controller.StartWindowSampling(time.Duration(req.IntervalSeconds) * time.Second)
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.WindowState()})
}

func (h *Handler) stopWindowTracking(w http.ResponseWriter, r *http.Request) {
	h.controller.StopWindowSampling()
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.WindowState()})
}

func (h *Handler) startBrowserTracking(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.controller.StartBrowserSampling(time.Duration(req.IntervalSeconds) * time.Second)
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.BrowserState()})
}

func (h *Handler) stopBrowserTracking(w http.ResponseWriter, r *http.Request) {
	h.controller.StopBrowserSampling()
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.BrowserState()})
}

func (h *Handler) resetTracking(w http.ResponseWriter, r *http.Request) {
	h.controller.ResetTracking()
	writeJSON(w, http.StatusOK, APIResponse{Data: "ok"})
}

func (h *Handler) getWindowState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.WindowState()})
}

func (h *Handler) getBrowserState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.BrowserState()})
}

// --- Idle handlers ---

type idleStartRequest struct {
	ThresholdSeconds int `json:"threshold_seconds"`
}

func (h *Handler) startIdleMonitor(w http.ResponseWriter, r *http.Request) {
	var req idleStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.controller.StartIdleMonitor(time.Duration(req.ThresholdSeconds) * time.Second)
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.IdleState()})
}

func (h *Handler) stopIdleMonitor(w http.ResponseWriter, r *http.Request) {
	h.controller.StopIdleMonitor()
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.IdleState()})
}

// idleSignal forwards a system power/session signal
// POST /api/v1/idle/signal {"signal": "suspend"|"resume"|"lock"|"unlock"}
func (h *Handler) idleSignal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signal string `json:"signal"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Signal {
	case "suspend":
		h.controller.SignalSuspend()
	case "resume":
		h.controller.SignalResume()
	case "lock":
		h.controller.SignalLock()
	case "unlock":
		h.controller.SignalUnlock()
	default:
		writeError(w, http.StatusBadRequest, "unknown signal, use suspend/resume/lock/unlock")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.IdleState()})
}

func (h *Handler) getIdleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.IdleState()})
}

// --- Focus session handlers ---

func (h *Handler) startFocusSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetDurationSeconds int `json:"target_duration_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.controller.StartFocusSession(req.TargetDurationSeconds)
	if err != nil {
		if errors.Is(err, monitor.ErrSessionActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to start focus session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start focus session")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: session})
}

func (h *Handler) pauseFocusSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reason := models.PauseReason(req.Reason)
	if reason == "" {
		reason = models.PauseManual
	}
	h.controller.PauseFocusSession(reason)
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.CurrentSession()})
}

func (h *Handler) resumeFocusSession(w http.ResponseWriter, r *http.Request) {
	h.controller.ResumeFocusSession()
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.CurrentSession()})
}

func (h *Handler) endFocusSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reason := monitor.EndCancelled
	if req.Reason == "" || req.Reason == string(monitor.EndCompleted) {
		reason = monitor.EndCompleted
	}

	session, err := h.controller.EndFocusSession(reason)
	if err != nil {
		if errors.Is(err, monitor.ErrNoSession) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to end focus session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end focus session")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: session})
}

func (h *Handler) getFocusSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.CurrentSession()})
}

// --- Productivity handlers ---

func (h *Handler) getProductivityStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.Stats()})
}

func (h *Handler) getRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.Rules()})
}

// updateRules replaces the rule set, fully or partially
// PUT /api/v1/productivity/rules {"blocked_domains": ["example.com"]}
func (h *Handler) updateRules(w http.ResponseWriter, r *http.Request) {
	var rs models.RuleSet
	if err := decodeBody(r, &rs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.controller.UpdateRules(&rs); err != nil {
		if errors.Is(err, monitor.ErrInvalidRules) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to update rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update rules")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.Rules()})
}

// --- Upload handlers ---

func (h *Handler) submitUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	artifactID := h.controller.SubmitArtifact(r.Context(), req.Path)
	writeJSON(w, http.StatusAccepted, APIResponse{Data: map[string]string{"artifact_id": artifactID}})
}

func (h *Handler) configureUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL               string `json:"url"`
		DeleteAfterUpload bool   `json:"delete_after_upload"`
	}
	if err := decodeBody(r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	h.controller.ConfigureUpload(req.URL, req.DeleteAfterUpload)
	writeJSON(w, http.StatusOK, APIResponse{Data: "ok"})
}

func (h *Handler) cancelUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.controller.CancelUpload(id) {
		writeError(w, http.StatusNotFound, "no pending upload with that artifact id")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: "ok"})
}

func (h *Handler) getQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Data: h.controller.QueueStatus()})
}

// --- Event history ---

func (h *Handler) getRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.db.RecentEvents(limit)
	if err != nil {
		slog.Error("failed to get recent events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: events})
}

// --- Rollups ---

func (h *Handler) getRollups(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	rollups, err := h.db.GetDailyRollups(limit)
	if err != nil {
		slog.Error("failed to get rollups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get rollups")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: rollups})
}

// --- Health ---

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
