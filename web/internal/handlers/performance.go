package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
)

// PerformanceHandler serves the performance telemetry and baseline endpoints.
type PerformanceHandler struct {
	service *perf.Service
	maxBody int64
	logger  *slog.Logger
}

func NewPerformanceHandler(service *perf.Service, maxBody int64, logger *slog.Logger) *PerformanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PerformanceHandler{service: service, maxBody: maxBody, logger: logger}
}

type metricsRequest struct {
	Metrics   []perf.Snapshot `json:"metrics"`
	SessionID string          `json:"sessionId"`
}

type metricsResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// PostMetrics stores a batch of snapshots. Once the body decodes the answer
// is always success; persistence and detection failures stay server side.
func (h *PerformanceHandler) PostMetrics(w http.ResponseWriter, r *http.Request) {
	var req metricsRequest
	if err := httputil.DecodeJSON(w, r, &req, h.maxBody); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	alerts := h.service.RecordSnapshots(r.Context(), req.SessionID, req.Metrics)
	if len(alerts) > 0 {
		h.logger.InfoContext(r.Context(), "snapshot batch raised alerts",
			logging.SessionID(req.SessionID), slog.Int("alerts", len(alerts)))
	}

	httputil.WriteJSON(w, http.StatusOK, metricsResponse{
		Success:   true,
		Message:   fmt.Sprintf("Received %d performance snapshots", len(req.Metrics)),
		SessionID: req.SessionID,
	})
}

// ListMetrics returns stored snapshots in arrival order.
func (h *PerformanceHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.Snapshots(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list snapshots", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"metrics": snaps,
		"count":   len(snaps),
	})
}

func (h *PerformanceHandler) ClearMetrics(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSnapshots(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear snapshots", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Performance metrics cleared",
	})
}

type alertResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Severity perf.Severity `json:"severity"`
	AlertID  string        `json:"alertId"`
}

// PostAlert records a client-detected regression alert.
func (h *PerformanceHandler) PostAlert(w http.ResponseWriter, r *http.Request) {
	var req perf.AlertRequest
	if err := httputil.DecodeJSON(w, r, &req, h.maxBody); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Regressions) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "At least one regression is required")
		return
	}

	alert, err := h.service.RaiseAlert(r.Context(), req)
	if errors.Is(err, perf.ErrInvalidSeverity) {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid regression severity")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to raise performance alert", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, alertResponse{
		Success:  true,
		Message:  fmt.Sprintf("Performance alert recorded with %d regressions", len(alert.Regressions)),
		Severity: alert.Severity,
		AlertID:  alert.ID,
	})
}

// ListAlerts returns recent alerts, newest first.
func (h *PerformanceHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseLimit(r, defaultListLimit, maxListLimit)
	alerts, err := h.service.Alerts(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list alerts", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AddBaseline stores one baseline measurement.
func (h *PerformanceHandler) AddBaseline(w http.ResponseWriter, r *http.Request) {
	var b perf.Baseline
	if err := httputil.DecodeJSON(w, r, &b, h.maxBody); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stored, err := h.service.AddBaseline(r.Context(), b)
	if err != nil {
		if errors.Is(err, perf.ErrMissingURL) {
			httputil.WriteError(w, http.StatusBadRequest, "url is required")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to add baseline", logging.URL(b.URL), logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"baseline": stored,
	})
}

// Baselines returns the history for ?url=, or the known URLs without it.
func (h *PerformanceHandler) Baselines(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		urls, err := h.service.BaselineURLs(r.Context())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "failed to list baseline urls", logging.Error(err))
			httputil.WriteInternalError(w)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"urls": urls, "count": len(urls)})
		return
	}

	history, err := h.service.Baselines(r.Context(), url)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load baselines", logging.URL(url), logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"url":       url,
		"baselines": history,
		"count":     len(history),
	})
}

// CheckRegression compares the posted measurement with stored history without
// raising an alert.
func (h *PerformanceHandler) CheckRegression(w http.ResponseWriter, r *http.Request) {
	var current perf.Baseline
	if err := httputil.DecodeJSON(w, r, &current, h.maxBody); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if current.URL == "" {
		httputil.WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.service.CheckRegression(r.Context(), current)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "regression check failed", logging.URL(current.URL), logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
