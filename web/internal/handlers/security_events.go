package handlers

import (
	"log/slog"
	"net/http"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

// SecurityEventsHandler exposes the security event log to administrators.
type SecurityEventsHandler struct {
	monitor *secmon.Monitor
	logger  *slog.Logger
}

func NewSecurityEventsHandler(monitor *secmon.Monitor, logger *slog.Logger) *SecurityEventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityEventsHandler{monitor: monitor, logger: logger}
}

// List returns the stored events, oldest first, with per-type counts over the
// whole log. ?type= narrows the returned events.
func (h *SecurityEventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := secmon.EventType(r.URL.Query().Get("type"))
	if filter != "" && !filter.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "Unknown event type")
		return
	}

	events, err := h.monitor.Events(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list security events", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	stats := secmon.Summarize(events)

	if filter != "" {
		matched := make([]secmon.SecurityEvent, 0, len(events))
		for _, e := range events {
			if e.Type == filter {
				matched = append(matched, e)
			}
		}
		events = matched
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
		"stats":  stats,
	})
}

func (h *SecurityEventsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Clear(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear security events", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	h.logger.InfoContext(r.Context(), "security events cleared", logging.IP(httputil.GetClientIP(r)))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Security events cleared",
	})
}
